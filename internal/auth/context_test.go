// ABOUTME: Tests for authentication context helpers
// ABOUTME: Covers WithAuth/FromContext round trip and CallerID

package auth

import (
	"context"
	"testing"
)

func TestFromContext_Missing(t *testing.T) {
	if got := FromContext(context.Background()); got != nil {
		t.Errorf("FromContext() = %+v, want nil", got)
	}
	if _, ok := CallerID(context.Background()); ok {
		t.Error("CallerID() ok = true on bare context")
	}
}

func TestWithAuth_RoundTrip(t *testing.T) {
	ctx := WithAuth(context.Background(), &AuthContext{ParticipantID: 5})

	got := FromContext(ctx)
	if got == nil || got.ParticipantID != 5 {
		t.Fatalf("FromContext() = %+v, want participant 5", got)
	}

	id, ok := CallerID(ctx)
	if !ok || id != 5 {
		t.Errorf("CallerID() = %d, %v; want 5, true", id, ok)
	}
}
