// ABOUTME: Tests for canonical pair ordering
// ABOUTME: Order independence and rejection of self-pairs

package store

import (
	"errors"
	"testing"
)

func TestCanonicalPair(t *testing.T) {
	tests := []struct {
		name     string
		a, b     int64
		wantLow  int64
		wantHigh int64
	}{
		{"already ordered", 2, 5, 2, 5},
		{"reversed", 5, 2, 2, 5},
		{"negative ids", -3, 1, -3, 1},
		{"adjacent", 9, 8, 8, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := CanonicalPair(tt.a, tt.b)
			if err != nil {
				t.Fatalf("CanonicalPair(%d, %d) error: %v", tt.a, tt.b, err)
			}
			if p.Low != tt.wantLow || p.High != tt.wantHigh {
				t.Errorf("CanonicalPair(%d, %d) = %+v, want {%d %d}", tt.a, tt.b, p, tt.wantLow, tt.wantHigh)
			}

			swapped, _ := CanonicalPair(tt.b, tt.a)
			if swapped != p {
				t.Errorf("CanonicalPair is not symmetric: %+v vs %+v", p, swapped)
			}
		})
	}
}

func TestCanonicalPair_SameParticipant(t *testing.T) {
	_, err := CanonicalPair(4, 4)
	if !errors.Is(err, ErrSameParticipant) {
		t.Errorf("expected ErrSameParticipant, got %v", err)
	}
}

func TestPairContains(t *testing.T) {
	p := Pair{Low: 2, High: 5}
	if !p.Contains(2) || !p.Contains(5) {
		t.Error("pair should contain both participants")
	}
	if p.Contains(3) {
		t.Error("pair should not contain a third party")
	}
}
