// ABOUTME: Tests for lostify-admin commands against a temporary SQLite database
// ABOUTME: Executes the cobra tree with captured output and checks text and JSON results

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/lostify-gateway/internal/auth"
	"github.com/2389/lostify-gateway/internal/store"
)

func runCLI(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--db", dbPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func testDBPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "lostify.db")
}

func TestInvalidFormat(t *testing.T) {
	_, err := runCLI(t, testDBPath(t), "participant", "list", "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestParticipantAddAndList(t *testing.T) {
	db := testDBPath(t)

	out, err := runCLI(t, db, "participant", "add", "alice", "--display-name", "Alice Liddell")
	require.NoError(t, err)
	assert.Contains(t, out, "Created participant alice (id 1)")

	_, err = runCLI(t, db, "participant", "add", "bob")
	require.NoError(t, err)

	_, err = runCLI(t, db, "participant", "add", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already taken")

	out, err = runCLI(t, db, "participant", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "USERNAME")
	assert.Contains(t, out, "Alice Liddell")
	assert.Contains(t, out, "bob")

	out, err = runCLI(t, db, "--format", "json", "participant", "list")
	require.NoError(t, err)
	var got []participantJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "alice", got[0].Username)
	assert.Equal(t, "bob", got[1].DisplayName)
}

func TestItemAdd(t *testing.T) {
	db := testDBPath(t)
	_, err := runCLI(t, db, "participant", "add", "alice")
	require.NoError(t, err)

	out, err := runCLI(t, db, "item", "add", "--owner", "1", "--name", "Blue backpack", "--category", "accessories", "--status", "lost")
	require.NoError(t, err)
	assert.Contains(t, out, `Created item "Blue backpack" (id 1)`)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown owner", []string{"--owner", "9", "--name", "Keys"}, "not a participant"},
		{"bad category", []string{"--owner", "1", "--name", "Keys", "--category", "FOOD"}, "invalid enum value"},
		{"bad status", []string{"--owner", "1", "--name", "Keys", "--status", "STOLEN"}, "invalid enum value"},
		{"missing name", []string{"--owner", "1"}, "required flag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, db, append([]string{"item", "add"}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	out, err = runCLI(t, db, "--format", "json", "item", "list")
	require.NoError(t, err)
	var items []itemJSON
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "ACCESSORIES", items[0].Category)
	assert.Equal(t, "LOST", items[0].Status)
}

// seedConversation creates alice, bob, an item and a two-message conversation
func seedConversation(t *testing.T, db string) int64 {
	t.Helper()
	ctx := context.Background()

	s, err := store.NewSQLiteStore(db)
	require.NoError(t, err)
	defer s.Close()

	alice := &store.Participant{Username: "alice"}
	bob := &store.Participant{Username: "bob"}
	require.NoError(t, s.CreateParticipant(ctx, alice))
	require.NoError(t, s.CreateParticipant(ctx, bob))
	item := &store.Item{OwnerID: alice.ID, Name: "Umbrella", Category: store.ItemCategoryOther, Status: store.ItemStatusFound}
	require.NoError(t, s.CreateItem(ctx, item))

	conv, err := s.FindOrCreateConversation(ctx, alice.ID, bob.ID, item.ID)
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, conv.ID, bob.ID, "Found a black umbrella")
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, conv.ID, alice.ID, "That's mine, thanks!")
	require.NoError(t, err)
	return conv.ID
}

func TestConversationListAndMessages(t *testing.T) {
	db := testDBPath(t)
	seedConversation(t, db)

	out, err := runCLI(t, db, "conversation", "list", "--participant", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "That's mine, thanks!")

	out, err = runCLI(t, db, "--format", "json", "conversation", "list", "--participant", "1")
	require.NoError(t, err)
	var summaries []summaryJSON
	require.NoError(t, json.Unmarshal([]byte(out), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, int64(2), summaries[0].OtherParticipantID)
	assert.Equal(t, 1, summaries[0].UnreadCount)

	out, err = runCLI(t, db, "--format", "json", "conversation", "messages", "1")
	require.NoError(t, err)
	var messages []messageJSON
	require.NoError(t, json.Unmarshal([]byte(out), &messages))
	require.Len(t, messages, 2)
	assert.Equal(t, int64(0), messages[0].Sequence)
	assert.Equal(t, "Found a black umbrella", messages[0].Content)
	assert.Equal(t, int64(1), messages[1].Sequence)

	out, err = runCLI(t, db, "conversation", "messages", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Found a black umbrella")

	_, err = runCLI(t, db, "conversation", "messages", "7")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	_, err = runCLI(t, db, "conversation", "messages", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid conversation id")
}

func TestRepair(t *testing.T) {
	db := testDBPath(t)
	seedConversation(t, db)

	out, err := runCLI(t, db, "--format", "json", "repair")
	require.NoError(t, err)
	assert.JSONEq(t, `{"removed":0}`, out)
}

func TestToken(t *testing.T) {
	db := testDBPath(t)
	seedConversation(t, db)

	const secret = "cli-test-secret-that-is-long-enough!"
	configPath := filepath.Join(t.TempDir(), "gateway.yaml")
	configYAML := "server:\n  http_addr: \"127.0.0.1:0\"\n" +
		"database:\n  path: \"" + db + "\"\n" +
		"auth:\n  jwt_secret: \"" + secret + "\"\n"
	require.NoError(t, os.WriteFile(configPath, []byte(configYAML), 0o600))

	out, err := runCLI(t, db, "--config", configPath, "--format", "json", "token", "--participant", "2", "--ttl", "1h")
	require.NoError(t, err)

	var resp struct {
		ParticipantID int64     `json:"participant_id"`
		Token         string    `json:"token"`
		ExpiresAt     time.Time `json:"expires_at"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, int64(2), resp.ParticipantID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), resp.ExpiresAt, time.Minute)

	verifier, err := auth.NewJWTVerifier([]byte(secret))
	require.NoError(t, err)
	id, err := verifier.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)

	_, err = runCLI(t, db, "--config", configPath, "token", "--participant", "9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "participant 9 not found")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "héllo wo...", truncate("héllo wörld and more", 11))
}
