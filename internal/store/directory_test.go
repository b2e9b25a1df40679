// ABOUTME: Tests for the participant and item directory tables
// ABOUTME: Covers create/get/list, uniqueness, existence checks and enum validation

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParticipant_CreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := &Participant{Username: "alice", DisplayName: "Alice A."}
	require.NoError(t, store.CreateParticipant(ctx, p))
	assert.NotZero(t, p.ID)
	assert.False(t, p.CreatedAt.IsZero())

	got, err := store.GetParticipant(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "Alice A.", got.DisplayName)

	byName, err := store.GetParticipantByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byName.ID)

	exists, err := store.ParticipantExists(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.ParticipantExists(ctx, p.ID+100)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestParticipant_DefaultsDisplayName(t *testing.T) {
	store := newTestStore(t)

	p := &Participant{Username: "bob"}
	require.NoError(t, store.CreateParticipant(context.Background(), p))
	assert.Equal(t, "bob", p.DisplayName)
}

func TestParticipant_DuplicateUsername(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateParticipant(ctx, &Participant{Username: "carol"}))
	err := store.CreateParticipant(ctx, &Participant{Username: "carol"})
	assert.ErrorIs(t, err, ErrDuplicateUsername)
}

func TestParticipant_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetParticipant(context.Background(), 77)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetParticipantByUsername(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListParticipants(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, store.CreateParticipant(ctx, &Participant{Username: name}))
	}

	all, err := store.ListParticipants(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].Username)

	limited, err := store.ListParticipants(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestItem_CreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	reported := time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC)
	item := &Item{
		OwnerID:    1,
		Name:       "Blue backpack",
		Category:   "accessories",
		Status:     "lost",
		Location:   "Library 2nd floor",
		ReportedAt: reported,
	}
	require.NoError(t, store.CreateItem(ctx, item))
	assert.NotZero(t, item.ID)
	assert.Equal(t, ItemCategoryAccessories, item.Category)
	assert.Equal(t, ItemStatusLost, item.Status)

	got, err := store.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Blue backpack", got.Name)
	assert.Equal(t, ItemCategoryAccessories, got.Category)
	assert.Equal(t, ItemStatusLost, got.Status)
	assert.True(t, got.ReportedAt.Equal(reported))

	exists, err := store.ItemExists(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.ItemExists(ctx, item.ID+1)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestItem_InvalidEnums(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.CreateItem(ctx, &Item{Name: "x", Category: "furniture", Status: ItemStatusLost})
	assert.ErrorIs(t, err, ErrInvalidEnum)

	err = store.CreateItem(ctx, &Item{Name: "x", Category: ItemCategoryBooks, Status: "stolen"})
	assert.ErrorIs(t, err, ErrInvalidEnum)
}

func TestListItems_MostRecentFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"old", "mid", "new"} {
		require.NoError(t, store.CreateItem(ctx, &Item{
			Name:       name,
			Category:   ItemCategoryOther,
			Status:     ItemStatusFound,
			ReportedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	items, err := store.ListItems(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "new", items[0].Name)
	assert.Equal(t, "old", items[2].Name)
}
