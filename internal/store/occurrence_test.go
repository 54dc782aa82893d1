package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mep-xx/dwellwell-sub001/internal/model"
)

func makeOccurrence(id, dedupeKey string) *model.TaskOccurrence {
	due := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	return &model.TaskOccurrence{
		ID:          id,
		HomeID:      "home-1",
		SourceType:  model.ScopeHome,
		DedupeKey:   dedupeKey,
		Title:       "Replace HVAC Filter",
		Status:      model.TaskPending,
		DueDate:     &due,
		Recurrence:  "3 months",
		Criticality: model.CriticalityMedium,
		CreatedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestInsertOccurrence_DedupeKeyCollisionReturnsExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, stored, err := s.InsertOccurrence(ctx, makeOccurrence("occ-1", "home:home-1:replace-hvac-filter:0"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "occ-1", stored.ID)

	// Second insert with the same key: ignored, existing row returned.
	created, stored, err = s.InsertOccurrence(ctx, makeOccurrence("occ-2", "home:home-1:replace-hvac-filter:0"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "occ-1", stored.ID, "existing occurrence wins")

	n, err := s.CountOccurrences(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInsertOccurrence_SupersededRowFreesTheKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	key := "home:home-1:replace-hvac-filter:0"
	_, first, err := s.InsertOccurrence(ctx, makeOccurrence("occ-1", key))
	require.NoError(t, err)

	// Complete and supersede the first occurrence.
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	first.Status = model.TaskCompleted
	first.CompletedAt = &now
	first.Superseded = true
	require.NoError(t, s.UpdateOccurrence(ctx, first))

	// Its successor can now take the key.
	created, _, err := s.InsertOccurrence(ctx, makeOccurrence("occ-2", key))
	require.NoError(t, err)
	assert.True(t, created)

	live, err := s.FindLiveByDedupeKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "occ-2", live.ID)
}

func TestSupersedeAndInsert_HandsOverKeyInOneTransaction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	key := "home:home-1:replace-hvac-filter:0"
	_, first, err := s.InsertOccurrence(ctx, makeOccurrence("occ-1", key))
	require.NoError(t, err)

	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	first.Status = model.TaskCompleted
	first.CompletedAt = &now
	first.Superseded = true

	// Successor reuses the key the predecessor holds; the handover only
	// works because the supersede lands in the same transaction.
	next := makeOccurrence("occ-2", key)
	created, stored, err := s.SupersedeAndInsert(ctx, first, next)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "occ-2", stored.ID)

	live, err := s.FindLiveByDedupeKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "occ-2", live.ID)

	retired, err := s.GetOccurrence(ctx, "occ-1")
	require.NoError(t, err)
	assert.True(t, retired.Superseded)
	assert.Equal(t, model.TaskCompleted, retired.Status)
}

func TestSupersedeAndInsert_ExistingHolderWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, first, err := s.InsertOccurrence(ctx, makeOccurrence("occ-1", "home:home-1:replace-hvac-filter:0"))
	require.NoError(t, err)
	_, _, err = s.InsertOccurrence(ctx, makeOccurrence("occ-2", "home:home-1:clean-gutters:0"))
	require.NoError(t, err)

	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	first.Status = model.TaskCompleted
	first.CompletedAt = &now
	first.Superseded = true

	// Successor collides with another live occurrence: ignored, holder returned.
	next := makeOccurrence("occ-3", "home:home-1:clean-gutters:0")
	created, stored, err := s.SupersedeAndInsert(ctx, first, next)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "occ-2", stored.ID)
}

func TestFindLiveByDedupeKey_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.FindLiveByDedupeKey(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBulkArchive_OnlyActivePending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pending := makeOccurrence("occ-1", "trackable:trk-1:clean-coils:0")
	pending.TrackableID = "trk-1"
	pending.SourceType = model.ScopeTrackable
	_, _, err := s.InsertOccurrence(ctx, pending)
	require.NoError(t, err)

	done := makeOccurrence("occ-2", "trackable:trk-1:descale:0")
	done.TrackableID = "trk-1"
	done.SourceType = model.ScopeTrackable
	done.Status = model.TaskCompleted
	_, _, err = s.InsertOccurrence(ctx, done)
	require.NoError(t, err)

	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	n, err := s.BulkArchive(ctx, "trackable_id", "trk-1", at)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "completed occurrences are not archived")

	archived, err := s.ListArchivedPending(ctx, "trackable_id", "trk-1")
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, "occ-1", archived[0].ID)

	// Archiving again is a no-op.
	n, err = s.BulkArchive(ctx, "trackable_id", "trk-1", at)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestBulkArchive_RejectsUnknownOwnerColumn(t *testing.T) {
	s := newTestStore(t)
	_, err := s.BulkArchive(context.Background(), "title", "x", time.Now())
	assert.Error(t, err)
}

func TestListOccurrences_FilterSemantics(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	visible := makeOccurrence("occ-1", "home:home-1:a:0")
	_, _, err := s.InsertOccurrence(ctx, visible)
	require.NoError(t, err)

	pausedAt := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	paused := makeOccurrence("occ-2", "home:home-1:b:0")
	paused.PausedAt = &pausedAt
	_, _, err = s.InsertOccurrence(ctx, paused)
	require.NoError(t, err)

	archived := makeOccurrence("occ-3", "home:home-1:c:0")
	archived.ArchivedAt = &pausedAt
	_, _, err = s.InsertOccurrence(ctx, archived)
	require.NoError(t, err)

	active, err := s.ListOccurrences(ctx, OccurrenceFilter{HomeID: "home-1"})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "occ-1", active[0].ID)

	everything, err := s.ListOccurrences(ctx, OccurrenceFilter{
		HomeID: "home-1", IncludeArchived: true, IncludePaused: true,
	})
	require.NoError(t, err)
	assert.Len(t, everything, 3)

	due := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	dueSoon, err := s.ListOccurrences(ctx, OccurrenceFilter{HomeID: "home-1", DueBefore: &due})
	require.NoError(t, err)
	assert.Len(t, dueSoon, 1)
}

func TestUpdateOccurrence_MissingRow(t *testing.T) {
	s := newTestStore(t)
	o := makeOccurrence("ghost", "home:h:g:0")
	err := s.UpdateOccurrence(context.Background(), o)
	assert.ErrorIs(t, err, ErrNotFound)
}
