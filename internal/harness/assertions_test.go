package harness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mep-xx/dwellwell-sub001/internal/model"
	"github.com/Mep-xx/dwellwell-sub001/internal/store"
)

func boolPtr(b bool) *bool { return &b }

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Op: "generate", Target: "trackable/tr-1", Created: []string{"task-000001"}},
		{Seq: 2, Op: "complete", Target: "task-000001", Applied: boolPtr(true)},
		{Seq: 3, Op: "complete", Target: "task-000001", Applied: boolPtr(false)},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Op: "generate"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Op: "complete", Target: "task-000001", Applied: boolPtr(false)}))

	err := assertTraceContains(trace, Assertion{Op: "skip"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no skip event")

	err = assertTraceContains(trace, Assertion{Op: "generate", Target: "trackable/tr-2"})
	require.Error(t, err)
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Op: "complete", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Op: "complete", Applied: boolPtr(true), Count: 1}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Op: "skip", Count: 0}))

	err := assertTraceCount(trace, Assertion{Op: "complete", Count: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 3 complete events, found 2")
}

func newAssertionContext(t *testing.T) *AssertionContext {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return &AssertionContext{Store: st, Ctx: context.Background()}
}

func TestAssertTaskState(t *testing.T) {
	actx := newAssertionContext(t)
	due := time.Date(2024, 4, 15, 9, 0, 0, 0, time.UTC)
	occ := &model.TaskOccurrence{
		ID:          "task-1",
		TrackableID: "tr-1",
		SourceType:  model.ScopeTrackable,
		DedupeKey:   "trackable:tr-1:replace-hvac-filter:0",
		Title:       "Replace HVAC filter",
		Status:      model.TaskPending,
		DueDate:     &due,
		Criticality: model.CriticalityMedium,
		CreatedAt:   due.AddDate(0, -3, 0),
	}
	created, _, err := actx.Store.InsertOccurrence(actx.Ctx, occ)
	require.NoError(t, err)
	require.True(t, created)

	assert.NoError(t, assertTaskState(actx, Assertion{
		Task: "task-1",
		Expect: map[string]any{
			"status":   "PENDING",
			"title":    "Replace HVAC filter",
			"due":      "2024-04-15T09:00:00Z",
			"paused":   false,
			"archived": false,
		},
	}))

	err = assertTaskState(actx, Assertion{
		Task:   "task-1",
		Expect: map[string]any{"status": "COMPLETED"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected COMPLETED, got PENDING")

	err = assertTaskState(actx, Assertion{
		Task:   "task-1",
		Expect: map[string]any{"color": "red"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported field "color"`)

	err = assertTaskState(actx, Assertion{Task: "task-404", Expect: map[string]any{"status": "PENDING"}})
	require.Error(t, err)
}

func TestAssertTrackableState(t *testing.T) {
	actx := newAssertionContext(t)
	require.NoError(t, actx.Store.UpsertHome(actx.Ctx, "home-1", "Main House", nil))
	require.NoError(t, actx.Store.UpsertTrackable(actx.Ctx, &model.Trackable{
		ID:     "tr-1",
		HomeID: "home-1",
		Name:   "HVAC Unit",
		Type:   "hvac",
		Status: model.TrackableInUse,
	}))

	assert.NoError(t, assertTrackableState(actx, Assertion{
		Trackable: "tr-1",
		Expect:    map[string]any{"status": "IN_USE", "paused": false},
	}))

	err := assertTrackableState(actx, Assertion{
		Trackable: "tr-1",
		Expect:    map[string]any{"status": "RETIRED"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected RETIRED, got IN_USE")
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, valuesEqual("PENDING", "PENDING"))
	assert.True(t, valuesEqual(true, true))
	assert.True(t, valuesEqual(2, int64(2)))
	assert.False(t, valuesEqual(2, 3))
	assert.False(t, valuesEqual("a", "b"))
}
