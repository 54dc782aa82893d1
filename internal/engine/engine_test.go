package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Mep-xx/dwellwell-sub001/internal/model"
	"github.com/Mep-xx/dwellwell-sub001/internal/store"
	"github.com/Mep-xx/dwellwell-sub001/internal/testutil"
)

// testStart pins every engine test at a known instant so due-date arithmetic
// is assertable by eye.
var testStart = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

type engineFixture struct {
	engine *Engine
	store  *store.Store
	clock  *testutil.FixedClock
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	clock := testutil.NewFixedClock(testStart)
	eng := New(st,
		WithClock(clock),
		WithIDGenerator(testutil.NewSequentialIDs("task")),
	)
	return &engineFixture{engine: eng, store: st, clock: clock}
}

func (f *engineFixture) seedTemplate(t *testing.T, tpl model.Template) model.Template {
	t.Helper()
	if tpl.Criticality == "" {
		tpl.Criticality = model.CriticalityMedium
	}
	if tpl.State == "" {
		tpl.State = model.TemplateVerified
	}
	if tpl.ID == "" {
		tpl.ID = "tpl-" + tpl.Key
	}
	stored, err := f.store.UpsertTemplate(context.Background(), &tpl)
	require.NoError(t, err)
	return *stored
}

func (f *engineFixture) seedRule(t *testing.T, r model.Rule) model.Rule {
	t.Helper()
	if r.ID == "" {
		r.ID = "rule-" + r.Key
	}
	r.Enabled = true
	stored, err := f.store.UpsertRule(context.Background(), &r)
	require.NoError(t, err)
	return *stored
}

func (f *engineFixture) seedHome(t *testing.T, id string, attrs model.AttributeBag) {
	t.Helper()
	require.NoError(t, f.store.UpsertHome(context.Background(), id, "Home "+id, attrs))
}

func (f *engineFixture) seedRoom(t *testing.T, id, homeID string, attrs, detail model.AttributeBag) {
	t.Helper()
	require.NoError(t, f.store.UpsertRoom(context.Background(), id, homeID, "Room "+id, attrs, detail))
}

func (f *engineFixture) seedTrackable(t *testing.T, tr model.Trackable) model.Trackable {
	t.Helper()
	if tr.Status == "" {
		tr.Status = model.TrackableInUse
	}
	require.NoError(t, f.store.UpsertTrackable(context.Background(), &tr))
	return tr
}

func (f *engineFixture) task(t *testing.T, id string) model.TaskOccurrence {
	t.Helper()
	occ, err := f.store.GetOccurrence(context.Background(), id)
	require.NoError(t, err)
	return *occ
}
