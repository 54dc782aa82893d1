package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mep-xx/dwellwell-sub001/internal/engine"
	"github.com/Mep-xx/dwellwell-sub001/internal/model"
	"github.com/Mep-xx/dwellwell-sub001/internal/store"
	"github.com/Mep-xx/dwellwell-sub001/internal/testutil"
)

var apiStart = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

type apiFixture struct {
	server *Server
	store  *store.Store
	clock  *testutil.FixedClock
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	clock := testutil.NewFixedClock(apiStart)
	eng := engine.New(st,
		engine.WithClock(clock),
		engine.WithIDGenerator(testutil.NewSequentialIDs("task")),
	)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &apiFixture{
		server: NewServer(eng, st, log, "127.0.0.1:0"),
		store:  st,
		clock:  clock,
	}
}

func (f *apiFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) seedHVAC(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.UpsertHome(ctx, "home-1", "Home", nil))
	require.NoError(t, f.store.UpsertTrackable(ctx, &model.Trackable{
		ID: "tr-1", HomeID: "home-1", Name: "Upstairs HVAC", Type: "hvac",
		Status: model.TrackableInUse,
	}))
	_, err := f.store.UpsertTemplate(ctx, &model.Template{
		ID: "tpl-1", Key: "replace-hvac-filter", Title: "Replace HVAC filter",
		Recurrence: "3 months", Criticality: model.CriticalityMedium,
		CanDefer: true, DeferLimitDays: 14, State: model.TemplateVerified,
	})
	require.NoError(t, err)
	_, err = f.store.UpsertRule(ctx, &model.Rule{
		ID: "rule-1", Key: "hvac-filter", Scope: model.ScopeTrackable,
		Enabled: true, TemplateKey: "replace-hvac-filter",
		Conditions: []model.Condition{
			{Target: model.TargetTrackable, Field: "type", Op: model.OpEq, Value: "hvac"},
		},
	})
	require.NoError(t, err)
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGenerateEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.seedHVAC(t)

	rec := f.do(t, http.MethodPost, "/api/v1/scopes/trackable/tr-1/generate", "{}")
	require.Equal(t, http.StatusOK, rec.Code)

	var res GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Created, 1)
	assert.Equal(t, "trackable:tr-1:replace-hvac-filter:0", res.Created[0].DedupeKey)

	// Second call reports the existing row.
	rec = f.do(t, http.MethodPost, "/api/v1/scopes/trackable/tr-1/generate", "{}")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Empty(t, res.Created)
	assert.Len(t, res.Existing, 1)
}

func TestGenerateEndpointErrors(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/scopes/trackable/missing/generate", "{}")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/scopes/garage/x/generate", "{}")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// generateTask creates one pending task through the API and returns its ID.
func (f *apiFixture) generateTask(t *testing.T) string {
	t.Helper()
	f.seedHVAC(t)
	rec := f.do(t, http.MethodPost, "/api/v1/scopes/trackable/tr-1/generate", "{}")
	require.Equal(t, http.StatusOK, rec.Code)
	var res GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Created, 1)
	return res.Created[0].ID
}

func TestGetTaskEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	id := f.generateTask(t)

	rec := f.do(t, http.MethodGet, "/api/v1/tasks/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var task model.TaskOccurrence
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
	assert.Equal(t, id, task.ID)
	assert.Equal(t, model.TaskPending, task.Status)

	rec = f.do(t, http.MethodGet, "/api/v1/tasks/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTrackableEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.seedHVAC(t)

	rec := f.do(t, http.MethodGet, "/api/v1/trackables/tr-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var tr model.Trackable
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tr))
	assert.Equal(t, "tr-1", tr.ID)
	assert.Equal(t, model.TrackableInUse, tr.Status)

	rec = f.do(t, http.MethodGet, "/api/v1/trackables/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompleteEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	id := f.generateTask(t)

	rec := f.do(t, http.MethodPost, "/api/v1/tasks/"+id+"/complete", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res TransitionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Applied)
	assert.Equal(t, model.TaskCompleted, res.Task.Status)
	require.NotNil(t, res.Next)
	assert.Equal(t, model.TaskPending, res.Next.Status)

	// Completing again is a conflict, not an error.
	rec = f.do(t, http.MethodPost, "/api/v1/tasks/"+id+"/complete", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.Applied)
	assert.NotEmpty(t, res.Notice)
}

func TestSnoozeEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	id := f.generateTask(t)

	rec := f.do(t, http.MethodPost, "/api/v1/tasks/"+id+"/snooze", `{"days": 7}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res TransitionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Applied)
	assert.Equal(t, apiStart.AddDate(0, 3, 7), res.Task.DueDate.UTC())

	// Over the 14 day limit.
	rec = f.do(t, http.MethodPost, "/api/v1/tasks/"+id+"/snooze", `{"days": 30}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestResumeEndpointValidatesMode(t *testing.T) {
	f := newAPIFixture(t)
	id := f.generateTask(t)

	rec := f.do(t, http.MethodPost, "/api/v1/tasks/"+id+"/resume", `{"mode": "sideways"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPauseResumeEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	id := f.generateTask(t)

	rec := f.do(t, http.MethodPost, "/api/v1/tasks/"+id+"/pause", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/tasks/"+id+"/resume", `{"mode": "now"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res TransitionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Applied)
	assert.Nil(t, res.Task.PausedAt)
}

func TestTaskEndpointsUnknownID(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/tasks/task-missing/complete", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTrackableRetireReviveEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	id := f.generateTask(t)

	rec := f.do(t, http.MethodPost, "/api/v1/trackables/tr-1/retire", `{"reason": "replaced"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res TrackableResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Applied)
	assert.Equal(t, model.TrackableRetired, res.Trackable.Status)
	assert.Equal(t, 1, res.CascadedTasks)

	// The archived task vanishes from the default listing.
	rec = f.do(t, http.MethodGet, "/api/v1/tasks?trackable_id=tr-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var tasks []model.TaskOccurrence
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	assert.Empty(t, tasks)

	rec = f.do(t, http.MethodPost, "/api/v1/trackables/tr-1/revive", `{"mode": "forward"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/tasks?trackable_id=tr-1", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, id, tasks[0].ID)
}

func TestListTasksFilters(t *testing.T) {
	f := newAPIFixture(t)
	id := f.generateTask(t)

	rec := f.do(t, http.MethodGet, "/api/v1/tasks?status=PENDING&home_id=home-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var tasks []model.TaskOccurrence
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, id, tasks[0].ID)

	rec = f.do(t, http.MethodGet, "/api/v1/tasks?status=COMPLETED", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	assert.Empty(t, tasks)

	rec = f.do(t, http.MethodGet, "/api/v1/tasks?due_before=not-a-time", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Due dates land 3 months out; a cutoff before that excludes the task.
	rec = f.do(t, http.MethodGet, "/api/v1/tasks?due_before=2024-02-01T00:00:00Z", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	assert.Empty(t, tasks)

	rec = f.do(t, http.MethodGet, "/api/v1/tasks?due_before=2024-05-01T00:00:00Z", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	assert.Len(t, tasks, 1)
}

func TestListTemplatesAndRules(t *testing.T) {
	f := newAPIFixture(t)
	f.seedHVAC(t)

	rec := f.do(t, http.MethodGet, "/api/v1/templates?verified_only=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var templates []model.Template
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &templates))
	require.Len(t, templates, 1)
	assert.Equal(t, "replace-hvac-filter", templates[0].Key)

	rec = f.do(t, http.MethodGet, "/api/v1/rules", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rules []model.Rule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rules))
	require.Len(t, rules, 1)
	assert.Len(t, rules[0].Conditions, 1)
}
