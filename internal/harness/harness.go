package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/Mep-xx/dwellwell-sub001/internal/catalog"
	"github.com/Mep-xx/dwellwell-sub001/internal/engine"
	"github.com/Mep-xx/dwellwell-sub001/internal/model"
	"github.com/Mep-xx/dwellwell-sub001/internal/store"
	"github.com/Mep-xx/dwellwell-sub001/internal/testutil"
)

// defaultStart pins scenarios that do not name their own start_time.
var defaultStart = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

// Harness executes scenario steps against a real engine over an
// in-memory store, with a fixed clock and sequential task IDs so the
// trace is deterministic.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	clock  *testutil.FixedClock
}

// Run executes a scenario in a fresh in-memory database and returns the
// result. The returned error covers infrastructure failures (bad
// catalog, broken setup); expect and assertion failures land in the
// result's Errors instead.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	start := scenario.StartTime
	if start.IsZero() {
		start = defaultStart
	}
	clock := testutil.NewFixedClock(start)

	h := &Harness{
		store: st,
		clock: clock,
		engine: engine.New(st,
			engine.WithClock(clock),
			engine.WithIDGenerator(testutil.NewSequentialIDs("task")),
		),
	}

	ctx := context.Background()

	if scenario.Catalog != "" {
		cat, errs := catalog.LoadDir(scenario.Catalog)
		if len(errs) > 0 {
			return nil, fmt.Errorf("load catalog: %v", errs[0])
		}
		if _, err := catalog.Apply(ctx, st, cat); err != nil {
			return nil, fmt.Errorf("apply catalog: %w", err)
		}
	}

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Flow {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, err
		}
	}

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) executeSetup(ctx context.Context, setup Setup) error {
	for _, home := range setup.Homes {
		if err := h.store.UpsertHome(ctx, home.ID, home.Name, home.Attributes); err != nil {
			return fmt.Errorf("home %s: %w", home.ID, err)
		}
	}
	for _, room := range setup.Rooms {
		if err := h.store.UpsertRoom(ctx, room.ID, room.HomeID, room.Name, room.Attributes, room.Detail); err != nil {
			return fmt.Errorf("room %s: %w", room.ID, err)
		}
	}
	for _, tr := range setup.Trackables {
		status := model.TrackableStatus(tr.Status)
		if status == "" {
			status = model.TrackableInUse
		}
		t := &model.Trackable{
			ID:         tr.ID,
			HomeID:     tr.HomeID,
			RoomID:     tr.RoomID,
			Name:       tr.Name,
			Type:       tr.Type,
			Category:   tr.Category,
			Status:     status,
			Attributes: tr.Attributes,
		}
		if err := h.store.UpsertTrackable(ctx, t); err != nil {
			return fmt.Errorf("trackable %s: %w", tr.ID, err)
		}
	}
	return nil
}

// executeStep dispatches one flow op, records its trace event, and
// checks the step's expect clause. Engine errors abort the run since a
// scenario that hits one is malformed rather than failing.
func (h *Harness) executeStep(ctx context.Context, idx int, step FlowStep, result *Result) error {
	ev := TraceEvent{
		Seq:   idx + 1,
		Clock: h.clock.Now().Format(time.RFC3339),
		Op:    step.Op,
	}

	switch step.Op {
	case "advance":
		if step.Days != 0 {
			h.clock.AdvanceDate(0, 0, step.Days)
		}
		if step.By != "" {
			d, err := time.ParseDuration(step.By)
			if err != nil {
				return fmt.Errorf("flow[%d]: bad duration %q: %w", idx, step.By, err)
			}
			h.clock.Advance(d)
		}
		ev.Clock = h.clock.Now().Format(time.RFC3339)
		result.Trace = append(result.Trace, ev)
		return nil

	case "generate":
		ev.Target = step.ScopeType + "/" + step.ScopeID
		gen, err := h.engine.GenerateForScope(ctx, model.ScopeType(step.ScopeType), step.ScopeID, step.Changed)
		if err != nil {
			return fmt.Errorf("flow[%d] generate: %w", idx, err)
		}
		for _, occ := range gen.Created {
			ev.Created = append(ev.Created, occ.ID)
		}
		for _, occ := range gen.Existing {
			ev.Existing = append(ev.Existing, occ.ID)
		}
		ev.Warnings = gen.Warnings
		result.Trace = append(result.Trace, ev)
		checkGenerateExpect(idx, step.Expect, gen, result)
		return nil

	case "complete", "skip", "snooze", "pause", "resume", "archive", "unarchive", "sync":
		res, err := h.runTaskOp(ctx, step)
		if err != nil {
			return fmt.Errorf("flow[%d] %s %s: %w", idx, step.Op, step.Task, err)
		}
		ev.Target = step.Task
		ev.Applied = &res.Applied
		ev.Status = string(res.Task.Status)
		if res.Task.DueDate != nil {
			ev.Due = res.Task.DueDate.Format(time.RFC3339)
		}
		if res.Next != nil {
			ev.Next = res.Next.ID
			if res.Next.DueDate != nil {
				ev.NextDue = res.Next.DueDate.Format(time.RFC3339)
			}
		}
		ev.Notice = res.Notice
		result.Trace = append(result.Trace, ev)
		checkTransitionExpect(idx, step.Expect, res, result)
		return nil

	case "trackable_pause", "trackable_resume", "trackable_retire", "trackable_revive":
		res, err := h.runTrackableOp(ctx, step)
		if err != nil {
			return fmt.Errorf("flow[%d] %s %s: %w", idx, step.Op, step.Trackable, err)
		}
		ev.Target = step.Trackable
		ev.Applied = &res.Applied
		ev.Status = string(res.Trackable.Status)
		ev.Cascaded = res.CascadedTasks
		ev.Notice = res.Notice
		result.Trace = append(result.Trace, ev)
		checkTrackableExpect(idx, step.Expect, res, result)
		return nil
	}
	return fmt.Errorf("flow[%d]: unknown op %q", idx, step.Op)
}

func (h *Harness) runTaskOp(ctx context.Context, step FlowStep) (*engine.TransitionResult, error) {
	switch step.Op {
	case "complete":
		return h.engine.CompleteTask(ctx, step.Task)
	case "skip":
		return h.engine.SkipTask(ctx, step.Task)
	case "snooze":
		return h.engine.SnoozeTask(ctx, step.Task, step.Days)
	case "pause":
		return h.engine.PauseTask(ctx, step.Task)
	case "resume":
		return h.engine.ResumeTask(ctx, step.Task, resumeMode(step.Mode))
	case "archive":
		return h.engine.ArchiveTask(ctx, step.Task)
	case "unarchive":
		return h.engine.UnarchiveTask(ctx, step.Task, resumeMode(step.Mode))
	case "sync":
		return h.engine.SyncTaskFromTemplate(ctx, step.Task)
	}
	return nil, fmt.Errorf("not a task op: %s", step.Op)
}

func (h *Harness) runTrackableOp(ctx context.Context, step FlowStep) (*engine.TrackableResult, error) {
	switch step.Op {
	case "trackable_pause":
		return h.engine.PauseTrackable(ctx, step.Trackable)
	case "trackable_resume":
		return h.engine.ResumeTrackable(ctx, step.Trackable, resumeMode(step.Mode))
	case "trackable_retire":
		return h.engine.RetireTrackable(ctx, step.Trackable, step.Reason)
	case "trackable_revive":
		return h.engine.ReviveTrackable(ctx, step.Trackable, resumeMode(step.Mode))
	}
	return nil, fmt.Errorf("not a trackable op: %s", step.Op)
}

func resumeMode(mode string) model.ResumeMode {
	if mode == string(model.ResumeNow) {
		return model.ResumeNow
	}
	return model.ResumeForward
}

func checkGenerateExpect(idx int, exp *ExpectClause, gen *engine.GenerateResult, result *Result) {
	if exp == nil {
		return
	}
	if exp.Created != nil && len(gen.Created) != *exp.Created {
		result.AddError(fmt.Sprintf("flow[%d] generate: expected %d created, got %d", idx, *exp.Created, len(gen.Created)))
	}
	if exp.Existing != nil && len(gen.Existing) != *exp.Existing {
		result.AddError(fmt.Sprintf("flow[%d] generate: expected %d existing, got %d", idx, *exp.Existing, len(gen.Existing)))
	}
}

func checkTransitionExpect(idx int, exp *ExpectClause, res *engine.TransitionResult, result *Result) {
	if exp == nil {
		return
	}
	if exp.Applied != nil && res.Applied != *exp.Applied {
		result.AddError(fmt.Sprintf("flow[%d]: expected applied=%v, got %v (notice: %s)", idx, *exp.Applied, res.Applied, res.Notice))
	}
	if exp.Status != "" && string(res.Task.Status) != exp.Status {
		result.AddError(fmt.Sprintf("flow[%d]: expected status %s, got %s", idx, exp.Status, res.Task.Status))
	}
	if exp.Next != "" {
		if res.Next == nil {
			result.AddError(fmt.Sprintf("flow[%d]: expected successor %s, got none", idx, exp.Next))
		} else if res.Next.ID != exp.Next {
			result.AddError(fmt.Sprintf("flow[%d]: expected successor %s, got %s", idx, exp.Next, res.Next.ID))
		}
	}
	if exp.Notice != "" && res.Notice != exp.Notice {
		result.AddError(fmt.Sprintf("flow[%d]: expected notice %q, got %q", idx, exp.Notice, res.Notice))
	}
}

func checkTrackableExpect(idx int, exp *ExpectClause, res *engine.TrackableResult, result *Result) {
	if exp == nil {
		return
	}
	if exp.Applied != nil && res.Applied != *exp.Applied {
		result.AddError(fmt.Sprintf("flow[%d]: expected applied=%v, got %v (notice: %s)", idx, *exp.Applied, res.Applied, res.Notice))
	}
	if exp.Status != "" && string(res.Trackable.Status) != exp.Status {
		result.AddError(fmt.Sprintf("flow[%d]: expected status %s, got %s", idx, exp.Status, res.Trackable.Status))
	}
	if exp.Cascaded != nil && res.CascadedTasks != *exp.Cascaded {
		result.AddError(fmt.Sprintf("flow[%d]: expected %d cascaded tasks, got %d", idx, *exp.Cascaded, res.CascadedTasks))
	}
}
