package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Mep-xx/dwellwell-sub001/internal/model"
	"github.com/Mep-xx/dwellwell-sub001/internal/recurrence"
	"github.com/Mep-xx/dwellwell-sub001/internal/store"
)

// TransitionResult is the outcome of a lifecycle transition. Invalid
// transitions are reported, not raised: Applied is false and Notice says why,
// so one bad item in a batch never aborts the rest.
type TransitionResult struct {
	// Task is the occurrence after the transition (or unchanged when the
	// transition did not apply).
	Task model.TaskOccurrence
	// Next is the successor occurrence spawned by completing or skipping a
	// recurring task, nil otherwise.
	Next *model.TaskOccurrence
	// Applied reports whether the transition took effect.
	Applied bool
	// Notice explains a rejected transition in caller-facing terms.
	Notice string
}

func rejected(occ model.TaskOccurrence, notice string) (*TransitionResult, error) {
	return &TransitionResult{Task: occ, Applied: false, Notice: notice}, nil
}

// CompleteTask marks a pending task COMPLETED. For recurring tasks the
// completed row is superseded and a successor is scheduled at
// completion time + interval, so real-world timing drives the next cycle.
// One-shot completed tasks keep their dedupe key live, which is what stops
// reconciliation from re-creating them.
func (e *Engine) CompleteTask(ctx context.Context, id string) (*TransitionResult, error) {
	occ, err := e.loadTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if occ.Status != model.TaskPending {
		return rejected(occ, fmt.Sprintf("task is %s, only PENDING tasks can be completed", occ.Status))
	}

	now := e.clock.Now()
	occ.Status = model.TaskCompleted
	occ.CompletedAt = &now

	return e.finishAndRecur(ctx, occ, now, now)
}

// SkipTask marks a pending task SKIPPED. The successor of a recurring task is
// scheduled at original due date + interval, not from today, so skipping
// never drifts the schedule.
func (e *Engine) SkipTask(ctx context.Context, id string) (*TransitionResult, error) {
	occ, err := e.loadTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if occ.Status != model.TaskPending {
		return rejected(occ, fmt.Sprintf("task is %s, only PENDING tasks can be skipped", occ.Status))
	}

	now := e.clock.Now()
	occ.Status = model.TaskSkipped

	anchor := now
	if occ.DueDate != nil {
		anchor = *occ.DueDate
	}
	return e.finishAndRecur(ctx, occ, now, anchor)
}

// finishAndRecur persists a terminal transition and, for recurring tasks,
// supersedes the finished row and inserts the successor anchored at the given
// time. Both writes land in one store transaction, supersede first: the
// partial unique index only admits the successor once the predecessor has
// released the dedupe key.
func (e *Engine) finishAndRecur(ctx context.Context, occ model.TaskOccurrence, now, anchor time.Time) (*TransitionResult, error) {
	interval, _ := recurrence.Parse(occ.Recurrence)

	if !interval.Recurring() {
		if err := e.store.UpdateOccurrence(ctx, &occ); err != nil {
			return nil, fmt.Errorf("update task %s: %w", occ.ID, err)
		}
		return &TransitionResult{Task: occ, Applied: true}, nil
	}

	occ.Superseded = true
	result := &TransitionResult{Task: occ, Applied: true}

	next := occ
	next.ID = e.ids.NewID()
	next.Status = model.TaskPending
	next.CompletedAt = nil
	next.PausedAt = nil
	next.ArchivedAt = nil
	next.Superseded = false
	next.CreatedAt = now
	due := interval.AddTo(anchor)
	next.DueDate = &due

	created, stored, err := e.store.SupersedeAndInsert(ctx, &occ, &next)
	if err != nil {
		return nil, fmt.Errorf("schedule successor for %s: %w", occ.DedupeKey, err)
	}
	if !created {
		next = *stored
	}
	result.Next = &next

	e.log.Info("recurring task rolled over",
		slog.String("dedupe_key", occ.DedupeKey),
		slog.String("status", string(occ.Status)),
		slog.Time("next_due", due))
	return result, nil
}

// SnoozeTask pushes a pending task's due date out by the given number of
// days, within the template's deferral policy.
func (e *Engine) SnoozeTask(ctx context.Context, id string, days int) (*TransitionResult, error) {
	occ, err := e.loadTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if occ.Status != model.TaskPending {
		return rejected(occ, fmt.Sprintf("task is %s, only PENDING tasks can be snoozed", occ.Status))
	}
	if days <= 0 {
		return rejected(occ, "snooze days must be positive")
	}
	if !occ.CanDefer {
		return rejected(occ, "task cannot be deferred")
	}
	if occ.DeferLimitDays > 0 && days > occ.DeferLimitDays {
		return rejected(occ, fmt.Sprintf("snooze of %d days exceeds the %d day deferral limit", days, occ.DeferLimitDays))
	}

	base := e.clock.Now()
	if occ.DueDate != nil {
		base = *occ.DueDate
	}
	due := base.AddDate(0, 0, days)
	occ.DueDate = &due

	if err := e.store.UpdateOccurrence(ctx, &occ); err != nil {
		return nil, fmt.Errorf("update task %s: %w", occ.ID, err)
	}
	return &TransitionResult{Task: occ, Applied: true}, nil
}

// PauseTask sets the pause marker on a pending task. Pausing is orthogonal to
// status: the row stays PENDING and is merely hidden from active listings.
func (e *Engine) PauseTask(ctx context.Context, id string) (*TransitionResult, error) {
	occ, err := e.loadTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if occ.Status.Terminal() {
		return rejected(occ, fmt.Sprintf("task is %s and cannot be paused", occ.Status))
	}
	if occ.Paused() {
		return rejected(occ, "task is already paused")
	}

	now := e.clock.Now()
	occ.PausedAt = &now
	if err := e.store.UpdateOccurrence(ctx, &occ); err != nil {
		return nil, fmt.Errorf("update task %s: %w", occ.ID, err)
	}
	return &TransitionResult{Task: occ, Applied: true}, nil
}

// ResumeTask clears the pause marker. ResumeForward restarts a stale due
// date as today plus the recurrence interval so the task never reappears
// overdue for time spent paused; ResumeNow keeps the stored due date as-is.
func (e *Engine) ResumeTask(ctx context.Context, id string, mode model.ResumeMode) (*TransitionResult, error) {
	occ, err := e.loadTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if !occ.Paused() {
		return rejected(occ, "task is not paused")
	}

	occ.PausedAt = nil
	if mode == model.ResumeForward {
		e.rescheduleForward(&occ)
	}
	if err := e.store.UpdateOccurrence(ctx, &occ); err != nil {
		return nil, fmt.Errorf("update task %s: %w", occ.ID, err)
	}
	return &TransitionResult{Task: occ, Applied: true}, nil
}

// ArchiveTask sets the archive marker on a non-terminal task.
func (e *Engine) ArchiveTask(ctx context.Context, id string) (*TransitionResult, error) {
	occ, err := e.loadTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if occ.Status.Terminal() {
		return rejected(occ, fmt.Sprintf("task is %s and cannot be archived", occ.Status))
	}
	if occ.Archived() {
		return rejected(occ, "task is already archived")
	}

	now := e.clock.Now()
	occ.ArchivedAt = &now
	if err := e.store.UpdateOccurrence(ctx, &occ); err != nil {
		return nil, fmt.Errorf("update task %s: %w", occ.ID, err)
	}
	return &TransitionResult{Task: occ, Applied: true}, nil
}

// UnarchiveTask clears the archive marker, optionally rescheduling forward.
func (e *Engine) UnarchiveTask(ctx context.Context, id string, mode model.ResumeMode) (*TransitionResult, error) {
	occ, err := e.loadTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if !occ.Archived() {
		return rejected(occ, "task is not archived")
	}

	occ.ArchivedAt = nil
	if mode == model.ResumeForward {
		e.rescheduleForward(&occ)
	}
	if err := e.store.UpdateOccurrence(ctx, &occ); err != nil {
		return nil, fmt.Errorf("update task %s: %w", occ.ID, err)
	}
	return &TransitionResult{Task: occ, Applied: true}, nil
}

// SyncTaskFromTemplate re-copies content from the current version of the
// task's template. Occurrence content is snapshotted at instantiation and
// never follows template edits on its own; this is the explicit opt-in.
func (e *Engine) SyncTaskFromTemplate(ctx context.Context, id string) (*TransitionResult, error) {
	occ, err := e.loadTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if occ.Status.Terminal() {
		return rejected(occ, fmt.Sprintf("task is %s, only open tasks can be re-synced", occ.Status))
	}
	if occ.TemplateID == "" {
		return rejected(occ, "task has no backing template")
	}

	tpl, err := e.store.GetTemplate(ctx, occ.TemplateID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &Error{Code: ErrCodeMissingTemplate, Message: "template no longer exists", ScopeID: occ.TemplateID}
		}
		return nil, fmt.Errorf("load template %s: %w", occ.TemplateID, err)
	}
	if tpl.State != model.TemplateVerified {
		return rejected(occ, fmt.Sprintf("template %s is %s, only VERIFIED templates can be synced", tpl.Key, tpl.State))
	}
	if occ.TemplateVer == tpl.Version {
		return rejected(occ, "task already matches the current template version")
	}

	occ.TemplateVer = tpl.Version
	occ.Title = tpl.Title
	occ.Description = tpl.Description
	occ.Steps = append([]model.TemplateStep(nil), tpl.Steps...)
	occ.Equipment = append([]string(nil), tpl.Equipment...)
	occ.Resources = append([]string(nil), tpl.Resources...)
	occ.Recurrence = tpl.Recurrence
	occ.Criticality = tpl.Criticality
	occ.CanDefer = tpl.CanDefer
	occ.DeferLimitDays = tpl.DeferLimitDays

	if err := e.store.UpdateOccurrence(ctx, &occ); err != nil {
		return nil, fmt.Errorf("update task %s: %w", occ.ID, err)
	}
	e.log.Info("task re-synced from template",
		slog.String("task", occ.ID),
		slog.String("template", tpl.Key),
		slog.Int("version", tpl.Version))
	return &TransitionResult{Task: occ, Applied: true}, nil
}

func (e *Engine) loadTask(ctx context.Context, id string) (model.TaskOccurrence, error) {
	stored, err := e.store.GetOccurrence(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.TaskOccurrence{}, fmt.Errorf("task %s: %w", id, store.ErrNotFound)
		}
		return model.TaskOccurrence{}, fmt.Errorf("load task %s: %w", id, err)
	}
	return *stored, nil
}

// rescheduleForward recomputes a stale due date as today plus the task's
// recurrence interval. Future due dates are left alone; tasks without a
// usable interval land on today.
func (e *Engine) rescheduleForward(occ *model.TaskOccurrence) {
	now := e.clock.Now()
	if occ.DueDate != nil && occ.DueDate.After(now) {
		return
	}

	interval, _ := recurrence.Parse(occ.Recurrence)
	due := interval.AddTo(now)
	occ.DueDate = &due
}
