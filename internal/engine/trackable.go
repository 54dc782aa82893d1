package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Mep-xx/dwellwell-sub001/internal/model"
	"github.com/Mep-xx/dwellwell-sub001/internal/store"
)

// TrackableResult is the outcome of a trackable lifecycle transition,
// including how many owned tasks the cascade touched.
type TrackableResult struct {
	Trackable model.Trackable
	// CascadedTasks counts the owned occurrences the transition touched.
	CascadedTasks int
	Applied       bool
	Notice        string
}

func trackableRejected(t model.Trackable, notice string) (*TrackableResult, error) {
	return &TrackableResult{Trackable: t, Applied: false, Notice: notice}, nil
}

// PauseTrackable moves an IN_USE trackable to PAUSED and pauses its open
// pending tasks. The cascade is an explicit iteration here rather than a
// store-side trigger, so each step shows up in the log and in the result.
func (e *Engine) PauseTrackable(ctx context.Context, id string) (*TrackableResult, error) {
	tr, err := e.loadTrackable(ctx, id)
	if err != nil {
		return nil, err
	}
	if tr.Status != model.TrackableInUse {
		return trackableRejected(tr, fmt.Sprintf("trackable is %s, only IN_USE trackables can be paused", tr.Status))
	}

	now := e.clock.Now()
	tr.Status = model.TrackablePaused
	tr.PausedAt = &now
	if err := e.store.UpdateTrackableStatus(ctx, &tr); err != nil {
		return nil, fmt.Errorf("update trackable %s: %w", id, err)
	}

	owned, err := e.store.ListOccurrencesByTrackable(ctx, id, true)
	if err != nil {
		return nil, fmt.Errorf("list tasks for trackable %s: %w", id, err)
	}

	cascaded := 0
	for i := range owned {
		occ := owned[i]
		if occ.Paused() || occ.Archived() {
			continue
		}
		occ.PausedAt = &now
		if err := e.store.UpdateOccurrence(ctx, &occ); err != nil {
			return nil, fmt.Errorf("pause task %s: %w", occ.ID, err)
		}
		cascaded++
	}

	e.log.Info("trackable paused",
		slog.String("trackable", id),
		slog.Int("tasks_paused", cascaded))
	return &TrackableResult{Trackable: tr, CascadedTasks: cascaded, Applied: true}, nil
}

// ResumeTrackable moves a PAUSED trackable back to IN_USE and resumes its
// paused pending tasks. ResumeForward restarts stale due dates at today plus
// each task's interval so tasks never come back already overdue for the time
// spent paused.
func (e *Engine) ResumeTrackable(ctx context.Context, id string, mode model.ResumeMode) (*TrackableResult, error) {
	tr, err := e.loadTrackable(ctx, id)
	if err != nil {
		return nil, err
	}
	if tr.Status != model.TrackablePaused {
		return trackableRejected(tr, fmt.Sprintf("trackable is %s, only PAUSED trackables can be resumed", tr.Status))
	}

	tr.Status = model.TrackableInUse
	tr.PausedAt = nil
	if err := e.store.UpdateTrackableStatus(ctx, &tr); err != nil {
		return nil, fmt.Errorf("update trackable %s: %w", id, err)
	}

	owned, err := e.store.ListOccurrencesByTrackable(ctx, id, true)
	if err != nil {
		return nil, fmt.Errorf("list tasks for trackable %s: %w", id, err)
	}

	cascaded := 0
	for i := range owned {
		occ := owned[i]
		if !occ.Paused() {
			continue
		}
		occ.PausedAt = nil
		if mode == model.ResumeForward {
			e.rescheduleForward(&occ)
		}
		if err := e.store.UpdateOccurrence(ctx, &occ); err != nil {
			return nil, fmt.Errorf("resume task %s: %w", occ.ID, err)
		}
		cascaded++
	}

	e.log.Info("trackable resumed",
		slog.String("trackable", id),
		slog.String("mode", string(mode)),
		slog.Int("tasks_resumed", cascaded))
	return &TrackableResult{Trackable: tr, CascadedTasks: cascaded, Applied: true}, nil
}

// RetireTrackable moves a trackable to RETIRED, recording the reason, and
// bulk-archives its open pending tasks. Terminal task rows and superseded
// history are left untouched.
func (e *Engine) RetireTrackable(ctx context.Context, id, reason string) (*TrackableResult, error) {
	tr, err := e.loadTrackable(ctx, id)
	if err != nil {
		return nil, err
	}
	if tr.Status == model.TrackableRetired {
		return trackableRejected(tr, "trackable is already retired")
	}

	now := e.clock.Now()
	tr.Status = model.TrackableRetired
	tr.RetiredAt = &now
	tr.RetireReason = reason
	tr.PausedAt = nil
	if err := e.store.UpdateTrackableStatus(ctx, &tr); err != nil {
		return nil, fmt.Errorf("update trackable %s: %w", id, err)
	}

	archived, err := e.store.BulkArchive(ctx, "trackable_id", id, now)
	if err != nil {
		return nil, fmt.Errorf("archive tasks for trackable %s: %w", id, err)
	}

	e.log.Info("trackable retired",
		slog.String("trackable", id),
		slog.String("reason", reason),
		slog.Int("tasks_archived", archived))
	return &TrackableResult{Trackable: tr, CascadedTasks: archived, Applied: true}, nil
}

// ReviveTrackable brings a RETIRED trackable back to IN_USE and unarchives
// the pending tasks its retirement archived, restarting stale due dates from
// today when mode is ResumeForward.
func (e *Engine) ReviveTrackable(ctx context.Context, id string, mode model.ResumeMode) (*TrackableResult, error) {
	tr, err := e.loadTrackable(ctx, id)
	if err != nil {
		return nil, err
	}
	if tr.Status != model.TrackableRetired {
		return trackableRejected(tr, fmt.Sprintf("trackable is %s, only RETIRED trackables can be revived", tr.Status))
	}

	tr.Status = model.TrackableInUse
	tr.RetiredAt = nil
	tr.RetireReason = ""
	if err := e.store.UpdateTrackableStatus(ctx, &tr); err != nil {
		return nil, fmt.Errorf("update trackable %s: %w", id, err)
	}

	parked, err := e.store.ListArchivedPending(ctx, "trackable_id", id)
	if err != nil {
		return nil, fmt.Errorf("list archived tasks for trackable %s: %w", id, err)
	}

	cascaded := 0
	for i := range parked {
		occ := parked[i]
		occ.ArchivedAt = nil
		if mode == model.ResumeForward {
			e.rescheduleForward(&occ)
		}
		if err := e.store.UpdateOccurrence(ctx, &occ); err != nil {
			return nil, fmt.Errorf("unarchive task %s: %w", occ.ID, err)
		}
		cascaded++
	}

	e.log.Info("trackable revived",
		slog.String("trackable", id),
		slog.String("mode", string(mode)),
		slog.Int("tasks_unarchived", cascaded))
	return &TrackableResult{Trackable: tr, CascadedTasks: cascaded, Applied: true}, nil
}

func (e *Engine) loadTrackable(ctx context.Context, id string) (model.Trackable, error) {
	tr, err := e.store.GetTrackable(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Trackable{}, fmt.Errorf("trackable %s: %w", id, store.ErrNotFound)
		}
		return model.Trackable{}, fmt.Errorf("load trackable %s: %w", id, err)
	}
	return *tr, nil
}
