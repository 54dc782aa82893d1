package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Mep-xx/dwellwell-sub001/internal/model"
	"github.com/Mep-xx/dwellwell-sub001/internal/recurrence"
)

// instantiate materializes a matched template into a task occurrence for the
// scope, or returns the existing live occurrence when the dedupe key is
// already taken. The bool reports whether a new row was created.
func (e *Engine) instantiate(ctx context.Context, snap *model.ScopeSnapshot, m Match) (model.TaskOccurrence, bool, error) {
	now := e.clock.Now()

	interval, err := recurrence.Parse(m.Template.Recurrence)
	var warn *recurrence.ParseWarning
	if errors.As(err, &warn) {
		e.log.Warn("unrecognized recurrence, using default interval",
			slog.String("template", m.Template.Key),
			slog.String("descriptor", warn.Descriptor))
	}

	occ := occurrenceFromTemplate(m.Template, snap, now, interval)
	occ.ID = e.ids.NewID()
	occ.DedupeKey = model.DedupeKey(snap.Type, snap.ID, m.Template.Key, 0)

	created, stored, err := e.store.InsertOccurrence(ctx, &occ)
	if err != nil {
		return model.TaskOccurrence{}, false, fmt.Errorf("instantiate %s: %w", occ.DedupeKey, err)
	}
	return *stored, created, nil
}

// occurrenceFromTemplate copies template content into a fresh PENDING
// occurrence. Content is snapshotted at instantiation time so later template
// edits never mutate tasks already on someone's list.
func occurrenceFromTemplate(tpl model.Template, snap *model.ScopeSnapshot, now time.Time, interval recurrence.Interval) model.TaskOccurrence {
	due := interval.AddTo(now)
	return model.TaskOccurrence{
		HomeID:         snap.HomeID,
		RoomID:         snap.RoomID,
		TrackableID:    snap.TrackableID,
		TemplateID:     tpl.ID,
		TemplateVer:    tpl.Version,
		SourceType:     snap.Type,
		Title:          tpl.Title,
		Description:    tpl.Description,
		Steps:          append([]model.TemplateStep(nil), tpl.Steps...),
		Equipment:      append([]string(nil), tpl.Equipment...),
		Resources:      append([]string(nil), tpl.Resources...),
		Status:         model.TaskPending,
		DueDate:        &due,
		Recurrence:     tpl.Recurrence,
		Criticality:    tpl.Criticality,
		CanDefer:       tpl.CanDefer,
		DeferLimitDays: tpl.DeferLimitDays,
		CreatedAt:      now,
	}
}
