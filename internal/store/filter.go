package store

import (
	"context"
	"strings"
	"time"

	"github.com/Mep-xx/dwellwell-sub001/internal/model"
)

// OccurrenceFilter selects task occurrences for list queries. Zero values
// mean "no constraint". Filters compile to parameterized SQL - values are
// never interpolated - and every compiled query carries a stable ORDER BY so
// repeated reads return rows in the same order.
type OccurrenceFilter struct {
	HomeID      string
	RoomID      string
	TrackableID string
	Status      model.TaskStatus
	DueBefore   *time.Time

	// Archived/paused occurrences are hidden from active views by default.
	IncludeArchived bool
	IncludePaused   bool

	// Superseded predecessors are history; excluded unless asked for.
	IncludeSuperseded bool
}

// compile renders the filter into a WHERE clause (without the leading WHERE)
// and its parameters.
func (f OccurrenceFilter) compile() (string, []any) {
	conds := []string{"deleted = 0"}
	var params []any

	if !f.IncludeSuperseded {
		conds = append(conds, "superseded = 0")
	}
	if !f.IncludeArchived {
		conds = append(conds, "archived_at IS NULL")
	}
	if !f.IncludePaused {
		conds = append(conds, "paused_at IS NULL")
	}
	if f.HomeID != "" {
		conds = append(conds, "home_id = ?")
		params = append(params, f.HomeID)
	}
	if f.RoomID != "" {
		conds = append(conds, "room_id = ?")
		params = append(params, f.RoomID)
	}
	if f.TrackableID != "" {
		conds = append(conds, "trackable_id = ?")
		params = append(params, f.TrackableID)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		params = append(params, string(f.Status))
	}
	if f.DueBefore != nil {
		conds = append(conds, "due_date IS NOT NULL AND due_date <= ?")
		params = append(params, *f.DueBefore)
	}

	return strings.Join(conds, " AND "), params
}

// ListOccurrences returns the occurrences matching the filter, ordered by due
// date (nulls last) with id as the deterministic tiebreaker.
func (s *Store) ListOccurrences(ctx context.Context, f OccurrenceFilter) ([]model.TaskOccurrence, error) {
	where, params := f.compile()
	query := `SELECT ` + occurrenceColumns + ` FROM task_occurrences WHERE ` + where +
		` ORDER BY due_date IS NULL, due_date ASC, id COLLATE BINARY ASC`
	return s.listOccurrences(ctx, query, params...)
}
