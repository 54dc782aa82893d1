package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Mep-xx/dwellwell-sub001/internal/model"
)

const occurrenceColumns = `id, home_id, room_id, trackable_id, template_id, template_version,
	source_type, dedupe_key, title, description, steps, equipment, resources,
	status, due_date, completed_at, paused_at, archived_at, superseded, deleted,
	recurrence, criticality, can_defer, defer_limit_days, created_at`

// execer abstracts over *sql.DB and *sql.Tx so occurrence writes can run
// standalone or inside a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// InsertOccurrence creates a task occurrence, deferring to the live-dedupe-key
// uniqueness constraint: if a live occurrence already holds the key, nothing
// is inserted and the existing occurrence is returned.
//
// The dedupe key is written in the same INSERT as the rest of the row, so a
// failed write can never leave an occurrence without its key. Together with
// INSERT OR IGNORE this makes creation safe to retry and safe under
// concurrent reconciliations.
func (s *Store) InsertOccurrence(ctx context.Context, o *model.TaskOccurrence) (created bool, stored *model.TaskOccurrence, err error) {
	created, err = insertOccurrence(ctx, s.db, o)
	if err != nil {
		return false, nil, err
	}
	if created {
		return true, o, nil
	}

	// Lost the race (or a retry): return the occurrence that holds the key.
	existing, err := s.FindLiveByDedupeKey(ctx, o.DedupeKey)
	if err != nil {
		return false, nil, fmt.Errorf("insert occurrence %q: fetch existing: %w", o.DedupeKey, err)
	}
	return false, existing, nil
}

func insertOccurrence(ctx context.Context, db execer, o *model.TaskOccurrence) (bool, error) {
	steps, err := marshalSteps(o.Steps)
	if err != nil {
		return false, fmt.Errorf("insert occurrence: %w", err)
	}
	equipment, err := marshalStrings(o.Equipment)
	if err != nil {
		return false, fmt.Errorf("insert occurrence: %w", err)
	}
	resources, err := marshalStrings(o.Resources)
	if err != nil {
		return false, fmt.Errorf("insert occurrence: %w", err)
	}

	res, err := db.ExecContext(ctx, `
		INSERT OR IGNORE INTO task_occurrences
		(id, home_id, room_id, trackable_id, template_id, template_version,
		 source_type, dedupe_key, title, description, steps, equipment, resources,
		 status, due_date, completed_at, paused_at, archived_at, superseded, deleted,
		 recurrence, criticality, can_defer, defer_limit_days, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		o.ID, o.HomeID, o.RoomID, o.TrackableID, o.TemplateID, o.TemplateVer,
		string(o.SourceType), o.DedupeKey, o.Title, o.Description, steps, equipment, resources,
		string(o.Status), nullTime(o.DueDate), nullTime(o.CompletedAt),
		nullTime(o.PausedAt), nullTime(o.ArchivedAt), boolToInt(o.Superseded), 0,
		o.Recurrence, string(o.Criticality), boolToInt(o.CanDefer), o.DeferLimitDays, o.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert occurrence %q: %w", o.DedupeKey, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert occurrence %q: %w", o.DedupeKey, err)
	}
	return n > 0, nil
}

// FindLiveByDedupeKey returns the live (non-superseded, non-deleted)
// occurrence holding the key, or ErrNotFound.
func (s *Store) FindLiveByDedupeKey(ctx context.Context, dedupeKey string) (*model.TaskOccurrence, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+occurrenceColumns+`
		FROM task_occurrences
		WHERE dedupe_key = ? AND superseded = 0 AND deleted = 0
	`, dedupeKey)
	return scanOccurrence(row)
}

// GetOccurrence retrieves an occurrence by ID. Returns ErrNotFound if missing.
func (s *Store) GetOccurrence(ctx context.Context, id string) (*model.TaskOccurrence, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+occurrenceColumns+` FROM task_occurrences WHERE id = ? AND deleted = 0
	`, id)
	return scanOccurrence(row)
}

// UpdateOccurrence persists lifecycle mutations on an occurrence: status,
// dates, orthogonal flags, superseded marker, and copied content (for
// template re-sync).
func (s *Store) UpdateOccurrence(ctx context.Context, o *model.TaskOccurrence) error {
	return updateOccurrence(ctx, s.db, o)
}

func updateOccurrence(ctx context.Context, db execer, o *model.TaskOccurrence) error {
	steps, err := marshalSteps(o.Steps)
	if err != nil {
		return fmt.Errorf("update occurrence: %w", err)
	}
	equipment, err := marshalStrings(o.Equipment)
	if err != nil {
		return fmt.Errorf("update occurrence: %w", err)
	}
	resources, err := marshalStrings(o.Resources)
	if err != nil {
		return fmt.Errorf("update occurrence: %w", err)
	}

	res, err := db.ExecContext(ctx, `
		UPDATE task_occurrences SET
			template_version = ?, title = ?, description = ?, steps = ?, equipment = ?, resources = ?,
			status = ?, due_date = ?, completed_at = ?, paused_at = ?, archived_at = ?,
			superseded = ?, recurrence = ?, criticality = ?, can_defer = ?, defer_limit_days = ?
		WHERE id = ? AND deleted = 0
	`,
		o.TemplateVer, o.Title, o.Description, steps, equipment, resources,
		string(o.Status), nullTime(o.DueDate), nullTime(o.CompletedAt),
		nullTime(o.PausedAt), nullTime(o.ArchivedAt),
		boolToInt(o.Superseded), o.Recurrence, string(o.Criticality),
		boolToInt(o.CanDefer), o.DeferLimitDays,
		o.ID,
	)
	if err != nil {
		return fmt.Errorf("update occurrence %q: %w", o.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update occurrence %q: %w", o.ID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SupersedeAndInsert atomically retires a finished recurring occurrence and
// inserts its successor. The supersede UPDATE runs first so the live
// dedupe-key slot is free when the successor INSERT hits the partial unique
// index; both land in one transaction, so a crash can never leave the
// predecessor retired without its successor.
//
// INSERT OR IGNORE semantics match InsertOccurrence: if another live
// occurrence already holds the key, created is false and the holder is
// returned.
func (s *Store) SupersedeAndInsert(ctx context.Context, finished, next *model.TaskOccurrence) (created bool, stored *model.TaskOccurrence, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, nil, fmt.Errorf("supersede %q: begin: %w", finished.ID, err)
	}
	defer tx.Rollback()

	if err := updateOccurrence(ctx, tx, finished); err != nil {
		return false, nil, err
	}
	created, err = insertOccurrence(ctx, tx, next)
	if err != nil {
		return false, nil, err
	}
	if err := tx.Commit(); err != nil {
		return false, nil, fmt.Errorf("supersede %q: commit: %w", finished.ID, err)
	}

	if created {
		return true, next, nil
	}
	existing, err := s.FindLiveByDedupeKey(ctx, next.DedupeKey)
	if err != nil {
		return false, nil, fmt.Errorf("insert occurrence %q: fetch existing: %w", next.DedupeKey, err)
	}
	return false, existing, nil
}

// ListOccurrencesByTrackable returns the occurrences owned by a trackable in
// stable order. When activeOnly is set, terminal (COMPLETED/SKIPPED) and
// superseded rows are excluded.
func (s *Store) ListOccurrencesByTrackable(ctx context.Context, trackableID string, activeOnly bool) ([]model.TaskOccurrence, error) {
	query := `SELECT ` + occurrenceColumns + ` FROM task_occurrences
		WHERE trackable_id = ? AND deleted = 0`
	if activeOnly {
		query += ` AND status = 'PENDING' AND superseded = 0`
	}
	query += ` ORDER BY created_at ASC, id COLLATE BINARY ASC`
	return s.listOccurrences(ctx, query, trackableID)
}

// BulkArchive stamps archived_at on every non-terminal, not-yet-archived
// occurrence owned by the given trackable or room. Returns the number of
// occurrences archived.
func (s *Store) BulkArchive(ctx context.Context, ownerColumn, ownerID string, at time.Time) (int, error) {
	col, err := ownerCol(ownerColumn)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE task_occurrences SET archived_at = ?
		WHERE `+col+` = ? AND deleted = 0 AND superseded = 0
		  AND status = 'PENDING' AND archived_at IS NULL
	`, at, ownerID)
	if err != nil {
		return 0, fmt.Errorf("bulk archive %s=%q: %w", col, ownerID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bulk archive %s=%q: %w", col, ownerID, err)
	}
	return int(n), nil
}

// ListArchivedPending returns the archived-but-live PENDING occurrences owned
// by the given trackable or room, for unarchive cascades.
func (s *Store) ListArchivedPending(ctx context.Context, ownerColumn, ownerID string) ([]model.TaskOccurrence, error) {
	col, err := ownerCol(ownerColumn)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + occurrenceColumns + ` FROM task_occurrences
		WHERE ` + col + ` = ? AND deleted = 0 AND superseded = 0
		  AND status = 'PENDING' AND archived_at IS NOT NULL
		ORDER BY created_at ASC, id COLLATE BINARY ASC`
	return s.listOccurrences(ctx, query, ownerID)
}

// ownerCol whitelists the owner columns usable for bulk lifecycle cascades.
func ownerCol(name string) (string, error) {
	switch name {
	case "trackable_id", "room_id":
		return name, nil
	default:
		return "", fmt.Errorf("bulk occurrence operation: unsupported owner column %q", name)
	}
}

func (s *Store) listOccurrences(ctx context.Context, query string, args ...any) ([]model.TaskOccurrence, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	defer rows.Close()

	occurrences := []model.TaskOccurrence{}
	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, err
		}
		occurrences = append(occurrences, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate occurrences: %w", err)
	}
	return occurrences, nil
}

// CountOccurrences returns the number of live occurrences (superseded rows
// included when includeSuperseded is set). Used by tests and the harness to
// assert the dedup and idempotency invariants.
func (s *Store) CountOccurrences(ctx context.Context, includeSuperseded bool) (int, error) {
	query := `SELECT COUNT(*) FROM task_occurrences WHERE deleted = 0`
	if !includeSuperseded {
		query += ` AND superseded = 0`
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count occurrences: %w", err)
	}
	return n, nil
}

func scanOccurrence(row rowScanner) (*model.TaskOccurrence, error) {
	var (
		o                             model.TaskOccurrence
		sourceType, status            string
		steps, equipment, resources   string
		dueDate, completedAt          sql.NullTime
		pausedAt, archivedAt          sql.NullTime
		superseded, deleted, canDefer int
		criticality                   string
	)
	err := row.Scan(
		&o.ID, &o.HomeID, &o.RoomID, &o.TrackableID, &o.TemplateID, &o.TemplateVer,
		&sourceType, &o.DedupeKey, &o.Title, &o.Description, &steps, &equipment, &resources,
		&status, &dueDate, &completedAt, &pausedAt, &archivedAt, &superseded, &deleted,
		&o.Recurrence, &criticality, &canDefer, &o.DeferLimitDays, &o.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan occurrence: %w", err)
	}

	o.SourceType = model.ScopeType(sourceType)
	o.Status = model.TaskStatus(status)
	o.Criticality = model.Criticality(criticality)
	o.DueDate = timePtr(dueDate)
	o.CompletedAt = timePtr(completedAt)
	o.PausedAt = timePtr(pausedAt)
	o.ArchivedAt = timePtr(archivedAt)
	o.Superseded = superseded != 0
	o.CanDefer = canDefer != 0
	if o.Steps, err = unmarshalSteps(steps); err != nil {
		return nil, err
	}
	if o.Equipment, err = unmarshalStrings(equipment); err != nil {
		return nil, err
	}
	if o.Resources, err = unmarshalStrings(resources); err != nil {
		return nil, err
	}
	return &o, nil
}
