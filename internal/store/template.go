package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Mep-xx/dwellwell-sub001/internal/model"
)

// ErrNotFound is returned by single-record lookups when no row matches.
var ErrNotFound = errors.New("not found")

// UpsertTemplate inserts or updates a template keyed by Key.
//
// New templates are stored at version 1 (the caller provides the ID). For
// existing templates the stored ID is kept; when the incoming content differs
// from what is stored, the row is updated and the version counter bumped.
// Already-issued occurrences are untouched - they copied content at creation
// time and record the version they were cut from.
//
// Returns the stored template (with its final ID and version).
func (s *Store) UpsertTemplate(ctx context.Context, t *model.Template) (*model.Template, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("upsert template: %w", err)
	}

	existing, err := s.GetTemplateByKey(ctx, t.Key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if existing == nil {
		if t.ID == "" {
			return nil, fmt.Errorf("upsert template %q: id is required for insert", t.Key)
		}
		stored := *t
		stored.Version = 1
		if err := s.insertTemplate(ctx, &stored); err != nil {
			return nil, err
		}
		return &stored, nil
	}

	if templateContentEqual(existing, t) {
		return existing, nil
	}

	stored := *t
	stored.ID = existing.ID
	stored.Version = existing.Version + 1
	if err := s.updateTemplate(ctx, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// templateContentEqual compares the administrable content of two templates,
// ignoring ID and Version.
func templateContentEqual(a, b *model.Template) bool {
	na, nb := *a, *b
	na.ID, nb.ID = "", ""
	na.Version, nb.Version = 0, 0
	ja, errA := json.Marshal(na)
	jb, errB := json.Marshal(nb)
	if errA != nil || errB != nil {
		return false
	}
	return string(ja) == string(jb)
}

func (s *Store) insertTemplate(ctx context.Context, t *model.Template) error {
	steps, err := marshalSteps(t.Steps)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	equipment, err := marshalStrings(t.Equipment)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	resources, err := marshalStrings(t.Resources)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO templates
		(id, key, title, description, category, recurrence, criticality,
		 can_defer, defer_limit_days, estimated_minutes, estimated_cost_cents,
		 can_be_outsourced, steps, equipment, resources, state, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID, t.Key, t.Title, t.Description, t.Category, t.Recurrence, string(t.Criticality),
		boolToInt(t.CanDefer), t.DeferLimitDays, t.EstimatedMinutes, t.EstimatedCostCents,
		boolToInt(t.CanBeOutsourced), steps, equipment, resources, string(t.State), t.Version,
	)
	if err != nil {
		return fmt.Errorf("insert template %q: %w", t.Key, err)
	}
	return nil
}

func (s *Store) updateTemplate(ctx context.Context, t *model.Template) error {
	steps, err := marshalSteps(t.Steps)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	equipment, err := marshalStrings(t.Equipment)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	resources, err := marshalStrings(t.Resources)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE templates SET
			title = ?, description = ?, category = ?, recurrence = ?, criticality = ?,
			can_defer = ?, defer_limit_days = ?, estimated_minutes = ?, estimated_cost_cents = ?,
			can_be_outsourced = ?, steps = ?, equipment = ?, resources = ?, state = ?, version = ?
		WHERE key = ?
	`,
		t.Title, t.Description, t.Category, t.Recurrence, string(t.Criticality),
		boolToInt(t.CanDefer), t.DeferLimitDays, t.EstimatedMinutes, t.EstimatedCostCents,
		boolToInt(t.CanBeOutsourced), steps, equipment, resources, string(t.State), t.Version,
		t.Key,
	)
	if err != nil {
		return fmt.Errorf("update template %q: %w", t.Key, err)
	}
	return nil
}

const templateColumns = `id, key, title, description, category, recurrence, criticality,
	can_defer, defer_limit_days, estimated_minutes, estimated_cost_cents,
	can_be_outsourced, steps, equipment, resources, state, version`

// GetTemplateByKey retrieves a template by its stable key.
// Returns ErrNotFound if no template has the key.
func (s *Store) GetTemplateByKey(ctx context.Context, key string) (*model.Template, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE key = ?`, key)
	return scanTemplate(row)
}

// GetTemplate retrieves a template by ID.
// Returns ErrNotFound if no template has the ID.
func (s *Store) GetTemplate(ctx context.Context, id string) (*model.Template, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE id = ?`, id)
	return scanTemplate(row)
}

// ListTemplates returns templates ordered by key. When verifiedOnly is set,
// DRAFT templates are excluded (the engine only instantiates VERIFIED ones).
func (s *Store) ListTemplates(ctx context.Context, verifiedOnly bool) ([]model.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates`
	var args []any
	if verifiedOnly {
		query += ` WHERE state = ?`
		args = append(args, string(model.TemplateVerified))
	}
	query += ` ORDER BY key COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	templates := []model.Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return templates, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*model.Template, error) {
	var (
		t                           model.Template
		criticality, state          string
		canDefer, canBeOutsourced   int
		steps, equipment, resources string
	)
	err := row.Scan(
		&t.ID, &t.Key, &t.Title, &t.Description, &t.Category, &t.Recurrence, &criticality,
		&canDefer, &t.DeferLimitDays, &t.EstimatedMinutes, &t.EstimatedCostCents,
		&canBeOutsourced, &steps, &equipment, &resources, &state, &t.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan template: %w", err)
	}

	t.Criticality = model.Criticality(criticality)
	t.State = model.TemplateState(state)
	t.CanDefer = canDefer != 0
	t.CanBeOutsourced = canBeOutsourced != 0
	if t.Steps, err = unmarshalSteps(steps); err != nil {
		return nil, err
	}
	if t.Equipment, err = unmarshalStrings(equipment); err != nil {
		return nil, err
	}
	if t.Resources, err = unmarshalStrings(resources); err != nil {
		return nil, err
	}
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
