package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Mep-xx/dwellwell-sub001/internal/model"
)

// UpsertRule inserts or updates a rule keyed by Key, replacing its conditions
// atomically. Rules are administered records: the engine only reads them.
func (s *Store) UpsertRule(ctx context.Context, r *model.Rule) (*model.Rule, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("upsert rule: %w", err)
	}

	reevalOn, err := marshalStrings(r.ReevalOn)
	if err != nil {
		return nil, fmt.Errorf("upsert rule %q: %w", r.Key, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("upsert rule %q: begin: %w", r.Key, err)
	}
	defer tx.Rollback()

	var existingID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM rules WHERE key = ?`, r.Key).Scan(&existingID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if r.ID == "" {
			return nil, fmt.Errorf("upsert rule %q: id is required for insert", r.Key)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO rules (id, key, scope, enabled, reeval_on, template_key)
			VALUES (?, ?, ?, ?, ?, ?)
		`, r.ID, r.Key, string(r.Scope), boolToInt(r.Enabled), reevalOn, r.TemplateKey)
		if err != nil {
			return nil, fmt.Errorf("insert rule %q: %w", r.Key, err)
		}
	case err != nil:
		return nil, fmt.Errorf("upsert rule %q: %w", r.Key, err)
	default:
		r.ID = existingID
		_, err = tx.ExecContext(ctx, `
			UPDATE rules SET scope = ?, enabled = ?, reeval_on = ?, template_key = ?
			WHERE id = ?
		`, string(r.Scope), boolToInt(r.Enabled), reevalOn, r.TemplateKey, r.ID)
		if err != nil {
			return nil, fmt.Errorf("update rule %q: %w", r.Key, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM rule_conditions WHERE rule_id = ?`, r.ID); err != nil {
			return nil, fmt.Errorf("replace conditions for rule %q: %w", r.Key, err)
		}
	}

	for i, c := range r.Conditions {
		vals, err := marshalStrings(c.Values)
		if err != nil {
			return nil, fmt.Errorf("rule %q condition %d: %w", r.Key, i, err)
		}
		idx := c.Idx
		if idx == 0 {
			idx = i
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO rule_conditions (rule_id, idx, target, field, op, value, vals)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, r.ID, idx, string(c.Target), c.Field, string(c.Op), c.Value, vals)
		if err != nil {
			return nil, fmt.Errorf("insert condition %d for rule %q: %w", i, r.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("upsert rule %q: commit: %w", r.Key, err)
	}
	return r, nil
}

// ListEnabledRules returns the enabled rules for a scope type, ordered by key,
// each with its conditions in idx order.
func (s *Store) ListEnabledRules(ctx context.Context, scope model.ScopeType) ([]model.Rule, error) {
	return s.listRules(ctx, `WHERE scope = ? AND enabled = 1`, string(scope))
}

// ListRules returns every rule regardless of enabled state, ordered by key.
func (s *Store) ListRules(ctx context.Context) ([]model.Rule, error) {
	return s.listRules(ctx, ``)
}

func (s *Store) listRules(ctx context.Context, where string, args ...any) ([]model.Rule, error) {
	query := `SELECT id, key, scope, enabled, reeval_on, template_key FROM rules ` +
		where + ` ORDER BY key COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	rules := []model.Rule{}
	for rows.Next() {
		var (
			r        model.Rule
			scope    string
			enabled  int
			reevalOn string
		)
		if err := rows.Scan(&r.ID, &r.Key, &scope, &enabled, &reevalOn, &r.TemplateKey); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		r.Scope = model.ScopeType(scope)
		r.Enabled = enabled != 0
		if r.ReevalOn, err = unmarshalStrings(reevalOn); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}

	for i := range rules {
		conditions, err := s.listConditions(ctx, rules[i].ID)
		if err != nil {
			return nil, err
		}
		rules[i].Conditions = conditions
	}
	return rules, nil
}

func (s *Store) listConditions(ctx context.Context, ruleID string) ([]model.Condition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, target, field, op, value, vals
		FROM rule_conditions WHERE rule_id = ?
		ORDER BY idx ASC
	`, ruleID)
	if err != nil {
		return nil, fmt.Errorf("list conditions: %w", err)
	}
	defer rows.Close()

	var conditions []model.Condition
	for rows.Next() {
		var (
			c          model.Condition
			target, op string
			vals       string
		)
		if err := rows.Scan(&c.Idx, &target, &c.Field, &op, &c.Value, &vals); err != nil {
			return nil, fmt.Errorf("scan condition: %w", err)
		}
		c.Target = model.ConditionTarget(target)
		c.Op = model.ConditionOp(op)
		if c.Values, err = unmarshalStrings(vals); err != nil {
			return nil, err
		}
		conditions = append(conditions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conditions: %w", err)
	}
	return conditions, nil
}
