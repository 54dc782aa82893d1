package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Mep-xx/dwellwell-sub001/internal/store"
)

// ApplyResult reports what an Apply changed in the store.
type ApplyResult struct {
	TemplatesUpserted int
	RulesUpserted     int
}

// Apply upserts every template and rule of the catalog into the store.
// Templates go first so rule→template references resolve on a fresh
// database. Upserts are keyed by the catalog keys: re-applying an unchanged
// catalog is a no-op, and edits bump template versions without touching
// already-issued occurrences.
func Apply(ctx context.Context, st *store.Store, cat *Catalog) (*ApplyResult, error) {
	res := &ApplyResult{}

	for i := range cat.Templates {
		tpl := cat.Templates[i]
		if tpl.ID == "" {
			tpl.ID = uuid.Must(uuid.NewV7()).String()
		}
		if _, err := st.UpsertTemplate(ctx, &tpl); err != nil {
			return res, fmt.Errorf("apply template %q: %w", tpl.Key, err)
		}
		res.TemplatesUpserted++
	}

	for i := range cat.Rules {
		rule := cat.Rules[i]
		if rule.ID == "" {
			rule.ID = uuid.Must(uuid.NewV7()).String()
		}
		if _, err := st.UpsertRule(ctx, &rule); err != nil {
			return res, fmt.Errorf("apply rule %q: %w", rule.Key, err)
		}
		res.RulesUpserted++
	}

	return res, nil
}
