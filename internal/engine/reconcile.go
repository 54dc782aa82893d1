package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Mep-xx/dwellwell-sub001/internal/model"
	"github.com/Mep-xx/dwellwell-sub001/internal/store"
)

// GenerateResult reports the outcome of one reconciliation pass over a scope.
type GenerateResult struct {
	ScopeType model.ScopeType
	ScopeID   string

	// Created holds the occurrences materialized by this pass.
	Created []model.TaskOccurrence
	// Existing holds live occurrences whose dedupe keys were already taken.
	Existing []model.TaskOccurrence
	// Warnings collects per-rule failures that did not abort the pass.
	Warnings []string
}

// GenerateForScope reconciles a single scope against the rule catalog:
// snapshot the scope, match rules, and instantiate each matched template.
//
// The pass is additive and idempotent. Occurrences that already exist are
// reported, never touched, and rows no longer backed by a matching rule are
// left alone. Running it twice in a row produces no new work.
//
// changedAttributes, when non-empty, narrows evaluation to rules whose
// reevalOn set intersects it. Rules that declare no reevalOn fields only run
// on a full pass (empty changedAttributes).
func (e *Engine) GenerateForScope(ctx context.Context, scopeType model.ScopeType, scopeID string, changedAttributes []string) (*GenerateResult, error) {
	if !model.ValidScopeTypes[scopeType] {
		return nil, &Error{Code: ErrCodeUnknownScopeType, Message: "unknown scope type", ScopeType: string(scopeType), ScopeID: scopeID}
	}

	snap, err := e.store.ScopeSnapshot(ctx, scopeType, scopeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewMissingScopeError(string(scopeType), scopeID)
		}
		return nil, fmt.Errorf("snapshot %s %s: %w", scopeType, scopeID, err)
	}

	rules, err := e.store.ListEnabledRules(ctx, scopeType)
	if err != nil {
		return nil, fmt.Errorf("list rules for %s: %w", scopeType, err)
	}
	rules = filterByReevalOn(rules, changedAttributes)

	result := &GenerateResult{ScopeType: scopeType, ScopeID: scopeID}

	templates := make(map[string]model.Template, len(rules))
	for _, rule := range rules {
		if _, ok := templates[rule.TemplateKey]; ok {
			continue
		}
		tpl, err := e.store.GetTemplateByKey(ctx, rule.TemplateKey)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				e.log.Warn("rule references missing template",
					slog.String("rule", rule.Key),
					slog.String("template", rule.TemplateKey))
				result.Warnings = append(result.Warnings, fmt.Sprintf("rule %s: template %s not found", rule.Key, rule.TemplateKey))
				continue
			}
			return nil, fmt.Errorf("load template %s: %w", rule.TemplateKey, err)
		}
		templates[rule.TemplateKey] = *tpl
	}

	for _, m := range MatchRules(snap, rules, templates) {
		occ, created, err := e.instantiate(ctx, snap, m)
		if err != nil {
			e.log.Warn("instantiation failed",
				slog.String("rule", m.Rule.Key),
				slog.String("template", m.Template.Key),
				slog.Any("error", err))
			result.Warnings = append(result.Warnings, fmt.Sprintf("rule %s: %v", m.Rule.Key, err))
			continue
		}
		if created {
			result.Created = append(result.Created, occ)
			e.log.Info("task created",
				slog.String("dedupe_key", occ.DedupeKey),
				slog.String("template", m.Template.Key))
		} else {
			result.Existing = append(result.Existing, occ)
		}
	}

	return result, nil
}

// filterByReevalOn keeps only the rules reactive to the changed attributes.
// An empty change set means a full pass and keeps everything.
func filterByReevalOn(rules []model.Rule, changed []string) []model.Rule {
	if len(changed) == 0 {
		return rules
	}
	changedSet := make(map[string]struct{}, len(changed))
	for _, f := range changed {
		changedSet[f] = struct{}{}
	}

	kept := rules[:0:0]
	for _, rule := range rules {
		for _, field := range rule.ReevalOn {
			if _, ok := changedSet[field]; ok {
				kept = append(kept, rule)
				break
			}
		}
	}
	return kept
}
