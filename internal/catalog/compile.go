// Package catalog compiles maintenance catalogs authored in CUE into
// templates and rules and applies them to the store.
//
// A catalog is a directory of .cue files declaring top-level `template` and
// `rule` structs keyed by their stable keys:
//
//	template: "replace-hvac-filter": {
//		title:      "Replace HVAC filter"
//		recurrence: "3 months"
//		...
//	}
//	rule: "hvac-filter": {
//		scope:        "trackable"
//		template_key: "replace-hvac-filter"
//		conditions: [{target: "trackable", field: "type", op: "eq", value: "hvac"}]
//	}
//
// Compilation uses the CUE SDK's Go API directly (not CLI subprocess), so
// catalog authors get CUE's own constraint checking and position-accurate
// errors for free.
package catalog

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/Mep-xx/dwellwell-sub001/internal/model"
)

// CompileError represents a catalog compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileTemplate parses a CUE value into a Template. The template key comes
// from the struct label:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`template: "replace-filter": { ... }`)
//	tpl, err := CompileTemplate(v.LookupPath(cue.ParsePath(`template."replace-filter"`)))
func CompileTemplate(v cue.Value) (*model.Template, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	tpl := &model.Template{Key: labelOf(v)}

	title, err := requiredString(v, "title")
	if err != nil {
		return nil, err
	}
	tpl.Title = title

	if tpl.Description, err = optionalString(v, "description"); err != nil {
		return nil, err
	}
	if tpl.Category, err = optionalString(v, "category"); err != nil {
		return nil, err
	}
	if tpl.Recurrence, err = optionalString(v, "recurrence"); err != nil {
		return nil, err
	}

	crit, err := optionalString(v, "criticality")
	if err != nil {
		return nil, err
	}
	if crit == "" {
		crit = string(model.CriticalityMedium)
	}
	tpl.Criticality = model.Criticality(crit)

	if tpl.CanDefer, err = optionalBool(v, "can_defer"); err != nil {
		return nil, err
	}
	if tpl.DeferLimitDays, err = optionalInt(v, "defer_limit_days"); err != nil {
		return nil, err
	}
	if tpl.EstimatedMinutes, err = optionalInt(v, "estimated_minutes"); err != nil {
		return nil, err
	}
	if tpl.EstimatedCostCents, err = optionalInt(v, "estimated_cost_cents"); err != nil {
		return nil, err
	}
	if tpl.CanBeOutsourced, err = optionalBool(v, "can_be_outsourced"); err != nil {
		return nil, err
	}

	steps, err := optionalStrings(v, "steps")
	if err != nil {
		return nil, err
	}
	for i, text := range steps {
		tpl.Steps = append(tpl.Steps, model.TemplateStep{Idx: i, Text: text})
	}

	if tpl.Equipment, err = optionalStrings(v, "equipment"); err != nil {
		return nil, err
	}
	if tpl.Resources, err = optionalStrings(v, "resources"); err != nil {
		return nil, err
	}

	state, err := optionalString(v, "state")
	if err != nil {
		return nil, err
	}
	if state == "" {
		state = string(model.TemplateDraft)
	}
	tpl.State = model.TemplateState(state)

	return tpl, nil
}

// CompileRule parses a CUE value into a Rule. The rule key comes from the
// struct label.
func CompileRule(v cue.Value) (*model.Rule, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	rule := &model.Rule{Key: labelOf(v)}

	scope, err := requiredString(v, "scope")
	if err != nil {
		return nil, err
	}
	rule.Scope = model.ScopeType(scope)

	if rule.TemplateKey, err = requiredString(v, "template_key"); err != nil {
		return nil, err
	}

	enabledVal := v.LookupPath(cue.ParsePath("enabled"))
	rule.Enabled = true
	if enabledVal.Exists() {
		if rule.Enabled, err = enabledVal.Bool(); err != nil {
			return nil, formatCUEError(err)
		}
	}

	if rule.ReevalOn, err = optionalStrings(v, "reeval_on"); err != nil {
		return nil, err
	}

	condsVal := v.LookupPath(cue.ParsePath("conditions"))
	if condsVal.Exists() {
		iter, err := condsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		idx := 0
		for iter.Next() {
			cond, err := compileCondition(iter.Value(), idx)
			if err != nil {
				return nil, err
			}
			rule.Conditions = append(rule.Conditions, *cond)
			idx++
		}
	}

	return rule, nil
}

func compileCondition(v cue.Value, idx int) (*model.Condition, error) {
	cond := &model.Condition{Idx: idx}

	target, err := requiredString(v, "target")
	if err != nil {
		return nil, err
	}
	cond.Target = model.ConditionTarget(target)

	if cond.Field, err = requiredString(v, "field"); err != nil {
		return nil, err
	}

	op, err := requiredString(v, "op")
	if err != nil {
		return nil, err
	}
	cond.Op = model.ConditionOp(op)

	if cond.Value, err = optionalString(v, "value"); err != nil {
		return nil, err
	}
	if cond.Values, err = optionalStrings(v, "values"); err != nil {
		return nil, err
	}

	return cond, nil
}

// labelOf extracts the struct label of a CUE value, unquoting if needed.
func labelOf(v cue.Value) string {
	labels := v.Path().Selectors()
	if len(labels) == 0 {
		return ""
	}
	return strings.Trim(labels[len(labels)-1].String(), `"`)
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalBool(v cue.Value, field string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func optionalInt(v cue.Value, field string) (int, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, nil
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return int(n), nil
}

func optionalStrings(v cue.Value, field string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	iter, err := fv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := cueerrors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
