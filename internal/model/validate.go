package model

import "fmt"

// Validate checks a template definition for administrative upsert.
func (t *Template) Validate() error {
	if t.Key == "" {
		return fmt.Errorf("template: key is required")
	}
	if t.Title == "" {
		return fmt.Errorf("template %q: title is required", t.Key)
	}
	switch t.Criticality {
	case CriticalityLow, CriticalityMedium, CriticalityHigh:
	default:
		return fmt.Errorf("template %q: invalid criticality %q", t.Key, t.Criticality)
	}
	switch t.State {
	case TemplateDraft, TemplateVerified:
	default:
		return fmt.Errorf("template %q: invalid state %q", t.Key, t.State)
	}
	if t.CanDefer && t.DeferLimitDays < 0 {
		return fmt.Errorf("template %q: defer_limit_days must be >= 0", t.Key)
	}
	return nil
}

// Validate checks a rule definition for administrative upsert.
func (r *Rule) Validate() error {
	if r.Key == "" {
		return fmt.Errorf("rule: key is required")
	}
	if !ValidScopeTypes[r.Scope] {
		return fmt.Errorf("rule %q: invalid scope %q", r.Key, r.Scope)
	}
	if r.TemplateKey == "" {
		return fmt.Errorf("rule %q: template_key is required", r.Key)
	}
	for i := range r.Conditions {
		if err := r.Conditions[i].Validate(); err != nil {
			return fmt.Errorf("rule %q: condition %d: %w", r.Key, i, err)
		}
	}
	return nil
}

// Validate checks a single condition definition.
func (c *Condition) Validate() error {
	if !ValidConditionTargets[c.Target] {
		return fmt.Errorf("invalid target %q", c.Target)
	}
	if c.Field == "" {
		return fmt.Errorf("field is required")
	}
	if !ValidConditionOps[c.Op] {
		return fmt.Errorf("invalid op %q", c.Op)
	}
	switch c.Op {
	case OpIn, OpNotIn:
		if len(c.Values) == 0 {
			return fmt.Errorf("op %q requires values", c.Op)
		}
	case OpExists, OpNotExists:
		// value ignored
	default:
		if c.Value == "" {
			return fmt.Errorf("op %q requires value", c.Op)
		}
	}
	return nil
}
