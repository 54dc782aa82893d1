package engine

import (
	"strconv"
	"strings"

	"github.com/Mep-xx/dwellwell-sub001/internal/model"
)

// Match pairs a rule with the template it instantiates.
type Match struct {
	Rule     model.Rule
	Template model.Template
}

// MatchRules evaluates the enabled rules against a scope snapshot and returns
// the (rule, template) pairs whose conditions all hold, in rule order.
//
// The matcher is stateless and side-effect-free: the same snapshot and
// catalog always produce the same matches, which is what makes reconciliation
// safe to re-run. Rules are skipped entirely when disabled, when their
// template is absent from the catalog, or when the template isn't VERIFIED.
func MatchRules(snap *model.ScopeSnapshot, rules []model.Rule, templates map[string]model.Template) []Match {
	matches := []Match{}
	for _, rule := range rules {
		if !rule.Enabled || rule.Scope != snap.Type {
			continue
		}
		tpl, ok := templates[rule.TemplateKey]
		if !ok || tpl.State != model.TemplateVerified {
			continue
		}
		if ruleMatches(snap, rule) {
			matches = append(matches, Match{Rule: rule, Template: tpl})
		}
	}
	return matches
}

// ruleMatches reports whether every condition of the rule holds.
// A rule with zero conditions always matches its scope.
func ruleMatches(snap *model.ScopeSnapshot, rule model.Rule) bool {
	for _, c := range rule.Conditions {
		if !evalCondition(snap, c) {
			return false
		}
	}
	return true
}

// evalCondition dispatches on the condition's operator.
//
// Missing attributes: not_exists holds, exists fails, and every comparison
// operator (including the negated ones) fails - a rule never matches on the
// strength of data that isn't there. Type mismatches (gte/lte on a
// non-numeric value) fail the condition rather than erroring.
func evalCondition(snap *model.ScopeSnapshot, c model.Condition) bool {
	value, ok := lookupAttr(snap.Bag(c.Target), c.Field)

	switch c.Op {
	case model.OpExists:
		return ok
	case model.OpNotExists:
		return !ok
	}

	if !ok {
		return false
	}

	switch c.Op {
	case model.OpEq:
		return attrString(value) == c.Value
	case model.OpNe:
		return attrString(value) != c.Value
	case model.OpContains:
		return attrContains(value, c.Value)
	case model.OpNotContains:
		return !attrContains(value, c.Value)
	case model.OpGte:
		n, lim, numeric := numericPair(value, c.Value)
		return numeric && n >= lim
	case model.OpLte:
		n, lim, numeric := numericPair(value, c.Value)
		return numeric && n <= lim
	case model.OpIn:
		return inValues(value, c.Values)
	case model.OpNotIn:
		return !inValues(value, c.Values)
	default:
		return false
	}
}

// lookupAttr reads a named attribute from a bag. A nil stored value counts as
// absent, matching the "non-null/defined" presence semantics.
func lookupAttr(bag model.AttributeBag, field string) (any, bool) {
	if bag == nil {
		return nil, false
	}
	v, ok := bag[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// attrString renders an attribute value in its canonical string form for
// comparison. Comparisons are case-sensitive.
func attrString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return ""
	}
}

// attrContains tests substring containment for strings and membership for
// arrays.
func attrContains(v any, needle string) bool {
	switch val := v.(type) {
	case string:
		return strings.Contains(val, needle)
	case []any:
		for _, item := range val {
			if attrString(item) == needle {
				return true
			}
		}
		return false
	case []string:
		for _, item := range val {
			if item == needle {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// numericPair parses both sides of a numeric comparison. A non-numeric stored
// value or limit makes the comparison false.
func numericPair(v any, limit string) (n, lim float64, ok bool) {
	switch val := v.(type) {
	case float64:
		n = val
	case int:
		n = float64(val)
	case int64:
		n = float64(val)
	case string:
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, 0, false
		}
		n = parsed
	default:
		return 0, 0, false
	}

	lim, err := strconv.ParseFloat(limit, 64)
	if err != nil {
		return 0, 0, false
	}
	return n, lim, true
}

func inValues(v any, values []string) bool {
	s := attrString(v)
	for _, candidate := range values {
		if s == candidate {
			return true
		}
	}
	return false
}
