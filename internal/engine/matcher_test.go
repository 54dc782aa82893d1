package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Mep-xx/dwellwell-sub001/internal/model"
)

func trackableSnap(attrs model.AttributeBag) *model.ScopeSnapshot {
	return &model.ScopeSnapshot{
		Type:        model.ScopeTrackable,
		ID:          "tr-1",
		TrackableID: "tr-1",
		Trackable:   attrs,
	}
}

func TestEvalCondition(t *testing.T) {
	attrs := model.AttributeBag{
		"type":      "hvac",
		"filters":   []any{"hepa", "carbon"},
		"age_years": float64(7),
		"indoor":    true,
		"notes":     "twin compressor unit",
	}
	snap := trackableSnap(attrs)

	tests := []struct {
		name string
		cond model.Condition
		want bool
	}{
		{"eq match", model.Condition{Target: model.TargetTrackable, Field: "type", Op: model.OpEq, Value: "hvac"}, true},
		{"eq mismatch", model.Condition{Target: model.TargetTrackable, Field: "type", Op: model.OpEq, Value: "boiler"}, false},
		{"eq is case-sensitive", model.Condition{Target: model.TargetTrackable, Field: "type", Op: model.OpEq, Value: "HVAC"}, false},
		{"eq bool canonical form", model.Condition{Target: model.TargetTrackable, Field: "indoor", Op: model.OpEq, Value: "true"}, true},
		{"eq number canonical form", model.Condition{Target: model.TargetTrackable, Field: "age_years", Op: model.OpEq, Value: "7"}, true},
		{"ne", model.Condition{Target: model.TargetTrackable, Field: "type", Op: model.OpNe, Value: "boiler"}, true},
		{"ne on missing field is false", model.Condition{Target: model.TargetTrackable, Field: "ghost", Op: model.OpNe, Value: "x"}, false},
		{"contains substring", model.Condition{Target: model.TargetTrackable, Field: "notes", Op: model.OpContains, Value: "compressor"}, true},
		{"contains array membership", model.Condition{Target: model.TargetTrackable, Field: "filters", Op: model.OpContains, Value: "hepa"}, true},
		{"contains array no partial match", model.Condition{Target: model.TargetTrackable, Field: "filters", Op: model.OpContains, Value: "hep"}, false},
		{"not_contains", model.Condition{Target: model.TargetTrackable, Field: "filters", Op: model.OpNotContains, Value: "uv"}, true},
		{"not_contains on missing field is false", model.Condition{Target: model.TargetTrackable, Field: "ghost", Op: model.OpNotContains, Value: "x"}, false},
		{"exists", model.Condition{Target: model.TargetTrackable, Field: "type", Op: model.OpExists}, true},
		{"exists missing", model.Condition{Target: model.TargetTrackable, Field: "ghost", Op: model.OpExists}, false},
		{"not_exists", model.Condition{Target: model.TargetTrackable, Field: "ghost", Op: model.OpNotExists}, true},
		{"not_exists present", model.Condition{Target: model.TargetTrackable, Field: "type", Op: model.OpNotExists}, false},
		{"gte true", model.Condition{Target: model.TargetTrackable, Field: "age_years", Op: model.OpGte, Value: "5"}, true},
		{"gte boundary", model.Condition{Target: model.TargetTrackable, Field: "age_years", Op: model.OpGte, Value: "7"}, true},
		{"gte false", model.Condition{Target: model.TargetTrackable, Field: "age_years", Op: model.OpGte, Value: "10"}, false},
		{"gte non-numeric value is false", model.Condition{Target: model.TargetTrackable, Field: "type", Op: model.OpGte, Value: "5"}, false},
		{"lte true", model.Condition{Target: model.TargetTrackable, Field: "age_years", Op: model.OpLte, Value: "10"}, true},
		{"lte false", model.Condition{Target: model.TargetTrackable, Field: "age_years", Op: model.OpLte, Value: "5"}, false},
		{"in", model.Condition{Target: model.TargetTrackable, Field: "type", Op: model.OpIn, Values: []string{"hvac", "boiler"}}, true},
		{"in miss", model.Condition{Target: model.TargetTrackable, Field: "type", Op: model.OpIn, Values: []string{"boiler", "heat_pump"}}, false},
		{"not_in", model.Condition{Target: model.TargetTrackable, Field: "type", Op: model.OpNotIn, Values: []string{"boiler"}}, true},
		{"not_in on missing field is false", model.Condition{Target: model.TargetTrackable, Field: "ghost", Op: model.OpNotIn, Values: []string{"x"}}, false},
		{"missing target bag is non-match", model.Condition{Target: model.TargetRoomDetail, Field: "type", Op: model.OpEq, Value: "hvac"}, false},
		{"not_exists holds for missing target bag", model.Condition{Target: model.TargetRoomDetail, Field: "type", Op: model.OpNotExists}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evalCondition(snap, tt.cond))
		})
	}
}

func TestEvalConditionNilValueIsAbsent(t *testing.T) {
	snap := trackableSnap(model.AttributeBag{"warranty": nil})

	assert.False(t, evalCondition(snap, model.Condition{Target: model.TargetTrackable, Field: "warranty", Op: model.OpExists}))
	assert.True(t, evalCondition(snap, model.Condition{Target: model.TargetTrackable, Field: "warranty", Op: model.OpNotExists}))
}

func TestEvalConditionNumericStringCoercion(t *testing.T) {
	// Attribute values round-tripped through JSON can arrive as strings.
	snap := trackableSnap(model.AttributeBag{"age_years": "7.5"})

	assert.True(t, evalCondition(snap, model.Condition{Target: model.TargetTrackable, Field: "age_years", Op: model.OpGte, Value: "7"}))
	assert.False(t, evalCondition(snap, model.Condition{Target: model.TargetTrackable, Field: "age_years", Op: model.OpLte, Value: "7"}))
}

func TestMatchRules(t *testing.T) {
	snap := trackableSnap(model.AttributeBag{"type": "hvac"})

	hvacRule := model.Rule{
		Key: "hvac-filter", Scope: model.ScopeTrackable, Enabled: true,
		TemplateKey: "replace-filter",
		Conditions: []model.Condition{
			{Target: model.TargetTrackable, Field: "type", Op: model.OpEq, Value: "hvac"},
		},
	}
	boilerRule := model.Rule{
		Key: "boiler-flush", Scope: model.ScopeTrackable, Enabled: true,
		TemplateKey: "flush-boiler",
		Conditions: []model.Condition{
			{Target: model.TargetTrackable, Field: "type", Op: model.OpEq, Value: "boiler"},
		},
	}
	unconditional := model.Rule{
		Key: "inspect", Scope: model.ScopeTrackable, Enabled: true,
		TemplateKey: "inspect",
	}
	disabled := hvacRule
	disabled.Key = "hvac-filter-old"
	disabled.Enabled = false

	templates := map[string]model.Template{
		"replace-filter": {Key: "replace-filter", State: model.TemplateVerified},
		"flush-boiler":   {Key: "flush-boiler", State: model.TemplateVerified},
		"inspect":        {Key: "inspect", State: model.TemplateDraft},
	}

	matches := MatchRules(snap, []model.Rule{hvacRule, boilerRule, unconditional, disabled}, templates)

	// boiler rule fails its condition, inspect's template is DRAFT, the
	// disabled copy is skipped outright.
	assert.Len(t, matches, 1)
	assert.Equal(t, "hvac-filter", matches[0].Rule.Key)
	assert.Equal(t, "replace-filter", matches[0].Template.Key)
}

func TestMatchRulesZeroConditionsAlwaysMatches(t *testing.T) {
	snap := trackableSnap(nil)
	rule := model.Rule{Key: "always", Scope: model.ScopeTrackable, Enabled: true, TemplateKey: "t"}
	templates := map[string]model.Template{"t": {Key: "t", State: model.TemplateVerified}}

	assert.Len(t, MatchRules(snap, []model.Rule{rule}, templates), 1)
}

func TestMatchRulesScopeMismatchSkipped(t *testing.T) {
	snap := trackableSnap(nil)
	rule := model.Rule{Key: "room-rule", Scope: model.ScopeRoom, Enabled: true, TemplateKey: "t"}
	templates := map[string]model.Template{"t": {Key: "t", State: model.TemplateVerified}}

	assert.Empty(t, MatchRules(snap, []model.Rule{rule}, templates))
}
