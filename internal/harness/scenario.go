package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is a declarative engine test: seed state, drive operations,
// assert on the trace and the final database.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// StartTime pins the deterministic clock. Defaults to
	// 2024-01-15T09:00:00Z when omitted.
	StartTime time.Time `yaml:"start_time,omitempty"`

	// Catalog is a directory of CUE template and rule files, resolved
	// relative to the scenario file. Optional for scenarios that only
	// exercise setup-seeded state.
	Catalog string `yaml:"catalog,omitempty"`

	// Setup seeds homes, rooms, and trackables before the flow runs.
	Setup Setup `yaml:"setup,omitempty"`

	// Flow is the ordered list of engine operations to execute.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the trace and final state after the flow.
	Assertions []Assertion `yaml:"assertions"`
}

// Setup describes the entities written to the store before the flow.
type Setup struct {
	Homes      []SetupHome      `yaml:"homes,omitempty"`
	Rooms      []SetupRoom      `yaml:"rooms,omitempty"`
	Trackables []SetupTrackable `yaml:"trackables,omitempty"`
}

type SetupHome struct {
	ID         string         `yaml:"id"`
	Name       string         `yaml:"name"`
	Attributes map[string]any `yaml:"attributes,omitempty"`
}

type SetupRoom struct {
	ID         string         `yaml:"id"`
	HomeID     string         `yaml:"home_id"`
	Name       string         `yaml:"name"`
	Attributes map[string]any `yaml:"attributes,omitempty"`
	Detail     map[string]any `yaml:"detail,omitempty"`
}

type SetupTrackable struct {
	ID         string         `yaml:"id"`
	HomeID     string         `yaml:"home_id,omitempty"`
	RoomID     string         `yaml:"room_id,omitempty"`
	Name       string         `yaml:"name"`
	Type       string         `yaml:"type,omitempty"`
	Category   string         `yaml:"category,omitempty"`
	Status     string         `yaml:"status,omitempty"`
	Attributes map[string]any `yaml:"attributes,omitempty"`
}

// FlowStep is one engine operation. Which fields apply depends on Op:
// generate takes scope_type/scope_id/changed, task ops take task (plus
// days for snooze and mode for resume/unarchive), trackable ops take
// trackable (plus mode or reason), and advance takes days and/or by.
type FlowStep struct {
	Op string `yaml:"op"`

	ScopeType string   `yaml:"scope_type,omitempty"`
	ScopeID   string   `yaml:"scope_id,omitempty"`
	Changed   []string `yaml:"changed,omitempty"`

	Task      string `yaml:"task,omitempty"`
	Trackable string `yaml:"trackable,omitempty"`
	Days      int    `yaml:"days,omitempty"`
	Mode      string `yaml:"mode,omitempty"`
	Reason    string `yaml:"reason,omitempty"`

	// By advances the clock by a Go duration (advance op only).
	By string `yaml:"by,omitempty"`

	// Expect validates the step outcome. Nil skips validation.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause is a subset match on a step outcome; only set fields are
// checked.
type ExpectClause struct {
	Applied  *bool  `yaml:"applied,omitempty"`
	Created  *int   `yaml:"created,omitempty"`
	Existing *int   `yaml:"existing,omitempty"`
	Status   string `yaml:"status,omitempty"`
	Next     string `yaml:"next,omitempty"`
	Cascaded *int   `yaml:"cascaded,omitempty"`
	Notice   string `yaml:"notice,omitempty"`
}

// Assertion validates the trace or final state after the flow completes.
type Assertion struct {
	// Type is one of trace_contains, trace_count, task_state,
	// trackable_state.
	Type string `yaml:"type"`

	// Op and Target select trace events (trace_contains, trace_count).
	Op     string `yaml:"op,omitempty"`
	Target string `yaml:"target,omitempty"`

	// Applied narrows trace_contains to applied or rejected steps.
	Applied *bool `yaml:"applied,omitempty"`

	// Count is the expected number of matching events (trace_count).
	Count int `yaml:"count,omitempty"`

	// Task and Trackable select the row for state assertions.
	Task      string `yaml:"task,omitempty"`
	Trackable string `yaml:"trackable,omitempty"`

	// Expect holds expected field values for state assertions.
	// Subset match; supported fields are listed in assertions.go.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains  = "trace_contains"
	AssertTraceCount     = "trace_count"
	AssertTaskState      = "task_state"
	AssertTrackableState = "trackable_state"
)

// LoadScenario reads and parses a scenario file. The catalog path is
// resolved relative to the scenario file's directory. Unknown YAML
// fields are rejected to catch typos.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var scenario Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	if scenario.Catalog != "" && !filepath.IsAbs(scenario.Catalog) {
		scenario.Catalog = filepath.Join(filepath.Dir(path), scenario.Catalog)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow must be non-empty")
	}
	if s.Catalog != "" {
		if _, err := os.Stat(s.Catalog); err != nil {
			return fmt.Errorf("catalog dir: %w", err)
		}
	}
	for i, step := range s.Flow {
		if step.Op == "" {
			return fmt.Errorf("flow[%d]: op is required", i)
		}
		if !knownOps[step.Op] {
			return fmt.Errorf("flow[%d]: unknown op %q", i, step.Op)
		}
	}
	for i, a := range s.Assertions {
		switch a.Type {
		case AssertTraceContains, AssertTraceCount:
			if a.Op == "" {
				return fmt.Errorf("assertions[%d]: op is required for %s", i, a.Type)
			}
		case AssertTaskState:
			if a.Task == "" {
				return fmt.Errorf("assertions[%d]: task is required for task_state", i)
			}
		case AssertTrackableState:
			if a.Trackable == "" {
				return fmt.Errorf("assertions[%d]: trackable is required for trackable_state", i)
			}
		default:
			return fmt.Errorf("assertions[%d]: unknown type %q", i, a.Type)
		}
	}
	return nil
}

var knownOps = map[string]bool{
	"generate":         true,
	"complete":         true,
	"skip":             true,
	"snooze":           true,
	"pause":            true,
	"resume":           true,
	"archive":          true,
	"unarchive":        true,
	"sync":             true,
	"trackable_pause":  true,
	"trackable_resume": true,
	"trackable_retire": true,
	"trackable_revive": true,
	"advance":          true,
}
