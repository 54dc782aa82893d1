package harness

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Mep-xx/dwellwell-sub001/internal/store"
)

// AssertionContext carries what final-state assertions need to query.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions checks every assertion against the trace and final
// state, returning one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertTaskState:
			err = assertTaskState(actx, a)
		case AssertTrackableState:
			err = assertTrackableState(actx, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func matchesEvent(ev TraceEvent, a Assertion) bool {
	if ev.Op != a.Op {
		return false
	}
	if a.Target != "" && ev.Target != a.Target {
		return false
	}
	if a.Applied != nil && (ev.Applied == nil || *ev.Applied != *a.Applied) {
		return false
	}
	return true
}

func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if matchesEvent(ev, a) {
			return nil
		}
	}
	return fmt.Errorf("trace_contains: no %s event for %q in %s", a.Op, a.Target, formatTrace(trace))
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if matchesEvent(ev, a) {
			count++
		}
	}
	if count != a.Count {
		return fmt.Errorf("trace_count: expected %d %s events, found %d in %s", a.Count, a.Op, count, formatTrace(trace))
	}
	return nil
}

// assertTaskState fetches the occurrence and subset-matches the expect
// map. Supported fields: status, superseded, paused, archived, due,
// title, recurrence, template_version, criticality.
func assertTaskState(actx *AssertionContext, a Assertion) error {
	occ, err := actx.Store.GetOccurrence(actx.Ctx, a.Task)
	if err != nil {
		return fmt.Errorf("task_state: load %s: %w", a.Task, err)
	}
	for field, want := range a.Expect {
		var got any
		switch field {
		case "status":
			got = string(occ.Status)
		case "superseded":
			got = occ.Superseded
		case "paused":
			got = occ.Paused()
		case "archived":
			got = occ.Archived()
		case "due":
			if occ.DueDate != nil {
				got = occ.DueDate.Format(time.RFC3339)
			} else {
				got = ""
			}
		case "title":
			got = occ.Title
		case "recurrence":
			got = occ.Recurrence
		case "template_version":
			got = occ.TemplateVer
		case "criticality":
			got = string(occ.Criticality)
		default:
			return fmt.Errorf("task_state: unsupported field %q", field)
		}
		if !valuesEqual(got, want) {
			return fmt.Errorf("task_state %s: field %s: expected %v, got %v", a.Task, field, want, got)
		}
	}
	return nil
}

// assertTrackableState supports fields: status, retire_reason, paused.
func assertTrackableState(actx *AssertionContext, a Assertion) error {
	tr, err := actx.Store.GetTrackable(actx.Ctx, a.Trackable)
	if err != nil {
		return fmt.Errorf("trackable_state: load %s: %w", a.Trackable, err)
	}
	for field, want := range a.Expect {
		var got any
		switch field {
		case "status":
			got = string(tr.Status)
		case "retire_reason":
			got = tr.RetireReason
		case "paused":
			got = tr.PausedAt != nil
		default:
			return fmt.Errorf("trackable_state: unsupported field %q", field)
		}
		if !valuesEqual(got, want) {
			return fmt.Errorf("trackable_state %s: field %s: expected %v, got %v", a.Trackable, field, want, got)
		}
	}
	return nil
}

// valuesEqual compares a model value against a YAML-decoded one. YAML
// integers decode as int, so numeric comparison goes through int64.
func valuesEqual(got, want any) bool {
	if gi, ok := asInt64(got); ok {
		if wi, ok := asInt64(want); ok {
			return gi == wi
		}
	}
	return fmt.Sprintf("%v", got) == fmt.Sprintf("%v", want)
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func formatTrace(trace []TraceEvent) string {
	var b strings.Builder
	b.WriteString("trace[")
	for i, ev := range trace {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d:%s %s", ev.Seq, ev.Op, ev.Target)
	}
	b.WriteString("]")
	return b.String()
}
