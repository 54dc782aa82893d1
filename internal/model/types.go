package model

import "time"

// ScopeType identifies the kind of entity a rule or task occurrence is
// anchored to.
type ScopeType string

const (
	ScopeHome      ScopeType = "home"
	ScopeRoom      ScopeType = "room"
	ScopeTrackable ScopeType = "trackable"
)

// ValidScopeTypes defines the allowed scope types.
var ValidScopeTypes = map[ScopeType]bool{
	ScopeHome:      true,
	ScopeRoom:      true,
	ScopeTrackable: true,
}

// ConditionTarget identifies the entity whose attribute a condition inspects.
// It may differ from the owning rule's scope: a room-scoped rule can inspect
// the room-detail attribute bag.
type ConditionTarget string

const (
	TargetHome       ConditionTarget = "home"
	TargetRoom       ConditionTarget = "room"
	TargetRoomDetail ConditionTarget = "room_detail"
	TargetTrackable  ConditionTarget = "trackable"
)

// ValidConditionTargets defines the allowed condition targets.
var ValidConditionTargets = map[ConditionTarget]bool{
	TargetHome:       true,
	TargetRoom:       true,
	TargetRoomDetail: true,
	TargetTrackable:  true,
}

// ConditionOp is the comparison operator of a condition.
type ConditionOp string

const (
	OpEq          ConditionOp = "eq"
	OpNe          ConditionOp = "ne"
	OpContains    ConditionOp = "contains"
	OpNotContains ConditionOp = "not_contains"
	OpExists      ConditionOp = "exists"
	OpNotExists   ConditionOp = "not_exists"
	OpGte         ConditionOp = "gte"
	OpLte         ConditionOp = "lte"
	OpIn          ConditionOp = "in"
	OpNotIn       ConditionOp = "not_in"
)

// ValidConditionOps defines the allowed condition operators.
var ValidConditionOps = map[ConditionOp]bool{
	OpEq: true, OpNe: true,
	OpContains: true, OpNotContains: true,
	OpExists: true, OpNotExists: true,
	OpGte: true, OpLte: true,
	OpIn: true, OpNotIn: true,
}

// Criticality ranks how urgent a maintenance obligation is.
type Criticality string

const (
	CriticalityLow    Criticality = "low"
	CriticalityMedium Criticality = "medium"
	CriticalityHigh   Criticality = "high"
)

// TemplateState is the administrative lifecycle state of a template.
// Only VERIFIED templates participate in matching and instantiation.
type TemplateState string

const (
	TemplateDraft    TemplateState = "DRAFT"
	TemplateVerified TemplateState = "VERIFIED"
)

// TaskStatus is the primary status of a task occurrence. Paused and archived
// are orthogonal flags (PausedAt / ArchivedAt), not statuses.
type TaskStatus string

const (
	TaskPending   TaskStatus = "PENDING"
	TaskCompleted TaskStatus = "COMPLETED"
	TaskSkipped   TaskStatus = "SKIPPED"
)

// Terminal reports whether the status ends the occurrence's life.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskSkipped
}

// TrackableStatus is the lifecycle state of a trackable item.
type TrackableStatus string

const (
	TrackableInUse   TrackableStatus = "IN_USE"
	TrackablePaused  TrackableStatus = "PAUSED"
	TrackableRetired TrackableStatus = "RETIRED"
)

// ResumeMode selects how due dates are treated when a paused or archived
// entity comes back.
type ResumeMode string

const (
	// ResumeForward recomputes due dates forward from today. Due dates never
	// move backward, and no missed occurrences are fabricated.
	ResumeForward ResumeMode = "forward"

	// ResumeNow keeps due dates exactly as they were.
	ResumeNow ResumeMode = "now"
)

// TemplateStep is one ordered step of a template's instructions.
type TemplateStep struct {
	Idx  int    `json:"idx"`
	Text string `json:"text"`
}

// Template is a reusable task definition. Templates are administered via
// upsert-by-key; the engine never mutates them. Content edits bump Version so
// already-issued occurrences (which copy content at creation time) can tell
// which version they were cut from.
type Template struct {
	ID                 string         `json:"id"`
	Key                string         `json:"key"`
	Title              string         `json:"title"`
	Description        string         `json:"description,omitempty"`
	Category           string         `json:"category,omitempty"`
	Recurrence         string         `json:"recurrence"` // free-text descriptor, e.g. "3 months"
	Criticality        Criticality    `json:"criticality"`
	CanDefer           bool           `json:"can_defer"`
	DeferLimitDays     int            `json:"defer_limit_days,omitempty"`
	EstimatedMinutes   int            `json:"estimated_minutes,omitempty"`
	EstimatedCostCents int            `json:"estimated_cost_cents,omitempty"`
	CanBeOutsourced    bool           `json:"can_be_outsourced"`
	Steps              []TemplateStep `json:"steps,omitempty"`
	Equipment          []string       `json:"equipment,omitempty"`
	Resources          []string       `json:"resources,omitempty"`
	State              TemplateState  `json:"state"`
	Version            int            `json:"version"`
}

// Condition is one predicate within a rule. All conditions of a rule are
// combined with logical AND.
type Condition struct {
	Target ConditionTarget `json:"target"`
	Field  string          `json:"field"`
	Op     ConditionOp     `json:"op"`
	Value  string          `json:"value,omitempty"`
	Values []string        `json:"values,omitempty"`
	Idx    int             `json:"idx"`
}

// Rule binds a template to a scope type behind a list of conditions. Rules are
// administered via upsert-by-key and read-only to the engine.
type Rule struct {
	ID          string      `json:"id"`
	Key         string      `json:"key"`
	Scope       ScopeType   `json:"scope"`
	Enabled     bool        `json:"enabled"`
	ReevalOn    []string    `json:"reeval_on,omitempty"` // attribute names that trigger re-evaluation
	TemplateKey string      `json:"template_key"`
	Conditions  []Condition `json:"conditions,omitempty"`
}

// TaskOccurrence is a concrete, scope-bound instance of a maintenance
// obligation.
//
// DedupeKey is the load-bearing identity: at most one live (non-superseded,
// non-deleted) occurrence exists per key. When a recurring occurrence is
// completed or skipped, it is marked superseded and its successor takes over
// the key.
type TaskOccurrence struct {
	ID             string         `json:"id"`
	HomeID         string         `json:"home_id,omitempty"`
	RoomID         string         `json:"room_id,omitempty"`
	TrackableID    string         `json:"trackable_id,omitempty"`
	TemplateID     string         `json:"template_id,omitempty"`
	TemplateVer    int            `json:"template_version,omitempty"`
	SourceType     ScopeType      `json:"source_type"`
	DedupeKey      string         `json:"dedupe_key"`
	Title          string         `json:"title"`
	Description    string         `json:"description,omitempty"`
	Steps          []TemplateStep `json:"steps,omitempty"`
	Equipment      []string       `json:"equipment,omitempty"`
	Resources      []string       `json:"resources,omitempty"`
	Status         TaskStatus     `json:"status"`
	DueDate        *time.Time     `json:"due_date,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	PausedAt       *time.Time     `json:"paused_at,omitempty"`
	ArchivedAt     *time.Time     `json:"archived_at,omitempty"`
	Superseded     bool           `json:"superseded,omitempty"`
	Recurrence     string         `json:"recurrence,omitempty"`
	Criticality    Criticality    `json:"criticality"`
	CanDefer       bool           `json:"can_defer"`
	DeferLimitDays int            `json:"defer_limit_days,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Paused reports whether the occurrence carries the orthogonal paused flag.
func (o *TaskOccurrence) Paused() bool { return o.PausedAt != nil }

// Archived reports whether the occurrence carries the orthogonal archived flag.
func (o *TaskOccurrence) Archived() bool { return o.ArchivedAt != nil }

// ScopeID returns the id of the scope the occurrence is anchored to,
// preferring the most specific reference.
func (o *TaskOccurrence) ScopeID() string {
	switch {
	case o.TrackableID != "":
		return o.TrackableID
	case o.RoomID != "":
		return o.RoomID
	default:
		return o.HomeID
	}
}

// Trackable is an individually tracked item (appliance, system, fixture) that
// owns zero or more task occurrences.
type Trackable struct {
	ID           string          `json:"id"`
	HomeID       string          `json:"home_id,omitempty"`
	RoomID       string          `json:"room_id,omitempty"`
	Name         string          `json:"name"`
	Brand        string          `json:"brand,omitempty"`
	Model        string          `json:"model,omitempty"`
	Type         string          `json:"type,omitempty"`
	Category     string          `json:"category,omitempty"`
	Status       TrackableStatus `json:"status"`
	PausedAt     *time.Time      `json:"paused_at,omitempty"`
	RetiredAt    *time.Time      `json:"retired_at,omitempty"`
	RetireReason string          `json:"retire_reason,omitempty"`
	Attributes   AttributeBag    `json:"attributes,omitempty"`
}

// AttributeBag is a flat set of named attributes read by conditions. Values
// are strings, bools, or numbers; missing keys are treated as undefined per
// the matcher's exists/not_exists semantics.
type AttributeBag map[string]any

// ScopeSnapshot is the read-only view of a scope instance handed to the rule
// matcher. Rooms may carry an optional room-detail bag; trackable-scoped
// snapshots may also carry the owning home and room bags so conditions can
// target them.
type ScopeSnapshot struct {
	Type        ScopeType
	ID          string
	Home        AttributeBag
	Room        AttributeBag
	RoomDetail  AttributeBag
	Trackable   AttributeBag
	HomeID      string
	RoomID      string
	TrackableID string
}

// Bag returns the attribute bag for a condition target, or nil when the
// snapshot does not carry one.
func (s *ScopeSnapshot) Bag(target ConditionTarget) AttributeBag {
	switch target {
	case TargetHome:
		return s.Home
	case TargetRoom:
		return s.Room
	case TargetRoomDetail:
		return s.RoomDetail
	case TargetTrackable:
		return s.Trackable
	default:
		return nil
	}
}
