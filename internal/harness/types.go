package harness

// TraceEvent records one flow step and its observable outcome. Fields
// irrelevant to an op stay at their zero value and are omitted from the
// JSON trace, so golden files only show what each op actually produced.
type TraceEvent struct {
	Seq     int    `json:"seq"`
	Clock   string `json:"clock"`
	Op      string `json:"op"`
	Target  string `json:"target,omitempty"`
	Applied *bool  `json:"applied,omitempty"`

	// Generate outcomes.
	Created  []string `json:"created,omitempty"`
	Existing []string `json:"existing,omitempty"`
	Warnings []string `json:"warnings,omitempty"`

	// Task transition outcomes.
	Status  string `json:"status,omitempty"`
	Due     string `json:"due,omitempty"`
	Next    string `json:"next,omitempty"`
	NextDue string `json:"next_due,omitempty"`

	// Trackable transition outcomes.
	Cascaded int `json:"cascaded,omitempty"`

	Notice string `json:"notice,omitempty"`
}

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace lists all executed flow steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors collects expect and assertion failures. Empty when Pass.
	Errors []string `json:"errors,omitempty"`
}

// NewResult returns an empty passing result.
func NewResult() *Result {
	return &Result{Pass: true, Trace: []TraceEvent{}}
}

// AddError records a failure message and flips the result to failing.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}
