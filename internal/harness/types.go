package harness

import (
	"fmt"
)

// Trace event kinds.
const (
	EventSelect = "select"
	EventSend   = "send"
	EventReset  = "reset"
)

// TraceEvent is one step as it happened on the card.
type TraceEvent struct {
	Step    int    `json:"step"`
	Kind    string `json:"kind"`
	Seq     int64  `json:"seq,omitempty"`
	Command string `json:"command,omitempty"`
	Data    string `json:"data,omitempty"`
	SW      string `json:"sw,omitempty"`
	Meaning string `json:"meaning,omitempty"`

	// Sites are the decoded locations of an assertion status word. More
	// than one means the word is ambiguous.
	Sites []Site `json:"sites,omitempty"`

	// Cause is the platform's local diagnosis of a 6F00.
	Cause string `json:"cause,omitempty"`
}

// Site is a source line that throws the status word of an event.
type Site struct {
	Location string `json:"location"`
	Text     string `json:"text"`
}

// StepError is a step whose response did not match its expectation.
type StepError struct {
	Step     int
	Expected string
	Actual   string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d: expected %s, got %s", e.Step, e.Expected, e.Actual)
}

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	RunID string `json:"run_id"`

	Trace []TraceEvent `json:"trace"`

	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result for runID.
func NewResult(runID string) *Result {
	return &Result{
		Pass:   true,
		RunID:  runID,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err error) {
	r.Errors = append(r.Errors, err.Error())
	r.Pass = false
}
