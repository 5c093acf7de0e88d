// Package planner drives the recursive intention loop: generate a
// candidate action, verify it under a risk-derived strategy, execute
// it, judge the outcome, and either finish, retry with reflection, or
// decompose the goal into child intentions.
package planner

import (
	"time"

	"intentloop/internal/classify"
	"intentloop/internal/risk"
	"intentloop/internal/tactile"
	"intentloop/internal/verify"
)

// Status is the lifecycle state of an intention.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSucceeded  Status = "succeeded"
	StatusPartial    Status = "partial"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is final. Partial is not
// terminal: a partial intention may re-enter progress.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Judgment is the graded outcome of the post-execution check.
type Judgment string

const (
	JudgmentSuccess Judgment = "success"
	JudgmentPartial Judgment = "partial"
	JudgmentFailure Judgment = "failure"
)

// ParseJudgment normalizes a model-provided judgment string. Anything
// unrecognized is treated as failure.
func ParseJudgment(s string) Judgment {
	switch Judgment(s) {
	case JudgmentSuccess, JudgmentPartial, JudgmentFailure:
		return Judgment(s)
	default:
		return JudgmentFailure
	}
}

// Cycle is one complete generate-verify-execute-judge iteration. The
// cycle list on an intention is append-only; cycles are never edited
// after the fact.
type Cycle struct {
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	// Thought is the model's stated rationale for the action.
	Thought      string                   `json:"thought,omitempty"`
	Action       tactile.Action           `json:"action"`
	Risk         risk.Assessment          `json:"risk"`
	Strategy     verify.Strategy          `json:"strategy,omitempty"`
	Verified     bool                     `json:"verified"`
	Verification *verify.Result           `json:"verification,omitempty"`
	Execution    *tactile.ExecutionResult `json:"execution,omitempty"`
	// Judgment grades the outcome; Success is its boolean projection
	// (success alone counts, partial retries).
	Judgment Judgment `json:"judgment,omitempty"`
	Success  bool     `json:"success"`
	// FailureKind groups failures for the decomposition trigger:
	// inference, parse, verification:<layer>, execution, judgment.
	FailureKind string `json:"failure_kind,omitempty"`
	// Reflection is a short diagnosis fed into the next prompt.
	Reflection string `json:"reflection,omitempty"`
}

// Intention is one node of the goal tree.
type Intention struct {
	ID         string       `json:"id"`
	ParentID   string       `json:"parent_id,omitempty"`
	Request    string       `json:"request"`
	Acceptance string       `json:"acceptance"`
	Tag        classify.Tag `json:"tag"`
	Status     Status       `json:"status"`
	Depth      int          `json:"depth"`
	CreatedAt  time.Time    `json:"created_at"`
	// Children holds child intention ids in processing order.
	Children []string `json:"children,omitempty"`
	Cycles   []Cycle  `json:"cycles,omitempty"`
}

// CycleCount returns how many cycles ran on this intention.
func (in *Intention) CycleCount() int { return len(in.Cycles) }

// LastCycle returns the most recent cycle, or nil.
func (in *Intention) LastCycle() *Cycle {
	if len(in.Cycles) == 0 {
		return nil
	}
	return &in.Cycles[len(in.Cycles)-1]
}
