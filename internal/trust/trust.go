// Package trust implements the adaptive verification budget. The
// budget is session-scoped: it starts full, is debited when
// verification runs (or half as much when it is skipped), and is
// credited back by verified successes. A depleted budget forces
// verification until successes rebuild it.
package trust

import (
	"sync"

	"intentloop/internal/logging"
	"intentloop/internal/risk"
)

const (
	maxBudget = 100.0
	minBudget = 0.0
	// costUnit converts a risk weight into budget points.
	costUnit = 10.0
	// skipFactor is the fraction of the cost debited when verification
	// is skipped. Skipping is cheaper but never free.
	skipFactor = 0.5
	// creditFactor is the fraction of the cost credited back on a
	// verified success.
	creditFactor = 0.5
	// historySize bounds the outcome ring buffer.
	historySize = 50
)

// Stats summarizes budget activity for a session.
type Stats struct {
	Remaining            float64 `json:"remaining"`
	VerificationsRun     int     `json:"verifications_run"`
	VerificationsSkipped int     `json:"verifications_skipped"`
	FailuresCaught       int     `json:"failures_caught"`
	Successes            int     `json:"successes"`
}

// Outcome is one recorded verification decision.
type Outcome struct {
	Risk     risk.Level `json:"risk"`
	Verified bool       `json:"verified"`
	Success  bool       `json:"success"`
}

// Budget is the mutable trust state. All methods are safe for
// concurrent use, though the planner is the only writer in practice.
type Budget struct {
	mu        sync.Mutex
	remaining float64
	stats     Stats
	history   []Outcome
}

// New returns a budget starting at initial, clamped to [0,100].
func New(initial float64) *Budget {
	return &Budget{remaining: clamp(initial)}
}

// Remaining returns the current budget.
func (b *Budget) Remaining() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}

// cost is what full verification at the given risk level debits.
func cost(level risk.Level) float64 {
	return level.Weight() * costUnit
}

// ShouldVerify decides whether verification is mandatory for an action
// at the given risk level. Verification is mandatory when risk is high
// or above, or when the remaining budget cannot cover the cost of
// skipping responsibility for this action.
func (b *Budget) ShouldVerify(level risk.Level) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if level >= risk.High {
		return true
	}
	if b.remaining < cost(level) {
		return true
	}
	return false
}

// RecordOutcome applies the budget arithmetic for one completed
// action. verified says whether verification actually ran; success is
// the action's final judgment.
//
//   - verification run: debit full cost; on success credit back more
//     than the debit so verified successes grow the budget (capped at
//     100); on failure, no credit.
//   - verification skipped: debit half cost; skipped actions never
//     credit, whatever their outcome.
func (b *Budget) RecordOutcome(verified, success bool, level risk.Level) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := cost(level)
	before := b.remaining

	if verified {
		b.stats.VerificationsRun++
		b.remaining -= c
		if success {
			b.stats.Successes++
			b.remaining += c + c*creditFactor
		} else {
			b.stats.FailuresCaught++
		}
	} else {
		b.stats.VerificationsSkipped++
		b.remaining -= c * skipFactor
		if success {
			b.stats.Successes++
		}
	}

	b.remaining = clamp(b.remaining)
	b.stats.Remaining = b.remaining

	b.history = append(b.history, Outcome{Risk: level, Verified: verified, Success: success})
	if len(b.history) > historySize {
		b.history = b.history[len(b.history)-historySize:]
	}

	logging.Trust("outcome risk=%s verified=%t success=%t budget %.1f -> %.1f",
		level, verified, success, before, b.remaining)
}

// Stats returns a copy of the session statistics.
func (b *Budget) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stats
	s.Remaining = b.remaining
	return s
}

// History returns a copy of the recent outcome ring.
func (b *Budget) History() []Outcome {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Outcome, len(b.history))
	copy(out, b.history)
	return out
}

func clamp(v float64) float64 {
	if v < minBudget {
		return minBudget
	}
	if v > maxBudget {
		return maxBudget
	}
	return v
}
