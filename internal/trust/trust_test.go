package trust

import (
	"testing"

	"intentloop/internal/risk"
)

func TestNewClampsInitial(t *testing.T) {
	if b := New(150); b.Remaining() != 100 {
		t.Errorf("initial above cap should clamp to 100, got %v", b.Remaining())
	}
	if b := New(-10); b.Remaining() != 0 {
		t.Errorf("negative initial should clamp to 0, got %v", b.Remaining())
	}
}

func TestHighRiskAlwaysVerifies(t *testing.T) {
	b := New(100)
	if !b.ShouldVerify(risk.High) {
		t.Error("high risk must always verify")
	}
	if !b.ShouldVerify(risk.Critical) {
		t.Error("critical risk must always verify")
	}
}

func TestLowRiskSkippableWithFullBudget(t *testing.T) {
	b := New(100)
	if b.ShouldVerify(risk.Low) {
		t.Error("low risk with full budget should be skippable")
	}
}

func TestDepletedBudgetForcesVerification(t *testing.T) {
	b := New(5)
	// Low cost is 10; remaining 5 < 10 forces verification.
	if !b.ShouldVerify(risk.Low) {
		t.Error("budget below cost must force verification")
	}
}

func TestVerifiedSuccessCredits(t *testing.T) {
	b := New(50)
	b.RecordOutcome(true, true, risk.Medium)
	if got := b.Remaining(); got <= 50 {
		t.Errorf("verified success should grow the budget, got %v", got)
	}
}

func TestVerifiedFailureDebitsWithoutCredit(t *testing.T) {
	b := New(50)
	b.RecordOutcome(true, false, risk.Medium)
	// Medium cost is 20.
	if got := b.Remaining(); got != 30 {
		t.Errorf("verified failure should debit full cost: want 30, got %v", got)
	}
}

func TestSkipDebitsHalfCost(t *testing.T) {
	b := New(50)
	b.RecordOutcome(false, true, risk.Medium)
	if got := b.Remaining(); got != 40 {
		t.Errorf("skip should debit half cost: want 40, got %v", got)
	}
}

func TestSkippedSuccessNeverCredits(t *testing.T) {
	b := New(50)
	b.RecordOutcome(false, true, risk.Low)
	if got := b.Remaining(); got > 50 {
		t.Errorf("skipped action must not credit, got %v", got)
	}
}

func TestCreditCappedAtHundred(t *testing.T) {
	b := New(98)
	b.RecordOutcome(true, true, risk.Critical)
	if got := b.Remaining(); got != 100 {
		t.Errorf("credit must cap at 100, got %v", got)
	}
}

// Budget stays in [0,100] under any outcome sequence.
func TestBoundsInvariant(t *testing.T) {
	b := New(100)
	levels := []risk.Level{risk.Low, risk.Medium, risk.High, risk.Critical}
	for i := 0; i < 200; i++ {
		level := levels[i%len(levels)]
		verified := i%3 != 0
		success := i%2 == 0
		b.RecordOutcome(verified, success, level)
		if r := b.Remaining(); r < 0 || r > 100 {
			t.Fatalf("budget out of bounds at step %d: %v", i, r)
		}
	}
}

// A run of failures depletes the budget, then recovery is possible
// through verified successes only.
func TestStarvationAndRecovery(t *testing.T) {
	b := New(100)
	for i := 0; i < 10; i++ {
		b.RecordOutcome(true, false, risk.Critical)
	}
	if b.Remaining() != 0 {
		t.Fatalf("expected depleted budget, got %v", b.Remaining())
	}
	if !b.ShouldVerify(risk.Low) {
		t.Error("depleted budget must force verification even at low risk")
	}
	for i := 0; i < 10; i++ {
		b.RecordOutcome(true, true, risk.Medium)
	}
	if b.Remaining() == 0 {
		t.Error("verified successes should rebuild the budget")
	}
}

func TestStatsCounters(t *testing.T) {
	b := New(100)
	b.RecordOutcome(true, true, risk.Low)
	b.RecordOutcome(true, false, risk.High)
	b.RecordOutcome(false, true, risk.Low)

	s := b.Stats()
	if s.VerificationsRun != 2 {
		t.Errorf("verifications run: want 2, got %d", s.VerificationsRun)
	}
	if s.VerificationsSkipped != 1 {
		t.Errorf("verifications skipped: want 1, got %d", s.VerificationsSkipped)
	}
	if s.FailuresCaught != 1 {
		t.Errorf("failures caught: want 1, got %d", s.FailuresCaught)
	}
	if s.Successes != 2 {
		t.Errorf("successes: want 2, got %d", s.Successes)
	}
}

func TestHistoryRingBounded(t *testing.T) {
	b := New(100)
	for i := 0; i < historySize*2; i++ {
		b.RecordOutcome(true, true, risk.Low)
	}
	if got := len(b.History()); got != historySize {
		t.Errorf("history should be bounded at %d, got %d", historySize, got)
	}
}
