package store

import (
	"path/filepath"
	"testing"
	"time"

	"intentloop/internal/tactile"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordExecution(t *testing.T) {
	s := openTestStore(t)

	err := s.RecordExecution(tactile.AuditEvent{
		Timestamp:   time.Now(),
		ExecutionID: "exec-1",
		Operation:   "execute",
		Kind:        tactile.KindWriteFile,
		Target:      "/tmp/a.txt",
		Success:     true,
	})
	if err != nil {
		t.Fatalf("record execution: %v", err)
	}
}

func TestRecordAndQueryIntentions(t *testing.T) {
	s := openTestStore(t)

	for i, status := range []string{"succeeded", "failed"} {
		err := s.RecordIntention(IntentionRecord{
			ID:             string(rune('a' + i)),
			CreatedAt:      time.Now().Add(time.Duration(i) * time.Second),
			Request:        "do something",
			Status:         status,
			Depth:          0,
			CycleCount:     i + 1,
			TrustRemaining: 80,
			Metrics: SessionMetrics{
				CycleCount:      i + 1,
				Retries:         i,
				LayerPassCounts: map[string]int{"syntax": i + 1},
				TotalTimeMS:     12,
			},
			Trace: map[string]any{"cycles": i + 1},
		})
		if err != nil {
			t.Fatalf("record intention: %v", err)
		}
	}

	recs, err := s.RecentIntentions(10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	// newest first
	if recs[0].Status != "failed" {
		t.Errorf("ordering wrong: %+v", recs)
	}
	if recs[0].Trace == nil {
		t.Error("trace should round-trip as JSON")
	}
	if recs[0].Metrics.CycleCount != 2 || recs[0].Metrics.LayerPassCounts["syntax"] != 2 {
		t.Errorf("metrics should round-trip, got %+v", recs[0].Metrics)
	}
}
