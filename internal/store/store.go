// Package store persists the audit trail: every execution event and
// every completed intention, in a local sqlite database. Persistence
// is observational only; a write failure is never allowed to fail the
// work it records.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"intentloop/internal/logging"
	"intentloop/internal/tactile"
)

// Store wraps the sqlite audit database.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS executions (
	id           TEXT PRIMARY KEY,
	timestamp    TEXT NOT NULL,
	operation    TEXT NOT NULL,
	kind         TEXT NOT NULL,
	target       TEXT,
	success      INTEGER NOT NULL,
	detail       TEXT
);

CREATE TABLE IF NOT EXISTS intentions (
	id              TEXT PRIMARY KEY,
	created_at      TEXT NOT NULL,
	request         TEXT NOT NULL,
	status          TEXT NOT NULL,
	depth           INTEGER NOT NULL,
	cycle_count     INTEGER NOT NULL,
	trust_remaining REAL NOT NULL,
	metrics         TEXT,
	trace           TEXT
);

CREATE INDEX IF NOT EXISTS idx_executions_ts ON executions(timestamp);
CREATE INDEX IF NOT EXISTS idx_intentions_ts ON intentions(created_at);
`

// Open creates (or opens) the audit database at path and applies the
// schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logging.Store("audit store opened at %s", path)
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordExecution persists one execution audit event.
func (s *Store) RecordExecution(ev tactile.AuditEvent) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO executions (id, timestamp, operation, kind, target, success, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ExecutionID+":"+ev.Operation,
		ev.Timestamp.Format(time.RFC3339Nano),
		ev.Operation, string(ev.Kind), ev.Target, boolInt(ev.Success), ev.Detail,
	)
	if err != nil {
		return fmt.Errorf("record execution: %w", err)
	}
	return nil
}

// SessionMetrics aggregates counters over a finished intention tree.
type SessionMetrics struct {
	CycleCount      int            `json:"cycle_count"`
	Retries         int            `json:"retries"`
	Decompositions  int            `json:"decompositions"`
	LayerPassCounts map[string]int `json:"layer_pass_counts,omitempty"`
	TotalTimeMS     int64          `json:"total_time_ms"`
}

// IntentionRecord is the persisted summary of a finished intention.
type IntentionRecord struct {
	ID             string         `json:"id"`
	CreatedAt      time.Time      `json:"created_at"`
	Request        string         `json:"request"`
	Status         string         `json:"status"`
	Depth          int            `json:"depth"`
	CycleCount     int            `json:"cycle_count"`
	TrustRemaining float64        `json:"trust_remaining"`
	Metrics        SessionMetrics `json:"metrics"`
	// Trace is the full intention tree, stored as JSON.
	Trace any `json:"trace,omitempty"`
}

// RecordIntention persists a finished intention with its full trace.
func (s *Store) RecordIntention(rec IntentionRecord) error {
	trace, err := json.Marshal(rec.Trace)
	if err != nil {
		trace = []byte("null")
	}
	metrics, err := json.Marshal(rec.Metrics)
	if err != nil {
		metrics = []byte("null")
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO intentions
		 (id, created_at, request, status, depth, cycle_count, trust_remaining, metrics, trace)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CreatedAt.Format(time.RFC3339Nano), rec.Request, rec.Status,
		rec.Depth, rec.CycleCount, rec.TrustRemaining, string(metrics), string(trace),
	)
	if err != nil {
		return fmt.Errorf("record intention: %w", err)
	}
	return nil
}

// RecentIntentions returns up to n most recent intention records,
// newest first. Trace is returned as raw JSON.
func (s *Store) RecentIntentions(n int) ([]IntentionRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, created_at, request, status, depth, cycle_count, trust_remaining, metrics, trace
		 FROM intentions ORDER BY created_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query intentions: %w", err)
	}
	defer rows.Close()

	var out []IntentionRecord
	for rows.Next() {
		var rec IntentionRecord
		var createdAt, metrics, trace string
		if err := rows.Scan(&rec.ID, &createdAt, &rec.Request, &rec.Status,
			&rec.Depth, &rec.CycleCount, &rec.TrustRemaining, &metrics, &trace); err != nil {
			return nil, fmt.Errorf("scan intention: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		_ = json.Unmarshal([]byte(metrics), &rec.Metrics)
		var decoded any
		if json.Unmarshal([]byte(trace), &decoded) == nil {
			rec.Trace = decoded
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
