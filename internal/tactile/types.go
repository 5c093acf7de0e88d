// Package tactile is the execution engine: it takes verified actions
// and applies them to the system with state capture, backups, resource
// limits and best-effort reversibility.
package tactile

import (
	"errors"
	"time"
)

// Kind enumerates the supported action kinds.
type Kind string

const (
	KindWriteFile    Kind = "write_file"
	KindAppendFile   Kind = "append_file"
	KindDeleteFile   Kind = "delete_file"
	KindRunProcess   Kind = "run_process"
	KindEvaluateCode Kind = "evaluate_code"
)

// ValidKind reports whether k is a known action kind.
func ValidKind(k Kind) bool {
	switch k {
	case KindWriteFile, KindAppendFile, KindDeleteFile, KindRunProcess, KindEvaluateCode:
		return true
	default:
		return false
	}
}

// Action is one concrete operation to apply. Target is a file path for
// file kinds, a command line for run_process, and ignored for
// evaluate_code (the code lives in Content).
type Action struct {
	Kind    Kind   `json:"kind"`
	Target  string `json:"target"`
	Content string `json:"content,omitempty"`
}

// UndoCommand is one step of an undo plan.
type UndoCommand struct {
	// Type is restore_backup, delete_created or inverse_command.
	Type string `json:"type"`
	// Path is the file the command applies to (file types).
	Path string `json:"path,omitempty"`
	// Backup is the backup file to restore from (restore_backup).
	Backup string `json:"backup,omitempty"`
	// Command is the inverse command line (inverse_command).
	Command string `json:"command,omitempty"`
}

const (
	UndoRestoreBackup  = "restore_backup"
	UndoDeleteCreated  = "delete_created"
	UndoInverseCommand = "inverse_command"
)

// FileState is the captured state of one file.
type FileState struct {
	Exists bool   `json:"exists"`
	SHA256 string `json:"sha256,omitempty"`
	Size   int64  `json:"size,omitempty"`
}

// SystemMetrics are coarse host counters captured around execution.
// All fields are best-effort and zero on platforms without /proc.
type SystemMetrics struct {
	MemAvailableKB int64   `json:"mem_available_kb,omitempty"`
	Load1          float64 `json:"load1,omitempty"`
	ProcessCount   int     `json:"process_count,omitempty"`
}

// StateSnapshot captures the relevant slice of system state at one
// point in time. PIDs is only populated for process-affecting actions.
type StateSnapshot struct {
	Timestamp time.Time            `json:"timestamp"`
	Files     map[string]FileState `json:"files,omitempty"`
	PIDs      []int                `json:"pids,omitempty"`
	Metrics   SystemMetrics        `json:"metrics"`
}

// ExecutionResult is the full record of one executed action.
type ExecutionResult struct {
	ID            string         `json:"id"`
	Action        Action         `json:"action"`
	Success       bool           `json:"success"`
	ExitCode      int            `json:"exit_code"`
	Stdout        string         `json:"stdout,omitempty"`
	Stderr        string         `json:"stderr,omitempty"`
	Error         string         `json:"error,omitempty"`
	FilesAffected []string       `json:"files_affected,omitempty"`
	StateBefore   *StateSnapshot `json:"state_before,omitempty"`
	StateAfter    *StateSnapshot `json:"state_after,omitempty"`
	Reversible   bool          `json:"reversible"`
	UndoCommands []UndoCommand `json:"undo_commands,omitempty"`
	// BackupPaths maps each backed-up original path to its backup copy.
	BackupPaths map[string]string `json:"backup_paths,omitempty"`
	// SpawnedPIDs lists processes present after execution but not
	// before (process actions only, best-effort).
	SpawnedPIDs []int         `json:"spawned_pids,omitempty"`
	Duration    time.Duration `json:"duration"`
	Timestamp   time.Time     `json:"timestamp"`
	TimedOut    bool          `json:"timed_out,omitempty"`
}

// Errors returned by the engine.
var (
	ErrNotReversible  = errors.New("execution is not reversible")
	ErrUnknownExec    = errors.New("unknown execution id")
	ErrInvalidAction  = errors.New("invalid action")
	ErrBinaryDenied   = errors.New("binary not in allow-list")
	ErrImportDenied   = errors.New("import not in allow-list")
	ErrBackupTooLarge = errors.New("file exceeds backup size cap")
)

// AuditEvent is emitted after every execution and undo.
type AuditEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	ExecutionID string    `json:"execution_id"`
	Operation   string    `json:"operation"` // execute or undo
	Kind        Kind      `json:"kind"`
	Target      string    `json:"target"`
	Success     bool      `json:"success"`
	Detail      string    `json:"detail,omitempty"`
}

// AuditFunc receives audit events. It must not block.
type AuditFunc func(AuditEvent)
