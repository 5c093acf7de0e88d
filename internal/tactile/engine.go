package tactile

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"intentloop/internal/config"
	"intentloop/internal/logging"
)

// Engine dispatches actions to executors, bracketing each execution
// with state snapshots and finishing with a reversibility analysis.
// Completed executions are kept in an in-memory registry so they can
// be undone later in the session.
type Engine struct {
	capture *StateCapture
	files   *fileExecutor
	process *processExecutor
	eval    *evalExecutor

	mu      sync.RWMutex
	results map[string]*ExecutionResult

	audit AuditFunc
}

// NewEngine builds an engine from execution config.
func NewEngine(cfg config.ExecutionConfig) *Engine {
	capture := NewStateCapture(cfg.BackupDir, cfg.MaxBackupMB)
	return &Engine{
		capture: capture,
		files:   &fileExecutor{capture: capture},
		process: &processExecutor{cfg: cfg},
		eval:    &evalExecutor{timeout: cfg.EvalTimeout},
		results: make(map[string]*ExecutionResult),
	}
}

// SetAudit installs an audit callback. Pass nil to disable.
func (e *Engine) SetAudit(fn AuditFunc) {
	e.mu.Lock()
	e.audit = fn
	e.mu.Unlock()
}

// Execute applies one action. The returned result is always non-nil
// for a valid action; execution failures are reported in the result,
// not as an error. An error return means the action itself was
// malformed or its kind unknown.
func (e *Engine) Execute(ctx context.Context, action Action) (*ExecutionResult, error) {
	if !ValidKind(action.Kind) {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidAction, action.Kind)
	}

	res := &ExecutionResult{
		ID:        uuid.New().String(),
		Action:    action,
		Timestamp: time.Now(),
	}

	watched := watchedPaths(action)
	trackProcs := action.Kind == KindRunProcess
	res.StateBefore = e.snapshot(watched, trackProcs)

	start := time.Now()
	var execErr error
	switch action.Kind {
	case KindWriteFile, KindAppendFile, KindDeleteFile:
		execErr = e.files.execute(action, res)
	case KindRunProcess:
		execErr = e.process.execute(ctx, action, res)
	case KindEvaluateCode:
		execErr = e.eval.execute(ctx, action, res)
	}
	res.Duration = time.Since(start)

	res.StateAfter = e.snapshot(watched, trackProcs)
	if trackProcs {
		res.SpawnedPIDs = diffPIDs(res.StateBefore.PIDs, res.StateAfter.PIDs)
	}

	if logging.IsDebugMode() {
		logging.ExecDebug("execution %s: %d files watched, %d processes spawned, %v elapsed",
			res.ID, len(res.StateBefore.Files), len(res.SpawnedPIDs), res.Duration)
	}

	if execErr != nil {
		res.Success = false
		res.Error = execErr.Error()
		logging.ExecError("execution %s failed: %v", res.ID, execErr)
	} else {
		res.Success = true
	}

	e.analyzeReversibility(res)

	e.mu.Lock()
	e.results[res.ID] = res
	audit := e.audit
	e.mu.Unlock()

	if audit != nil {
		audit(AuditEvent{
			Timestamp:   res.Timestamp,
			ExecutionID: res.ID,
			Operation:   "execute",
			Kind:        action.Kind,
			Target:      action.Target,
			Success:     res.Success,
			Detail:      res.Error,
		})
	}
	return res, nil
}

func (e *Engine) snapshot(paths []string, withProcs bool) *StateSnapshot {
	if withProcs {
		return e.capture.SnapshotProcesses(paths)
	}
	return e.capture.Snapshot(paths)
}

// diffPIDs returns PIDs present in after but not in before. A spawned
// process that also exited between snapshots is invisible; the diff
// catches daemonized survivors, which are the ones worth reporting.
func diffPIDs(before, after []int) []int {
	seen := make(map[int]bool, len(before))
	for _, pid := range before {
		seen[pid] = true
	}
	var spawned []int
	for _, pid := range after {
		if !seen[pid] {
			spawned = append(spawned, pid)
		}
	}
	return spawned
}

// watchedPaths lists the filesystem paths a snapshot should cover for
// an action.
func watchedPaths(action Action) []string {
	switch action.Kind {
	case KindWriteFile, KindAppendFile, KindDeleteFile:
		return []string{action.Target}
	default:
		return nil
	}
}

// analyzeReversibility fills Reversible and completes the undo plan.
//
//   - file actions with a backup (or created fresh) are reversible via
//     restore_backup / delete_created, already planned by the executor;
//   - processes whose command has a known inverse get an
//     inverse_command undo step;
//   - everything else (evaluation, unknown commands) is irreversible.
func (e *Engine) analyzeReversibility(res *ExecutionResult) {
	if !res.Success {
		// A failed action changed nothing it could own; keep any
		// backups taken but do not claim reversibility.
		res.Reversible = len(res.UndoCommands) > 0
		return
	}

	switch res.Action.Kind {
	case KindWriteFile, KindAppendFile, KindDeleteFile:
		res.Reversible = len(res.UndoCommands) > 0

	case KindRunProcess:
		if inv := inverseCommand(res.Action.Target); inv != "" {
			res.UndoCommands = append(res.UndoCommands, UndoCommand{
				Type:    UndoInverseCommand,
				Command: inv,
			})
			res.Reversible = true
		}

	case KindEvaluateCode:
		// The interpreter has no host access; there is nothing to undo.
		res.Reversible = false
	}
}

// Result returns a completed execution by id.
func (e *Engine) Result(id string) (*ExecutionResult, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.results[id]
	return r, ok
}

// Undo reverses a completed execution by replaying its undo plan in
// reverse order. Undo is best-effort and not transactional: steps that
// fail are reported but do not stop the remaining steps.
func (e *Engine) Undo(ctx context.Context, id string) error {
	e.mu.RLock()
	res, ok := e.results[id]
	audit := e.audit
	e.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownExec, id)
	}
	if !res.Reversible {
		return fmt.Errorf("%w: %s (%s)", ErrNotReversible, id, res.Action.Kind)
	}

	var failures []string
	for i := len(res.UndoCommands) - 1; i >= 0; i-- {
		cmd := res.UndoCommands[i]
		if err := e.runUndoStep(ctx, cmd); err != nil {
			failures = append(failures, err.Error())
			logging.ExecError("undo step %s for %s failed: %v", cmd.Type, id, err)
		}
	}

	success := len(failures) == 0
	if audit != nil {
		audit(AuditEvent{
			Timestamp:   time.Now(),
			ExecutionID: id,
			Operation:   "undo",
			Kind:        res.Action.Kind,
			Target:      res.Action.Target,
			Success:     success,
			Detail:      strings.Join(failures, "; "),
		})
	}

	if !success {
		return fmt.Errorf("undo of %s incomplete: %s", id, strings.Join(failures, "; "))
	}
	logging.Exec("undid execution %s (%d steps)", id, len(res.UndoCommands))
	return nil
}

func (e *Engine) runUndoStep(ctx context.Context, cmd UndoCommand) error {
	switch cmd.Type {
	case UndoRestoreBackup:
		return e.capture.Restore(cmd.Backup, cmd.Path)

	case UndoDeleteCreated:
		if err := os.Remove(cmd.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove created %s: %w", cmd.Path, err)
		}
		return nil

	case UndoInverseCommand:
		sub := &ExecutionResult{ID: uuid.New().String(), Timestamp: time.Now()}
		return e.process.execute(ctx, Action{Kind: KindRunProcess, Target: cmd.Command}, sub)

	default:
		return fmt.Errorf("unknown undo step type %q", cmd.Type)
	}
}
