package tactile

import (
	"fmt"
	"os"
	"path/filepath"

	"intentloop/internal/logging"
)

// fileExecutor applies write_file, append_file and delete_file actions
// with backup-before-write. It fills in FilesAffected, BackupPaths and
// the undo plan on the result; the engine owns snapshots and
// reversibility flags.
type fileExecutor struct {
	capture *StateCapture
}

func (fe *fileExecutor) execute(action Action, res *ExecutionResult) error {
	path := action.Target
	if path == "" {
		return fmt.Errorf("%w: empty target for %s", ErrInvalidAction, action.Kind)
	}

	existed := false
	if _, err := os.Stat(path); err == nil {
		existed = true
	}

	// Any mutation of an existing file is preceded by a backup. A
	// failed backup aborts the action; overwriting without a safety
	// net is worse than not acting.
	if existed {
		backup, err := fe.capture.Backup(path)
		if err != nil {
			return fmt.Errorf("backup before %s: %w", action.Kind, err)
		}
		if res.BackupPaths == nil {
			res.BackupPaths = make(map[string]string)
		}
		res.BackupPaths[path] = backup
		res.UndoCommands = append(res.UndoCommands, UndoCommand{
			Type:   UndoRestoreBackup,
			Path:   path,
			Backup: backup,
		})
	}

	switch action.Kind {
	case KindWriteFile:
		if err := fe.write(path, action.Content, os.O_TRUNC); err != nil {
			return err
		}
		if !existed {
			res.UndoCommands = append(res.UndoCommands, UndoCommand{
				Type: UndoDeleteCreated,
				Path: path,
			})
		}

	case KindAppendFile:
		if err := fe.write(path, action.Content, os.O_APPEND); err != nil {
			return err
		}
		if !existed {
			res.UndoCommands = append(res.UndoCommands, UndoCommand{
				Type: UndoDeleteCreated,
				Path: path,
			})
		}

	case KindDeleteFile:
		if !existed {
			return fmt.Errorf("%w: delete target %s does not exist", ErrInvalidAction, path)
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("delete %s: %w", path, err)
		}

	default:
		return fmt.Errorf("%w: %s is not a file action", ErrInvalidAction, action.Kind)
	}

	res.FilesAffected = append(res.FilesAffected, path)
	logging.Exec("%s %s (existed=%t, backups=%d)", action.Kind, path, existed, len(res.BackupPaths))
	return nil
}

func (fe *fileExecutor) write(path, content string, mode int) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create parent dir for %s: %w", path, err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|mode, 0644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
