package tactile

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"intentloop/internal/logging"
)

// StateCapture produces snapshots and backups for the engine. Backups
// are uuid-named copies in the backup directory; a size cap prevents
// accidentally archiving huge artifacts.
type StateCapture struct {
	backupDir   string
	maxBackupMB int
}

// NewStateCapture returns a capturer writing backups under dir.
func NewStateCapture(dir string, maxBackupMB int) *StateCapture {
	if maxBackupMB <= 0 {
		maxBackupMB = 50
	}
	return &StateCapture{backupDir: dir, maxBackupMB: maxBackupMB}
}

// Snapshot captures the state of the given paths plus system metrics.
// Missing files are recorded as Exists=false; per-file errors degrade
// to an absent entry rather than failing the snapshot.
func (sc *StateCapture) Snapshot(paths []string) *StateSnapshot {
	snap := &StateSnapshot{
		Timestamp: time.Now(),
		Files:     make(map[string]FileState, len(paths)),
		Metrics:   captureSystemMetrics(),
	}

	for _, p := range paths {
		if p == "" {
			continue
		}
		st, err := fileState(p)
		if err != nil {
			logging.ExecDebug("snapshot of %s failed: %v", p, err)
			continue
		}
		snap.Files[p] = st
	}
	return snap
}

// fileState hashes one file. Non-existence is a valid state.
func fileState(path string) (FileState, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileState{Exists: false}, nil
		}
		return FileState{}, err
	}
	if info.IsDir() {
		return FileState{Exists: true}, nil
	}

	hash, err := hashFile(path)
	if err != nil {
		return FileState{}, err
	}
	return FileState{Exists: true, SHA256: hash, Size: info.Size()}, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Backup copies path into the backup directory under a uuid name and
// returns the backup path. Returns ErrBackupTooLarge when the file
// exceeds the configured cap.
func (sc *StateCapture) Backup(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > int64(sc.maxBackupMB)<<20 {
		return "", fmt.Errorf("%s is %d bytes: %w", path, info.Size(), ErrBackupTooLarge)
	}

	if err := os.MkdirAll(sc.backupDir, 0755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s%s", time.Now().Format("20060102T150405"),
		uuid.New().String()[:8], filepath.Ext(path))
	backupPath := filepath.Join(sc.backupDir, name)

	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(backupPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("create backup: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(backupPath)
		return "", fmt.Errorf("copy to backup: %w", err)
	}

	logging.ExecDebug("backed up %s -> %s", path, backupPath)
	return backupPath, nil
}

// Restore copies a backup over the original path.
func (sc *StateCapture) Restore(backupPath, originalPath string) error {
	src, err := os.Open(backupPath)
	if err != nil {
		return fmt.Errorf("open backup %s: %w", backupPath, err)
	}
	defer src.Close()

	if dir := filepath.Dir(originalPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("recreate parent dir: %w", err)
		}
	}

	dst, err := os.OpenFile(originalPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open target %s: %w", originalPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("restore copy: %w", err)
	}
	return nil
}

// SnapshotProcesses captures the current PID list alongside the usual
// snapshot, for process-affecting actions.
func (sc *StateCapture) SnapshotProcesses(paths []string) *StateSnapshot {
	snap := sc.Snapshot(paths)
	snap.PIDs = listPIDs()
	return snap
}

// listPIDs enumerates live PIDs from /proc. Best-effort, nil on hosts
// without /proc.
func listPIDs() []int {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil
	}
	var pids []int
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if pid, err := strconv.Atoi(e.Name()); err == nil {
			pids = append(pids, pid)
		}
	}
	return pids
}

// captureSystemMetrics reads coarse counters from /proc. Everything is
// best-effort; on non-Linux hosts the zero value is returned.
func captureSystemMetrics() SystemMetrics {
	var m SystemMetrics

	if f, err := os.Open("/proc/meminfo"); err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "MemAvailable:") {
				fields := strings.Fields(line)
				if len(fields) >= 2 {
					m.MemAvailableKB, _ = strconv.ParseInt(fields[1], 10, 64)
				}
				break
			}
		}
		f.Close()
	}

	if data, err := os.ReadFile("/proc/loadavg"); err == nil {
		fields := strings.Fields(string(data))
		if len(fields) >= 1 {
			m.Load1, _ = strconv.ParseFloat(fields[0], 64)
		}
	}

	if entries, err := os.ReadDir("/proc"); err == nil {
		count := 0
		for _, e := range entries {
			if e.IsDir() {
				if _, err := strconv.Atoi(e.Name()); err == nil {
					count++
				}
			}
		}
		m.ProcessCount = count
	}

	return m
}
