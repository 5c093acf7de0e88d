//go:build unix

package tactile

import (
	"os/exec"
	"syscall"

	"intentloop/internal/logging"
)

// lowerPriority drops the child's scheduling priority after spawn.
// Best-effort: a failure is logged and ignored.
func lowerPriority(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if err := syscall.Setpriority(syscall.PRIO_PROCESS, cmd.Process.Pid, 10); err != nil {
		logging.ExecDebug("setpriority pid %d: %v", cmd.Process.Pid, err)
	}
}
