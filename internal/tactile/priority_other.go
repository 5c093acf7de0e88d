//go:build !unix

package tactile

import "os/exec"

// lowerPriority is a no-op on platforms without setpriority.
func lowerPriority(cmd *exec.Cmd) {}
