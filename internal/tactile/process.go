package tactile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"intentloop/internal/config"
	"intentloop/internal/logging"
)

// processExecutor runs external commands under an allow-list, a hard
// timeout and output caps.
type processExecutor struct {
	cfg config.ExecutionConfig
}

// execute runs action.Target as a command line. Stdout/stderr land on
// the result, truncated at the configured cap per stream.
func (pe *processExecutor) execute(ctx context.Context, action Action, res *ExecutionResult) error {
	argv := splitCommand(action.Target)
	if len(argv) == 0 {
		return fmt.Errorf("%w: empty command", ErrInvalidAction)
	}

	binary := argv[0]
	if allowed, ok := pe.cfg.AllowedBinaries[binary]; !ok || !allowed {
		return fmt.Errorf("%w: %s", ErrBinaryDenied, binary)
	}

	timeout := pe.cfg.ProcessTimeout
	if timeout > pe.cfg.ProcessTimeoutMax {
		timeout = pe.cfg.ProcessTimeoutMax
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Start()
	if err != nil {
		return fmt.Errorf("start %s: %w", binary, err)
	}

	if pe.cfg.LowerPriority {
		lowerPriority(cmd)
	}

	err = cmd.Wait()
	elapsed := time.Since(start)

	res.Stdout = truncate(stdout.String(), pe.cfg.MaxOutputBytes)
	res.Stderr = truncate(stderr.String(), pe.cfg.MaxOutputBytes)

	if ctx.Err() == context.DeadlineExceeded {
		res.TimedOut = true
		res.ExitCode = -1
		return fmt.Errorf("command timed out after %v", timeout)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return fmt.Errorf("command exited %d", res.ExitCode)
		}
		return fmt.Errorf("run %s: %w", binary, err)
	}

	res.ExitCode = 0
	logging.Exec("ran %q in %v (stdout %d bytes)", action.Target, elapsed, len(res.Stdout))
	return nil
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "\n...[output truncated]"
}

// splitCommand splits a command line into argv, keeping single- or
// double-quoted spans as one argument. There is no shell here, so no
// escape handling beyond the quotes themselves.
func splitCommand(s string) []string {
	var (
		args    []string
		current strings.Builder
		quote   rune
		inToken bool
	)
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inToken = true
		case r == ' ' || r == '\t' || r == '\n':
			if inToken {
				args = append(args, current.String())
				current.Reset()
				inToken = false
			}
		default:
			current.WriteRune(r)
			inToken = true
		}
	}
	if inToken {
		args = append(args, current.String())
	}
	return args
}

// inverseVerbs maps command verbs to their inverses for undo planning.
// Commands whose verb has no inverse are irreversible.
var inverseVerbs = map[string]string{
	"start":   "stop",
	"stop":    "start",
	"enable":  "disable",
	"disable": "enable",
	"umount":  "mount",
	"mkdir":   "rmdir",
}

// inverseCommand derives the undoing command line for cmdline, or ""
// when none exists. systemctl puts the verb first, service puts the
// unit first and the verb second; bare verbs (mkdir, umount) invert
// the binary itself.
func inverseCommand(cmdline string) string {
	argv := splitCommand(cmdline)
	if len(argv) == 0 {
		return ""
	}

	switch argv[0] {
	case "mount":
		// umount takes only the mount point, the last argument.
		if len(argv) >= 2 {
			return "umount " + argv[len(argv)-1]
		}
		return ""

	case "systemctl":
		if len(argv) >= 2 {
			if inv, ok := inverseVerbs[argv[1]]; ok {
				out := append([]string{"systemctl", inv}, argv[2:]...)
				return strings.Join(out, " ")
			}
		}
		return ""

	case "service":
		if len(argv) >= 3 {
			if inv, ok := inverseVerbs[argv[2]]; ok {
				return strings.Join([]string{"service", argv[1], inv}, " ")
			}
		}
		return ""
	}

	if inv, ok := inverseVerbs[argv[0]]; ok {
		out := append([]string{inv}, argv[1:]...)
		return strings.Join(out, " ")
	}
	return ""
}
