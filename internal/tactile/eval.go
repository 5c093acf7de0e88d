package tactile

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"intentloop/internal/logging"
)

// allowedImports is the package allow-list for evaluated code. Network,
// filesystem and process packages are deliberately absent; evaluated
// code computes, it does not touch the host.
var allowedImports = map[string]bool{
	"fmt":           true,
	"strings":       true,
	"strconv":       true,
	"math":          true,
	"math/rand":     true,
	"sort":          true,
	"time":          true,
	"errors":        true,
	"unicode":       true,
	"regexp":        true,
	"bytes":         true,
	"encoding/json": true,
	"encoding/csv":  true,
	"container/heap": true,
}

// evalExecutor runs Go snippets in a yaegi interpreter. Each run gets
// a fresh interpreter so snippets cannot observe each other.
type evalExecutor struct {
	timeout time.Duration
}

// execute validates imports, then evaluates action.Content with the
// interpreter's stdout/stderr captured onto the result. The run is
// bounded by the configured timeout; the interpreter goroutine cannot
// be killed, so on timeout it is abandoned.
func (ee *evalExecutor) execute(ctx context.Context, action Action, res *ExecutionResult) error {
	code := action.Content
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("%w: empty code", ErrInvalidAction)
	}

	if err := checkImports(code); err != nil {
		return err
	}

	timeout := ee.timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	i := interp.New(interp.Options{Stdout: &stdout, Stderr: &stderr})
	if err := i.Use(stdlib.Symbols); err != nil {
		return fmt.Errorf("load interpreter symbols: %w", err)
	}

	type evalOut struct {
		repr string
		err  error
	}
	done := make(chan evalOut, 1)
	go func() {
		v, err := i.Eval(code)
		out := evalOut{err: err}
		if err == nil && v.IsValid() && v.CanInterface() {
			out.repr = fmt.Sprintf("%v", v.Interface())
		}
		done <- out
	}()

	select {
	case out := <-done:
		res.Stdout = stdout.String()
		res.Stderr = stderr.String()
		if out.err != nil {
			return fmt.Errorf("eval: %w", out.err)
		}
		if res.Stdout == "" && out.repr != "" {
			res.Stdout = out.repr
		}
		logging.Exec("evaluated %d bytes of code (stdout %d bytes)", len(code), len(res.Stdout))
		return nil

	case <-ctx.Done():
		res.TimedOut = true
		res.Stdout = stdout.String()
		res.Stderr = stderr.String()
		return fmt.Errorf("evaluation timed out after %v", timeout)
	}
}

// checkImports scans the snippet for import statements and rejects any
// package outside the allow-list.
func checkImports(code string) error {
	normalized := strings.ReplaceAll(code, ";", "\n")
	for _, line := range strings.Split(normalized, "\n") {
		trimmed := strings.TrimSpace(line)

		var pkg string
		switch {
		case strings.HasPrefix(trimmed, "import \""):
			pkg = strings.Trim(strings.TrimPrefix(trimmed, "import "), "\"")
		case strings.HasPrefix(trimmed, "\"") && strings.HasSuffix(trimmed, "\""):
			// inside an import ( ... ) block; cheap over-approximation
			pkg = strings.Trim(trimmed, "\"")
		default:
			continue
		}

		if pkg == "" || strings.ContainsAny(pkg, " \t") {
			continue
		}
		if !allowedImports[pkg] {
			return fmt.Errorf("%w: %s", ErrImportDenied, pkg)
		}
	}
	return nil
}
