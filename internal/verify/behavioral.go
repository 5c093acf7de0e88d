package verify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"intentloop/internal/logging"
)

const (
	behavioralConfidenceTests   = 0.95 // test suite ran and passed
	behavioralConfidenceCompile = 0.85 // compile/check only
)

// checkBehavioral stages the candidate content in a scratch directory
// and actually runs it through the toolchain: the test runner when the
// target is test-bearing, a compile/parse check otherwise. The run is
// bounded by the configured timeout.
func (v *Verifier) checkBehavioral(ctx context.Context, in Input) LayerResult {
	start := time.Now()
	res := LayerResult{Layer: LayerBehavioral}

	if v.runner == nil {
		res.Passed = true
		res.Confidence = behavioralConfidenceCompile
		res.Message = "no runner configured"
		res.Duration = time.Since(start)
		return res
	}
	if strings.TrimSpace(in.Content) == "" || languageFor(in.TargetPath) == nil {
		res.Passed = true
		res.Confidence = behavioralConfidenceCompile
		res.Message = "nothing to run"
		res.Duration = time.Since(start)
		return res
	}

	staged, cleanup, err := stageContent(in.TargetPath, in.Content)
	if err != nil {
		res.Passed = false
		res.Message = fmt.Sprintf("staging failed: %v", err)
		res.Duration = time.Since(start)
		return res
	}
	defer cleanup()

	testBearing := isTestBearing(in.TargetPath, in.Content)
	command := behavioralCommand(staged, testBearing)
	if command == "" {
		res.Passed = true
		res.Confidence = behavioralConfidenceCompile
		res.Message = "no check available for target"
		res.Duration = time.Since(start)
		return res
	}

	timeout := v.cfg.BehavioralTimeout
	if timeout > v.cfg.BehavioralTimeoutMax {
		timeout = v.cfg.BehavioralTimeoutMax
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ok, output := v.runner(ctx, command)
	res.Duration = time.Since(start)

	if !ok {
		res.Passed = false
		res.Message = fmt.Sprintf("%q failed: %s", command, firstLines(output, 5))
		logging.VerifyWarn("behavioral check failed for %s: %s", in.TargetPath, res.Message)
		return res
	}

	res.Passed = true
	if testBearing {
		res.Confidence = behavioralConfidenceTests
		res.Message = "tests passed"
	} else {
		res.Confidence = behavioralConfidenceCompile
		res.Message = "compile check passed"
	}
	return res
}

// stageContent writes the candidate into a scratch dir keeping the
// target's base name, so language tooling sees the right extension.
// Go content also gets a minimal go.mod; the go command refuses to
// test a directory that is not inside a module.
func stageContent(targetPath, content string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "verify-*")
	if err != nil {
		return "", nil, err
	}
	staged := filepath.Join(dir, filepath.Base(targetPath))
	if err := os.WriteFile(staged, []byte(content), 0644); err != nil {
		os.RemoveAll(dir)
		return "", nil, err
	}
	if strings.EqualFold(filepath.Ext(targetPath), ".go") {
		mod := []byte("module scratchcheck\n\ngo 1.21\n")
		if err := os.WriteFile(filepath.Join(dir, "go.mod"), mod, 0644); err != nil {
			os.RemoveAll(dir)
			return "", nil, err
		}
	}
	return staged, func() { os.RemoveAll(dir) }, nil
}

// isTestBearing reports whether the target looks like a test file.
func isTestBearing(path, content string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasSuffix(base, "_test.go"):
		return true
	case strings.HasPrefix(base, "test_") && strings.HasSuffix(base, ".py"):
		return true
	case strings.HasSuffix(base, ".py") && strings.Contains(content, "def test_"):
		return true
	case strings.Contains(base, ".test.js"):
		return true
	default:
		return false
	}
}

// behavioralCommand picks the toolchain command for a staged file.
func behavioralCommand(staged string, testBearing bool) string {
	switch strings.ToLower(filepath.Ext(staged)) {
	case ".go":
		if testBearing {
			// -C runs the test inside the staged module; package
			// patterns resolve against the caller's module otherwise.
			return "go test -C " + filepath.Dir(staged) + " ./..."
		}
		return "gofmt -e " + staged
	case ".py":
		if testBearing {
			return "python3 -m pytest -q " + staged
		}
		return "python3 -m py_compile " + staged
	case ".js", ".mjs":
		return "node --check " + staged
	default:
		return ""
	}
}

func firstLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, " | ")
}
