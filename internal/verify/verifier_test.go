package verify

import (
	"context"
	"math"
	"os/exec"
	"strings"
	"testing"
	"time"

	"intentloop/internal/classify"
	"intentloop/internal/config"
	"intentloop/internal/inference"
	"intentloop/internal/risk"
)

func newTestVerifier(llm inference.Client, runner Runner) *Verifier {
	return New(config.DefaultVerifierConfig(), llm, runner)
}

// Each strategy's layer list must be a strict prefix of the next.
func TestStrategyNesting(t *testing.T) {
	order := []Strategy{StrategyMinimal, StrategyStandard, StrategyThorough, StrategyMaximum}
	for i := 1; i < len(order); i++ {
		prev := order[i-1].Layers()
		cur := order[i].Layers()
		if len(cur) != len(prev)+1 {
			t.Fatalf("%s should add exactly one layer over %s", order[i], order[i-1])
		}
		for j := range prev {
			if cur[j] != prev[j] {
				t.Errorf("%s is not a prefix extension of %s at %d", order[i], order[i-1], j)
			}
		}
	}
}

func TestStrategyForRisk(t *testing.T) {
	cases := map[risk.Level]Strategy{
		risk.Low:      StrategyMinimal,
		risk.Medium:   StrategyStandard,
		risk.High:     StrategyThorough,
		risk.Critical: StrategyMaximum,
	}
	for level, want := range cases {
		if got := StrategyForRisk(level); got != want {
			t.Errorf("StrategyForRisk(%s) = %s, want %s", level, got, want)
		}
	}
}

func TestTagOverrideOnlyElevates(t *testing.T) {
	execTag := classify.Tag{
		Destination: classify.DestinationProcess,
		Semantics:   classify.SemanticsExecute,
	}
	if got := ApplyTagOverride(StrategyMinimal, execTag); got != StrategyStandard {
		t.Errorf("minimal should elevate to standard, got %s", got)
	}
	if got := ApplyTagOverride(StrategyMaximum, execTag); got != StrategyMaximum {
		t.Errorf("maximum must not change, got %s", got)
	}
	plain := classify.Tag{Destination: classify.DestinationStream, Semantics: classify.SemanticsRead}
	if got := ApplyTagOverride(StrategyMinimal, plain); got != StrategyMinimal {
		t.Errorf("plain tag must not elevate, got %s", got)
	}
}

func TestSyntaxPassOnValidGo(t *testing.T) {
	v := newTestVerifier(nil, nil)
	res := v.Verify(context.Background(), Input{
		Kind:       "write_file",
		TargetPath: "main.go",
		Content:    "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n",
	}, StrategyMinimal)

	if !res.Passed {
		t.Fatalf("valid Go should pass syntax: %+v", res.Layers)
	}
	if res.FailedLayer != "" {
		t.Errorf("no failed layer expected, got %s", res.FailedLayer)
	}
	if math.Abs(res.Confidence-0.95) > 1e-9 {
		t.Errorf("single-layer confidence should be 0.95, got %v", res.Confidence)
	}
}

func TestSyntaxFailureStopsPass(t *testing.T) {
	v := newTestVerifier(nil, nil)
	res := v.Verify(context.Background(), Input{
		Kind:       "write_file",
		TargetPath: "broken.go",
		Content:    "package main\n\nfunc main( {\n",
	}, StrategyThorough)

	if res.Passed {
		t.Fatal("broken syntax must fail")
	}
	if res.FailedLayer != LayerSyntax {
		t.Errorf("failed layer should be syntax, got %s", res.FailedLayer)
	}
	if len(res.Layers) != 1 {
		t.Errorf("fail-fast should stop after syntax, ran %d layers", len(res.Layers))
	}
	if res.Confidence != 0 {
		t.Errorf("zero passed layers means zero confidence, got %v", res.Confidence)
	}
}

func TestSemanticCatchesMissingImport(t *testing.T) {
	v := newTestVerifier(nil, nil)
	res := v.Verify(context.Background(), Input{
		Kind:       "write_file",
		TargetPath: "main.go",
		Content:    "package main\n\nfunc main() {\n\tfmt.Println(\"hi\")\n}\n",
	}, StrategyStandard)

	if res.Passed {
		t.Fatal("reference to unimported fmt should fail semantic layer")
	}
	if res.FailedLayer != LayerSemantic {
		t.Errorf("failed layer should be semantic, got %s", res.FailedLayer)
	}
}

func TestSemanticCatchesArityMismatch(t *testing.T) {
	problems, err := scanGoSemantics(context.Background(),
		"package main\n\nfunc add(a int, b int) int { return a + b }\n\nfunc main() {\n\t_ = add(1)\n}\n")
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, p := range problems {
		if strings.Contains(p, "add called with 1 args") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected arity problem, got %v", problems)
	}
}

func TestSemanticCleanCode(t *testing.T) {
	problems, err := scanGoSemantics(context.Background(),
		"package main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(\"hi\")\n}\n")
	if err != nil {
		t.Fatal(err)
	}
	if len(problems) != 0 {
		t.Errorf("clean code should have no problems, got %v", problems)
	}
}

func TestBehavioralUsesTestsForTestBearingTarget(t *testing.T) {
	var gotCommand string
	runner := func(ctx context.Context, command string) (bool, string) {
		gotCommand = command
		return true, "ok"
	}
	v := newTestVerifier(nil, runner)

	lr := v.checkBehavioral(context.Background(), Input{
		TargetPath: "thing_test.go",
		Content:    "package thing\n\nimport \"testing\"\n\nfunc TestX(t *testing.T) {}\n",
	})
	if !lr.Passed {
		t.Fatalf("behavioral should pass: %s", lr.Message)
	}
	if !strings.HasPrefix(gotCommand, "go test -C ") {
		t.Errorf("test-bearing Go target should run go test inside the staged module, got %q", gotCommand)
	}
	if lr.Confidence != behavioralConfidenceTests {
		t.Errorf("test run confidence: want %v, got %v", behavioralConfidenceTests, lr.Confidence)
	}
}

// A lone Go test file must actually pass under the real toolchain: the
// staging dir carries its own go.mod so go test can resolve it.
func TestBehavioralRunsGoTests(t *testing.T) {
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not installed")
	}
	runner := func(ctx context.Context, command string) (bool, string) {
		argv := strings.Fields(command)
		out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
		return err == nil, string(out)
	}

	cfg := config.DefaultVerifierConfig()
	cfg.BehavioralTimeout = 30 * time.Second
	cfg.BehavioralTimeoutMax = 30 * time.Second
	v := New(cfg, nil, runner)

	lr := v.checkBehavioral(context.Background(), Input{
		TargetPath: "calc_test.go",
		Content: "package scratchcheck\n\nimport \"testing\"\n\n" +
			"func TestSum(t *testing.T) {\n\tif 2+2 != 4 {\n\t\tt.Fatal(\"arithmetic broke\")\n\t}\n}\n",
	})
	if !lr.Passed {
		t.Fatalf("go test run should pass: %s", lr.Message)
	}
	if lr.Confidence != behavioralConfidenceTests {
		t.Errorf("confidence: want %v, got %v", behavioralConfidenceTests, lr.Confidence)
	}
}

func TestBehavioralCompileOnlyForPlainTarget(t *testing.T) {
	var gotCommand string
	runner := func(ctx context.Context, command string) (bool, string) {
		gotCommand = command
		return true, ""
	}
	v := newTestVerifier(nil, runner)

	lr := v.checkBehavioral(context.Background(), Input{
		TargetPath: "script.py",
		Content:    "print('hi')\n",
	})
	if !lr.Passed {
		t.Fatalf("behavioral should pass: %s", lr.Message)
	}
	if !strings.Contains(gotCommand, "py_compile") {
		t.Errorf("plain python target should compile-check, got %q", gotCommand)
	}
	if lr.Confidence != behavioralConfidenceCompile {
		t.Errorf("compile-only confidence: want %v, got %v", behavioralConfidenceCompile, lr.Confidence)
	}
}

func TestIntentFailureIsAdvisory(t *testing.T) {
	llm := &inference.FakeClient{
		Responses: []string{`{"aligned": false, "confidence": 0.8, "reason": "unrelated"}`},
	}
	runner := func(ctx context.Context, command string) (bool, string) { return true, "" }
	v := newTestVerifier(llm, runner)

	res := v.Verify(context.Background(), Input{
		Kind:       "write_file",
		TargetPath: "main.go",
		Content:    "package main\n\nfunc main() {}\n",
		Intent:     "delete the database",
	}, StrategyMaximum)

	if !res.Passed {
		t.Fatal("intent disagreement must not flip the verdict")
	}
	if res.FailedLayer != "" {
		t.Errorf("intent must never be the failed layer, got %s", res.FailedLayer)
	}
	intent := res.Layers[len(res.Layers)-1]
	if intent.Layer != LayerIntent || intent.Passed {
		t.Errorf("intent layer should be recorded as failed: %+v", intent)
	}
}

func TestIntentJudgeUnavailableDegrades(t *testing.T) {
	llm := &inference.FakeClient{Err: inference.ErrUnavailable}
	v := newTestVerifier(llm, nil)

	lr := v.checkIntent(context.Background(), Input{Intent: "do a thing", Kind: "write_file"})
	if !lr.Passed {
		t.Error("unavailable judge should degrade to advisory pass")
	}
	if lr.Confidence != intentConfidenceMin {
		t.Errorf("degraded confidence should be floor %v, got %v", intentConfidenceMin, lr.Confidence)
	}
}

// Weighted confidence: weights renormalize over the layers that ran,
// and only passed layers feed the numerator.
func TestConfidenceMath(t *testing.T) {
	v := newTestVerifier(nil, nil)

	result := &Result{Layers: []LayerResult{
		{Layer: LayerSyntax, Passed: true, Confidence: 0.95},
		{Layer: LayerSemantic, Passed: true, Confidence: 0.90},
	}}
	v.score(result)
	want := (0.20*0.95 + 0.30*0.90) / 0.50
	if math.Abs(result.Confidence-want) > 1e-9 {
		t.Errorf("confidence: want %v, got %v", want, result.Confidence)
	}
	if !result.Passed {
		t.Error("all layers passed, result should pass")
	}

	// One failed (advisory) layer in the mix: still in the denominator.
	result = &Result{Layers: []LayerResult{
		{Layer: LayerSyntax, Passed: true, Confidence: 0.95},
		{Layer: LayerIntent, Passed: false, Confidence: 0.80},
	}}
	v.score(result)
	want = (0.20 * 0.95) / 0.35
	if math.Abs(result.Confidence-want) > 1e-9 {
		t.Errorf("confidence with failed layer: want %v, got %v", want, result.Confidence)
	}
}

func TestConcurrentModeRunsAllLayers(t *testing.T) {
	cfg := config.DefaultVerifierConfig()
	cfg.StopOnFailure = false
	runner := func(ctx context.Context, command string) (bool, string) { return true, "" }
	v := New(cfg, nil, runner)

	res := v.Verify(context.Background(), Input{
		Kind:       "write_file",
		TargetPath: "broken.go",
		Content:    "package main\n\nfunc main( {\n",
	}, StrategyThorough)

	if res.Passed {
		t.Fatal("broken syntax must still fail in concurrent mode")
	}
	if len(res.Layers) != 3 {
		t.Errorf("concurrent mode should run all %d layers, ran %d", 3, len(res.Layers))
	}
	if res.FailedLayer != LayerSyntax {
		t.Errorf("earliest hard failure should be syntax, got %s", res.FailedLayer)
	}
}
