package verify

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"intentloop/internal/config"
	"intentloop/internal/inference"
	"intentloop/internal/logging"
)

// Runner executes a command line on behalf of the behavioral layer and
// reports whether it succeeded, with combined output for diagnostics.
type Runner func(ctx context.Context, command string) (ok bool, output string)

// Verifier runs layered verification passes.
type Verifier struct {
	cfg    config.VerifierConfig
	llm    inference.Client
	runner Runner
}

// New builds a verifier. llm may be nil (the intent layer degrades to
// advisory pass); runner may be nil (the behavioral layer degrades to
// a pass at compile-check confidence).
func New(cfg config.VerifierConfig, llm inference.Client, runner Runner) *Verifier {
	return &Verifier{cfg: cfg, llm: llm, runner: runner}
}

// Verify runs the layers selected by the strategy. In fail-fast mode
// (the default) a hard layer failure stops the pass and is reported in
// FailedLayer. The intent layer is advisory: its failure is recorded
// but neither stops the pass nor flips the overall verdict.
func (v *Verifier) Verify(ctx context.Context, in Input, strategy Strategy) *Result {
	layers := strategy.Layers()
	result := &Result{Strategy: strategy}
	start := time.Now()

	if v.cfg.StopOnFailure {
		v.runSequential(ctx, in, layers, result)
	} else {
		v.runConcurrent(ctx, in, layers, result)
	}

	v.score(result)
	result.TotalTimeMS = time.Since(start).Milliseconds()

	logging.Verify("strategy=%s passed=%t confidence=%.2f failed_layer=%s elapsed=%v",
		strategy, result.Passed, result.Confidence, result.FailedLayer, time.Since(start))
	return result
}

func (v *Verifier) runSequential(ctx context.Context, in Input, layers []LayerName, result *Result) {
	for _, layer := range layers {
		lr := v.runLayer(ctx, in, layer)
		result.Layers = append(result.Layers, lr)
		if !lr.Passed && layer != LayerIntent {
			result.FailedLayer = layer
			return
		}
	}
}

// runConcurrent runs every selected layer regardless of failures, for
// callers that want the full diagnostic picture. FailedLayer reports
// the earliest hard failure in layer order.
func (v *Verifier) runConcurrent(ctx context.Context, in Input, layers []LayerName, result *Result) {
	results := make([]LayerResult, len(layers))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, layer := range layers {
		g.Go(func() error {
			lr := v.runLayer(gctx, in, layer)
			mu.Lock()
			results[i] = lr
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	result.Layers = results
	for i, lr := range results {
		if !lr.Passed && layers[i] != LayerIntent {
			result.FailedLayer = layers[i]
			break
		}
	}
}

func (v *Verifier) runLayer(ctx context.Context, in Input, layer LayerName) LayerResult {
	switch layer {
	case LayerSyntax:
		return v.checkSyntax(ctx, in)
	case LayerSemantic:
		return v.checkSemantic(ctx, in)
	case LayerBehavioral:
		return v.checkBehavioral(ctx, in)
	case LayerIntent:
		return v.checkIntent(ctx, in)
	default:
		return LayerResult{Layer: layer, Passed: false, Message: "unknown layer"}
	}
}

// score computes the overall verdict and weighted confidence. The
// denominator covers every layer that ran; only passed layers
// contribute to the numerator. No passed layers means zero confidence
// and a failed pass.
func (v *Verifier) score(result *Result) {
	var num, den float64
	passedAny := false

	for _, lr := range result.Layers {
		w := layerWeights[lr.Layer]
		den += w
		if lr.Passed {
			num += w * lr.Confidence
			passedAny = true
		}
	}

	if !passedAny || den == 0 {
		result.Passed = false
		result.Confidence = 0
		return
	}

	result.Passed = result.FailedLayer == ""
	result.Confidence = num / den
}
