// Package verify checks candidate actions through layered validation
// before they are executed: syntax, semantic, behavioral and intent
// checks, selected by a risk-derived strategy.
package verify

import (
	"time"

	"intentloop/internal/classify"
	"intentloop/internal/risk"
)

// LayerName identifies one verification layer.
type LayerName string

const (
	LayerSyntax     LayerName = "syntax"
	LayerSemantic   LayerName = "semantic"
	LayerBehavioral LayerName = "behavioral"
	LayerIntent     LayerName = "intent"
)

// Strategy selects which layers run. Each strategy is a prefix of the
// next, so a stricter strategy always runs a superset of layers.
type Strategy string

const (
	StrategyMinimal  Strategy = "minimal"
	StrategyStandard Strategy = "standard"
	StrategyThorough Strategy = "thorough"
	StrategyMaximum  Strategy = "maximum"
)

// strategyLayers is the layer prefix table.
var strategyLayers = map[Strategy][]LayerName{
	StrategyMinimal:  {LayerSyntax},
	StrategyStandard: {LayerSyntax, LayerSemantic},
	StrategyThorough: {LayerSyntax, LayerSemantic, LayerBehavioral},
	StrategyMaximum:  {LayerSyntax, LayerSemantic, LayerBehavioral, LayerIntent},
}

// Layers returns the layers a strategy runs, in order.
func (s Strategy) Layers() []LayerName {
	return strategyLayers[s]
}

// layerWeights drive the confidence average. Renormalized over the
// layers that actually ran.
var layerWeights = map[LayerName]float64{
	LayerSyntax:     0.20,
	LayerSemantic:   0.30,
	LayerBehavioral: 0.35,
	LayerIntent:     0.15,
}

// StrategyForRisk maps a risk level to the verification strategy.
func StrategyForRisk(level risk.Level) Strategy {
	switch level {
	case risk.Low:
		return StrategyMinimal
	case risk.Medium:
		return StrategyStandard
	case risk.High:
		return StrategyThorough
	default:
		return StrategyMaximum
	}
}

// ApplyTagOverride elevates the strategy when the classification tag
// requires it. The override only ever elevates; a tag can never relax
// the risk-derived strategy.
func ApplyTagOverride(s Strategy, tag classify.Tag) Strategy {
	if tag.RequiresElevation() && s == StrategyMinimal {
		return StrategyStandard
	}
	return s
}

// LayerResult is the outcome of one layer.
type LayerResult struct {
	Layer      LayerName     `json:"layer"`
	Passed     bool          `json:"passed"`
	Confidence float64       `json:"confidence"`
	Message    string        `json:"message,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Result is the outcome of a full verification pass.
type Result struct {
	Passed      bool          `json:"passed"`
	Confidence  float64       `json:"confidence"`
	Strategy    Strategy      `json:"strategy"`
	FailedLayer LayerName     `json:"failed_layer,omitempty"`
	Layers      []LayerResult `json:"layers"`
	TotalTimeMS int64         `json:"total_time_ms"`
}

// Input is what a verification pass inspects: the candidate action's
// target, payload and the intent it is meant to serve.
type Input struct {
	// Kind is the action kind (write_file, run_process, ...).
	Kind string `json:"kind"`
	// TargetPath is the file path or command line.
	TargetPath string `json:"target_path"`
	// Content is the payload (file content or code).
	Content string `json:"content"`
	// Intent is the natural language goal, used by the intent layer.
	Intent string `json:"intent,omitempty"`
}
