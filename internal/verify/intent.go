package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"intentloop/internal/inference"
	"intentloop/internal/logging"
)

const (
	intentConfidenceMin = 0.70
	intentConfidenceMax = 0.85
)

// intentJudgment is the JSON shape the judge model returns.
type intentJudgment struct {
	Aligned    bool    `json:"aligned"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// checkIntent asks the judge model whether the action plausibly serves
// the stated goal. The layer is advisory: when the judge is
// unavailable it reports a pass at floor confidence rather than
// blocking the pipeline.
func (v *Verifier) checkIntent(ctx context.Context, in Input) LayerResult {
	start := time.Now()
	res := LayerResult{Layer: LayerIntent}

	if v.llm == nil || in.Intent == "" {
		res.Passed = true
		res.Confidence = intentConfidenceMin
		res.Message = "judge unavailable"
		res.Duration = time.Since(start)
		return res
	}

	prompt := fmt.Sprintf(`You are reviewing an autonomous agent's proposed action.

Goal: %s

Proposed action:
  kind: %s
  target: %s
  content: %s

Does this action plausibly advance the goal? Respond with JSON only:
{"aligned": true|false, "confidence": 0.0-1.0, "reason": "one sentence"}`,
		in.Intent, in.Kind, in.TargetPath, clip(in.Content, 2000))

	if v.cfg.IntentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.cfg.IntentTimeout)
		defer cancel()
	}

	raw, err := v.llm.Generate(ctx, prompt, inference.ModeJudge)
	if err != nil {
		logging.VerifyWarn("intent judge unavailable: %v", err)
		res.Passed = true
		res.Confidence = intentConfidenceMin
		res.Message = fmt.Sprintf("judge unavailable: %v", err)
		res.Duration = time.Since(start)
		return res
	}

	var j intentJudgment
	if err := json.Unmarshal([]byte(inference.StripFences(raw)), &j); err != nil {
		res.Passed = true
		res.Confidence = intentConfidenceMin
		res.Message = "judge response unparseable"
		res.Duration = time.Since(start)
		return res
	}

	res.Passed = j.Aligned
	res.Confidence = clampConfidence(j.Confidence, intentConfidenceMin, intentConfidenceMax)
	res.Message = j.Reason
	res.Duration = time.Since(start)
	return res
}

func clampConfidence(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
