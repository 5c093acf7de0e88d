package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"intentloop/internal/inference"
	"intentloop/internal/tactile"
)

// parseAction decodes a model response into an action plus the model's
// stated thought. Markdown fences are stripped first; models wrap JSON
// in them no matter what the prompt says.
func parseAction(raw string) (tactile.Action, string, error) {
	var decoded struct {
		Thought string       `json:"thought"`
		Kind    tactile.Kind `json:"kind"`
		Target  string       `json:"target"`
		Content string       `json:"content"`
	}
	cleaned := inference.StripFences(raw)

	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return tactile.Action{}, "", fmt.Errorf("unparseable action response: %w", err)
	}
	action := tactile.Action{Kind: decoded.Kind, Target: decoded.Target, Content: decoded.Content}
	thought := strings.TrimSpace(decoded.Thought)

	if !tactile.ValidKind(action.Kind) {
		return action, thought, fmt.Errorf("unknown action kind %q", action.Kind)
	}
	if action.Kind != tactile.KindEvaluateCode && strings.TrimSpace(action.Target) == "" {
		return action, thought, fmt.Errorf("action %s missing target", action.Kind)
	}
	if action.Kind == tactile.KindEvaluateCode && strings.TrimSpace(action.Content) == "" {
		return action, thought, fmt.Errorf("evaluate_code missing content")
	}
	return action, thought, nil
}

// subgoal is one element of a decomposition response.
type subgoal struct {
	Request    string `json:"request"`
	Acceptance string `json:"acceptance"`
}

// parseSubgoals decodes a decomposition response.
func parseSubgoals(raw string) ([]subgoal, error) {
	cleaned := inference.StripFences(raw)

	var goals []subgoal
	if err := json.Unmarshal([]byte(cleaned), &goals); err != nil {
		// Some models wrap the array in an object.
		var wrapped struct {
			Subgoals []subgoal `json:"subgoals"`
		}
		if err2 := json.Unmarshal([]byte(cleaned), &wrapped); err2 != nil || len(wrapped.Subgoals) == 0 {
			return nil, fmt.Errorf("unparseable decomposition response: %w", err)
		}
		goals = wrapped.Subgoals
	}

	var valid []subgoal
	for _, g := range goals {
		if strings.TrimSpace(g.Request) == "" {
			continue
		}
		if strings.TrimSpace(g.Acceptance) == "" {
			g.Acceptance = g.Request
		}
		valid = append(valid, g)
	}
	if len(valid) < 2 {
		return nil, fmt.Errorf("decomposition produced %d subgoals, need at least 2", len(valid))
	}
	return valid, nil
}

// heuristicSubgoals splits a goal without model help: first by
// sentence boundaries in the acceptance text, then by "and" in the
// request, finally into a generic prepare/complete pair. Always
// returns at least two subgoals.
func heuristicSubgoals(request, acceptance string) []subgoal {
	if clauses := splitClauses(acceptance); len(clauses) >= 2 {
		out := make([]subgoal, len(clauses))
		for i, c := range clauses {
			out[i] = subgoal{Request: c, Acceptance: c}
		}
		return out
	}

	if parts := strings.Split(request, " and "); len(parts) >= 2 {
		out := make([]subgoal, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, subgoal{Request: p, Acceptance: p})
			}
		}
		if len(out) >= 2 {
			return out
		}
	}

	return []subgoal{
		{Request: "prepare: " + request, Acceptance: "prerequisites for the goal are in place"},
		{Request: "complete: " + request, Acceptance: acceptance},
	}
}

// splitClauses breaks text into trimmed sentence-level clauses.
func splitClauses(text string) []string {
	raw := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == ';' || r == '\n'
	})
	var out []string
	for _, c := range raw {
		c = strings.TrimSpace(c)
		if len(c) > 3 {
			out = append(out, c)
		}
	}
	return out
}
