package planner

import (
	"context"
	"fmt"
	"strings"
)

// ContextProvider contributes extra background to generation prompts.
// Providers return empty strings when they have nothing relevant; they
// must never fail the prompt.
type ContextProvider interface {
	Provide(ctx context.Context, request string) string
}

// buildActionPrompt assembles the generation prompt for one cycle:
// the goal, acceptance criteria, classification, recent reflections
// and any provider context.
func (p *Planner) buildActionPrompt(ctx context.Context, in *Intention) string {
	var b strings.Builder

	b.WriteString("You are an autonomous operator. Produce exactly ONE next action toward the goal.\n\n")
	fmt.Fprintf(&b, "Goal: %s\n", in.Request)
	fmt.Fprintf(&b, "Acceptance criteria: %s\n", in.Acceptance)
	fmt.Fprintf(&b, "Output classification: %s\n", in.Tag)

	reflections := p.recentReflections(in)
	if len(reflections) > 0 {
		b.WriteString("\nPrevious attempts failed. Reflections, oldest first:\n")
		for _, r := range reflections {
			fmt.Fprintf(&b, "- %s\n", r)
		}
		b.WriteString("Address these failures in your next action.\n")
	}

	for _, provider := range p.providers {
		if extra := provider.Provide(ctx, in.Request); extra != "" {
			fmt.Fprintf(&b, "\nContext:\n%s\n", extra)
		}
	}

	b.WriteString(`
Respond with JSON only:
{
  "thought": "one sentence on why this action moves toward the goal",
  "kind": "write_file" | "append_file" | "delete_file" | "run_process" | "evaluate_code",
  "target": "file path or command line",
  "content": "file content or code (empty for run_process and delete_file)"
}`)
	return b.String()
}

// recentReflections returns the last N failure reflections on the
// intention, oldest first.
func (p *Planner) recentReflections(in *Intention) []string {
	var out []string
	for _, c := range in.Cycles {
		if !c.Success && c.Reflection != "" {
			out = append(out, c.Reflection)
		}
	}
	if n := p.cfg.ReflectionWindow; n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

// buildDecomposePrompt asks the model to split a stuck goal into
// smaller independent subgoals.
func (p *Planner) buildDecomposePrompt(in *Intention) string {
	var b strings.Builder

	b.WriteString("A goal has repeatedly failed as a single step and must be split into smaller subgoals.\n\n")
	fmt.Fprintf(&b, "Goal: %s\n", in.Request)
	fmt.Fprintf(&b, "Acceptance criteria: %s\n", in.Acceptance)

	if reflections := p.recentReflections(in); len(reflections) > 0 {
		b.WriteString("\nFailure history:\n")
		for _, r := range reflections {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}

	b.WriteString(`
Split the goal into 2-4 smaller, independently checkable subgoals in
execution order. Respond with JSON only:
[{"request": "...", "acceptance": "..."}, ...]`)
	return b.String()
}

// buildJudgePrompt asks the model whether the acceptance criteria are
// satisfied given what the action produced.
func buildJudgePrompt(in *Intention, c *Cycle) string {
	var b strings.Builder

	b.WriteString("Judge whether the acceptance criteria are satisfied.\n\n")
	fmt.Fprintf(&b, "Goal: %s\n", in.Request)
	fmt.Fprintf(&b, "Acceptance criteria: %s\n", in.Acceptance)
	fmt.Fprintf(&b, "\nAction taken: %s %s\n", c.Action.Kind, c.Action.Target)
	if c.Execution != nil {
		fmt.Fprintf(&b, "Exit code: %d\n", c.Execution.ExitCode)
		if c.Execution.Stdout != "" {
			fmt.Fprintf(&b, "Stdout:\n%s\n", clipText(c.Execution.Stdout, 2000))
		}
		if c.Execution.Stderr != "" {
			fmt.Fprintf(&b, "Stderr:\n%s\n", clipText(c.Execution.Stderr, 1000))
		}
	}

	b.WriteString(`
Respond with JSON only:
{"judgment": "success" | "partial" | "failure", "reason": "one sentence"}`)
	return b.String()
}

func clipText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
