package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"intentloop/internal/classify"
	"intentloop/internal/config"
	"intentloop/internal/inference"
	"intentloop/internal/logging"
	"intentloop/internal/risk"
	"intentloop/internal/store"
	"intentloop/internal/tactile"
	"intentloop/internal/trust"
	"intentloop/internal/verify"
)

// AuditSink receives finished intentions. Sink failures are logged and
// swallowed; the audit trail never fails the work it records.
type AuditSink interface {
	RecordIntention(rec store.IntentionRecord) error
}

// Planner owns the full pipeline for one session: classification,
// trust-gated verification, execution and the recursive intention
// loop.
type Planner struct {
	cfg       config.PlannerConfig
	llm       inference.Client
	verifier  *verify.Verifier
	engine    *tactile.Engine
	budget    *trust.Budget
	tree      *Tree
	sink      AuditSink
	providers []ContextProvider
}

// New wires a planner. llm may be nil; the planner then fails cycles
// with an unavailability reflection instead of generating actions.
func New(cfg config.PlannerConfig, llm inference.Client, verifier *verify.Verifier,
	engine *tactile.Engine, budget *trust.Budget) *Planner {
	return &Planner{
		cfg:      cfg,
		llm:      llm,
		verifier: verifier,
		engine:   engine,
		budget:   budget,
		tree:     NewTree(),
	}
}

// SetSink installs the audit sink.
func (p *Planner) SetSink(sink AuditSink) { p.sink = sink }

// AddProvider registers a context provider for generation prompts.
func (p *Planner) AddProvider(cp ContextProvider) {
	p.providers = append(p.providers, cp)
}

// Tree exposes the intention arena for trace inspection.
func (p *Planner) Tree() *Tree { return p.tree }

// TrustRemaining returns the current trust budget.
func (p *Planner) TrustRemaining() float64 { return p.budget.Remaining() }

// Engine exposes the execution engine, for undo.
func (p *Planner) Engine() *tactile.Engine { return p.engine }

// NewEngineRunner adapts the execution engine as the verifier's
// behavioral command runner, so verification runs go through the same
// allow-list, limits and audit trail as real executions.
func NewEngineRunner(engine *tactile.Engine) verify.Runner {
	return func(ctx context.Context, command string) (bool, string) {
		res, err := engine.Execute(ctx, tactile.Action{
			Kind:   tactile.KindRunProcess,
			Target: command,
		})
		if err != nil {
			return false, err.Error()
		}
		return res.Success, res.Stdout + res.Stderr
	}
}

// Run processes one request to completion: the returned intention is
// the root of the resulting tree, in a terminal (or partial) status
// with its full cycle trace. An error is returned only for contract
// violations; failed intentions are a result, not an error.
func (p *Planner) Run(ctx context.Context, request, acceptanceHint string) (*Intention, error) {
	if strings.TrimSpace(request) == "" {
		return nil, errors.New("empty request")
	}

	tag := classify.Classify(request)
	logging.Classify("request %q classified as %s", clipText(request, 120), tag)

	acceptance := strings.TrimSpace(acceptanceHint)
	if acceptance == "" {
		acceptance = request
	}

	root := p.tree.AddRoot(request, acceptance, tag)
	logging.Plan("intention %s created for %q", root.ID, clipText(request, 120))

	status := p.process(ctx, root.ID)
	logging.Plan("intention %s finished: %s (%d cycles in subtree)",
		root.ID, status, p.tree.TotalCycles(root.ID))

	p.persist(root.ID)

	out, _ := p.tree.Get(root.ID)
	return out, nil
}

// process drives one intention to a terminal (or partial) status:
// cycle attempts up to the retry ceiling, then decomposition when the
// failure pattern warrants it.
func (p *Planner) process(ctx context.Context, id string) Status {
	in, ok := p.tree.Get(id)
	if !ok {
		return StatusFailed
	}

	if err := p.tree.SetStatus(id, StatusInProgress); err != nil {
		logging.PlanWarn("cannot start intention %s: %v", id, err)
		return in.Status
	}

	for attempt := 0; attempt < p.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			p.finish(id, StatusFailed)
			return StatusFailed
		}

		c := p.runCycle(ctx, in)
		// Cycles that fail before the judge still carry a judgment.
		if !c.Success && c.Judgment == "" {
			c.Judgment = JudgmentFailure
		}
		if err := p.tree.AppendCycle(id, c); err != nil {
			logging.PlanWarn("append cycle: %v", err)
		}

		if c.Success {
			p.finish(id, StatusSucceeded)
			return StatusSucceeded
		}

		logging.Plan("intention %s cycle %d failed (%s): %s",
			id, in.CycleCount()-1, c.FailureKind, c.Reflection)

		// Critical-risk failures do not get retried as-is; the goal is
		// split so each piece carries less blast radius.
		if c.Risk.Level == risk.Critical && in.Depth < p.cfg.MaxDepth {
			return p.decompose(ctx, in)
		}
	}

	if p.repeatedSameKind(in) && in.Depth < p.cfg.MaxDepth {
		return p.decompose(ctx, in)
	}

	p.finish(id, StatusFailed)
	return StatusFailed
}

// runCycle executes one generate-verify-execute-judge iteration.
func (p *Planner) runCycle(ctx context.Context, in *Intention) Cycle {
	c := Cycle{Timestamp: time.Now()}

	if p.llm == nil {
		c.FailureKind = "inference"
		c.Reflection = "inference unavailable"
		return c
	}

	raw, err := p.llm.Generate(ctx, p.buildActionPrompt(ctx, in), inference.ModeAction)
	if err != nil {
		c.FailureKind = "inference"
		if errors.Is(err, inference.ErrTimeout) {
			c.Reflection = "inference timeout"
		} else {
			c.Reflection = fmt.Sprintf("inference unavailable: %v", err)
		}
		return c
	}

	action, thought, err := parseAction(raw)
	c.Thought = thought
	if err != nil {
		c.FailureKind = "parse"
		c.Reflection = err.Error()
		return c
	}
	c.Action = action

	c.Risk = risk.Assess(string(action.Kind), action.Target, action.Content, in.Tag)
	c.Strategy = verify.ApplyTagOverride(verify.StrategyForRisk(c.Risk.Level), in.Tag)

	c.Verified = p.budget.ShouldVerify(c.Risk.Level)
	if c.Verified {
		vres := p.verifier.Verify(ctx, verify.Input{
			Kind:       string(action.Kind),
			TargetPath: action.Target,
			Content:    action.Content,
			Intent:     intentText(in),
		}, c.Strategy)
		c.Verification = vres

		if !vres.Passed {
			c.FailureKind = "verification:" + string(vres.FailedLayer)
			c.Reflection = verificationReflection(vres)
			p.budget.RecordOutcome(true, false, c.Risk.Level)
			return c
		}
	} else {
		logging.Trust("verification skipped for %s action at %s risk", action.Kind, c.Risk.Level)
	}

	execRes, err := p.engine.Execute(ctx, action)
	if err != nil {
		c.FailureKind = "execution"
		c.Reflection = err.Error()
		p.budget.RecordOutcome(c.Verified, false, c.Risk.Level)
		return c
	}
	c.Execution = execRes

	if !execRes.Success {
		c.FailureKind = "execution"
		c.Reflection = executionReflection(execRes)
		p.budget.RecordOutcome(c.Verified, false, c.Risk.Level)
		return c
	}

	judgment, reason, err := p.judge(ctx, in, &c)
	if err != nil {
		// A judge that cannot answer must not wave executed work
		// through. Infrastructure failure: the budget does not move.
		c.Judgment = JudgmentFailure
		c.FailureKind = "inference"
		if errors.Is(err, inference.ErrTimeout) {
			c.Reflection = "inference timeout"
		} else {
			c.Reflection = fmt.Sprintf("judge unavailable: %v", err)
		}
		logging.PlanWarn("judge for %s: %v", in.ID, err)
		return c
	}
	c.Judgment = judgment
	c.Success = judgment == JudgmentSuccess
	if !c.Success {
		c.FailureKind = "judgment"
		prefix := "acceptance not satisfied"
		if judgment == JudgmentPartial {
			prefix = "acceptance partially satisfied"
		}
		c.Reflection = prefix + ": " + reason
	}

	p.budget.RecordOutcome(c.Verified, c.Success, c.Risk.Level)
	return c
}

// judge grades the cycle outcome against the acceptance criteria. A
// nil client degrades to success, execution success standing in. A
// client error is returned to the caller, which fails the cycle.
func (p *Planner) judge(ctx context.Context, in *Intention, c *Cycle) (Judgment, string, error) {
	if p.llm == nil {
		return JudgmentSuccess, "execution succeeded (no judge available)", nil
	}

	raw, err := p.llm.Generate(ctx, buildJudgePrompt(in, c), inference.ModeJudge)
	if err != nil {
		return JudgmentFailure, "", err
	}

	var verdict struct {
		Judgment  string `json:"judgment"`
		Satisfied *bool  `json:"satisfied"`
		Reason    string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(inference.StripFences(raw)), &verdict); err != nil {
		return JudgmentSuccess, "execution succeeded (judge response unparseable)", nil
	}
	// Some models answer with the boolean form despite the schema.
	if verdict.Judgment == "" && verdict.Satisfied != nil {
		if *verdict.Satisfied {
			return JudgmentSuccess, verdict.Reason, nil
		}
		return JudgmentFailure, verdict.Reason, nil
	}
	return ParseJudgment(verdict.Judgment), verdict.Reason, nil
}

// intentText is the goal statement the intent layer checks against.
func intentText(in *Intention) string {
	if in.Acceptance == "" || in.Acceptance == in.Request {
		return in.Request
	}
	return in.Request + " (acceptance: " + in.Acceptance + ")"
}

// decompose splits a stuck intention into child intentions and
// processes them depth-first, left to right. A child failure stops the
// sweep; later siblings depend on earlier ones.
func (p *Planner) decompose(ctx context.Context, in *Intention) Status {
	goals := p.subgoalsFor(ctx, in)
	logging.Plan("decomposing intention %s into %d subgoals (depth %d)",
		in.ID, len(goals), in.Depth+1)

	var childIDs []string
	for _, g := range goals {
		child, err := p.tree.AddChild(in.ID, g.Request, g.Acceptance, classify.Classify(g.Request))
		if err != nil {
			logging.PlanWarn("add child: %v", err)
			continue
		}
		childIDs = append(childIDs, child.ID)
	}
	if len(childIDs) < 2 {
		p.finish(in.ID, StatusFailed)
		return StatusFailed
	}

	succeeded := 0
	for _, cid := range childIDs {
		if ctx.Err() != nil {
			break
		}
		if p.process(ctx, cid) == StatusSucceeded {
			succeeded++
		} else {
			break
		}
	}

	switch {
	case p.tree.AllChildrenSucceeded(in.ID):
		p.finish(in.ID, StatusSucceeded)
		return StatusSucceeded
	case succeeded > 0:
		p.finish(in.ID, StatusPartial)
		return StatusPartial
	default:
		p.finish(in.ID, StatusFailed)
		return StatusFailed
	}
}

// subgoalsFor obtains subgoals from the model, falling back to the
// clause-splitting heuristic when the model cannot help.
func (p *Planner) subgoalsFor(ctx context.Context, in *Intention) []subgoal {
	if p.llm != nil {
		raw, err := p.llm.Generate(ctx, p.buildDecomposePrompt(in), inference.ModePlan)
		if err == nil {
			if goals, perr := parseSubgoals(raw); perr == nil {
				return goals
			} else {
				logging.PlanWarn("decomposition response rejected: %v", perr)
			}
		}
	}
	return heuristicSubgoals(in.Request, in.Acceptance)
}

// repeatedSameKind reports whether the last two failed cycles share a
// failure kind, the signal that retrying the same shape of action is
// not going to work. Inference failures are infrastructure, not goal
// shape; splitting the goal cannot fix them, so they never trigger
// decomposition.
func (p *Planner) repeatedSameKind(in *Intention) bool {
	var kinds []string
	for _, c := range in.Cycles {
		if !c.Success && c.FailureKind != "" && c.FailureKind != "inference" {
			kinds = append(kinds, c.FailureKind)
		}
	}
	n := len(kinds)
	return n >= 2 && kinds[n-1] == kinds[n-2]
}

func (p *Planner) finish(id string, status Status) {
	if err := p.tree.SetStatus(id, status); err != nil {
		logging.PlanWarn("finish intention %s: %v", id, err)
	}
}

// persist writes the finished root intention to the audit sink.
func (p *Planner) persist(rootID string) {
	if p.sink == nil {
		return
	}
	root, ok := p.tree.Get(rootID)
	if !ok {
		return
	}

	rec := store.IntentionRecord{
		ID:             root.ID,
		CreatedAt:      root.CreatedAt,
		Request:        root.Request,
		Status:         string(root.Status),
		Depth:          root.Depth,
		CycleCount:     p.tree.TotalCycles(rootID),
		TrustRemaining: p.budget.Remaining(),
		Metrics:        p.collectMetrics(rootID),
		Trace:          p.snapshotSubtree(rootID),
	}
	if err := p.sink.RecordIntention(rec); err != nil {
		logging.StoreError("persist intention %s: %v", rootID, err)
	}
}

// collectMetrics aggregates counters over the whole subtree: every
// cycle after an intention's first is a retry, every intention with
// children was decomposed.
func (p *Planner) collectMetrics(id string) store.SessionMetrics {
	m := store.SessionMetrics{LayerPassCounts: make(map[string]int)}
	p.accumulateMetrics(id, &m)
	if len(m.LayerPassCounts) == 0 {
		m.LayerPassCounts = nil
	}
	return m
}

func (p *Planner) accumulateMetrics(id string, m *store.SessionMetrics) {
	in, ok := p.tree.Get(id)
	if !ok {
		return
	}
	m.CycleCount += len(in.Cycles)
	if len(in.Cycles) > 1 {
		m.Retries += len(in.Cycles) - 1
	}
	if len(in.Children) > 0 {
		m.Decompositions++
	}
	for _, c := range in.Cycles {
		if c.Verification == nil {
			continue
		}
		m.TotalTimeMS += c.Verification.TotalTimeMS
		for _, lr := range c.Verification.Layers {
			if lr.Passed {
				m.LayerPassCounts[string(lr.Layer)]++
			}
		}
	}
	for _, cid := range in.Children {
		p.accumulateMetrics(cid, m)
	}
}

// snapshotSubtree materializes the subtree as plain data for the audit
// trace.
func (p *Planner) snapshotSubtree(id string) any {
	in, ok := p.tree.Get(id)
	if !ok {
		return nil
	}
	node := map[string]any{
		"id":         in.ID,
		"request":    in.Request,
		"acceptance": in.Acceptance,
		"status":     string(in.Status),
		"depth":      in.Depth,
		"cycles":     in.Cycles,
	}
	if len(in.Children) > 0 {
		var children []any
		for _, cid := range in.Children {
			children = append(children, p.snapshotSubtree(cid))
		}
		node["children"] = children
	}
	return node
}

func verificationReflection(r *verify.Result) string {
	for _, lr := range r.Layers {
		if lr.Layer == r.FailedLayer {
			return fmt.Sprintf("%s verification failed: %s", lr.Layer, lr.Message)
		}
	}
	return fmt.Sprintf("%s verification failed", r.FailedLayer)
}

func executionReflection(res *tactile.ExecutionResult) string {
	msg := "execution failed: " + res.Error
	if res.Stderr != "" {
		msg += " | stderr: " + clipText(res.Stderr, 400)
	}
	return msg
}
