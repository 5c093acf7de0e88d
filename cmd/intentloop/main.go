// Command intentloop runs the verification-and-execution loop from the
// terminal: submit a request, watch the intention tree resolve, and
// inspect the audit trail of past sessions.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"intentloop/internal/config"
	"intentloop/internal/inference"
	"intentloop/internal/logging"
	"intentloop/internal/planner"
	"intentloop/internal/store"
	"intentloop/internal/tactile"
	"intentloop/internal/trust"
	"intentloop/internal/verify"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "intentloop",
		Short: "Trust-gated verification and execution loop for autonomous operations",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional; real config comes from the workspace.
			_ = godotenv.Load()

			ws, err := os.Getwd()
			if err != nil {
				return err
			}
			if err := logging.Initialize(ws); err != nil {
				return err
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.CloseAll()
		},
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newTrustCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		acceptance string
		rollback   bool
	)

	cmd := &cobra.Command{
		Use:   "run <request>",
		Short: "Process a request through the full verify-execute loop",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			request := strings.Join(args, " ")

			ws, err := os.Getwd()
			if err != nil {
				return err
			}
			cfg, err := config.Load(ws)
			if err != nil {
				return err
			}
			if cfg.Logging.DebugMode {
				logging.Configure(true, cfg.Logging.Level, cfg.Logging.Categories)
			}

			llm, err := inference.New(cfg.LLM)
			if err != nil {
				return fmt.Errorf("inference backend: %w", err)
			}

			engine := tactile.NewEngine(cfg.Execution)
			verifier := verify.New(cfg.Verifier, llm, planner.NewEngineRunner(engine))
			budget := trust.New(cfg.Trust.Initial)
			p := planner.New(cfg.Planner, llm, verifier, engine, budget)

			auditDB, err := store.Open(auditPath(ws))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: audit store unavailable: %v\n", err)
			} else {
				defer auditDB.Close()
				engine.SetAudit(func(ev tactile.AuditEvent) {
					if err := auditDB.RecordExecution(ev); err != nil {
						logging.StoreError("record execution: %v", err)
					}
				})
				p.SetSink(auditDB)
			}

			intention, err := p.Run(cmd.Context(), request, acceptance)
			if err != nil {
				return err
			}

			printIntention(cmd, p, intention, 0)
			fmt.Fprintf(cmd.OutOrStdout(), "\nTrust remaining: %.1f\n", p.TrustRemaining())

			if intention.Status != planner.StatusSucceeded && rollback {
				rollbackSubtree(cmd, p, intention.ID)
			}
			if intention.Status != planner.StatusSucceeded {
				if last := intention.LastCycle(); last != nil && last.Reflection != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Last reflection: %s\n", last.Reflection)
				}
				return fmt.Errorf("intention finished %s", intention.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&acceptance, "acceptance", "a", "", "acceptance criteria (defaults to the request)")
	cmd.Flags().BoolVar(&rollback, "rollback-on-failure", false, "undo reversible executions when the intention fails")
	return cmd
}

// printIntention renders the intention tree with its cycle summaries.
func printIntention(cmd *cobra.Command, p *planner.Planner, in *planner.Intention, indent int) {
	pad := strings.Repeat("  ", indent)
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "%s[%s] %s\n", pad, in.Status, in.Request)
	for _, c := range in.Cycles {
		mark := "ok"
		if !c.Success {
			mark = "fail"
		}
		fmt.Fprintf(out, "%s  cycle %d: %s %s (%s, risk %s)",
			pad, c.Index, c.Action.Kind, clipLine(c.Action.Target, 60), mark, c.Risk.Level)
		if c.Reflection != "" {
			fmt.Fprintf(out, " - %s", clipLine(c.Reflection, 80))
		}
		fmt.Fprintln(out)
	}

	for _, cid := range in.Children {
		if child, ok := p.Tree().Get(cid); ok {
			printIntention(cmd, p, child, indent+1)
		}
	}
}

// rollbackSubtree undoes every reversible execution in the subtree,
// most recent first.
func rollbackSubtree(cmd *cobra.Command, p *planner.Planner, rootID string) {
	out := cmd.OutOrStdout()
	ids := executionIDs(p, rootID)

	for i := len(ids) - 1; i >= 0; i-- {
		if err := p.Engine().Undo(cmd.Context(), ids[i]); err != nil {
			fmt.Fprintf(out, "rollback %s: %v\n", ids[i], err)
		} else {
			fmt.Fprintf(out, "rolled back %s\n", ids[i])
		}
	}
}

func executionIDs(p *planner.Planner, id string) []string {
	in, ok := p.Tree().Get(id)
	if !ok {
		return nil
	}
	var ids []string
	for _, c := range in.Cycles {
		if c.Execution != nil && c.Execution.Reversible {
			ids = append(ids, c.Execution.ID)
		}
	}
	for _, cid := range in.Children {
		ids = append(ids, executionIDs(p, cid)...)
	}
	return ids
}

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently processed intentions from the audit trail",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := os.Getwd()
			if err != nil {
				return err
			}
			auditDB, err := store.Open(auditPath(ws))
			if err != nil {
				return err
			}
			defer auditDB.Close()

			recs, err := auditDB.RecentIntentions(limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No intentions recorded yet.")
				return nil
			}
			for _, r := range recs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  [%s]  cycles=%d trust=%.1f  %s\n",
					r.CreatedAt.Format("2006-01-02 15:04:05"), r.Status,
					r.CycleCount, r.TrustRemaining, clipLine(r.Request, 70))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of intentions to show")
	return cmd
}

func newTrustCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trust",
		Short: "Show the trust budget as of the last recorded session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := os.Getwd()
			if err != nil {
				return err
			}
			cfg, err := config.Load(ws)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Session starting budget: %.1f\n", cfg.Trust.Initial)

			auditDB, err := store.Open(auditPath(ws))
			if err != nil {
				return nil
			}
			defer auditDB.Close()

			recs, err := auditDB.RecentIntentions(1)
			if err != nil || len(recs) == 0 {
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "After last session (%s): %.1f\n",
				recs[0].CreatedAt.Format("2006-01-02 15:04:05"), recs[0].TrustRemaining)
			return nil
		},
	}
}

func auditPath(ws string) string {
	return filepath.Join(ws, ".intentloop", "audit.db")
}

func clipLine(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
