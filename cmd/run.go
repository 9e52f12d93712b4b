// -- cmd/run.go --
package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/browser"
	"github.com/xkilldash9x/pilot-cli/internal/controller"
	"github.com/xkilldash9x/pilot-cli/internal/executor"
	"github.com/xkilldash9x/pilot-cli/internal/journal"
	"github.com/xkilldash9x/pilot-cli/internal/llmclient"
	"github.com/xkilldash9x/pilot-cli/internal/observability"
	"github.com/xkilldash9x/pilot-cli/internal/plan"
)

// newRunCmd creates and configures the `run` command, the composition root
// for a single task run.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run \"<task>\"",
		Short: "Plans and executes a browsing task",
		Long: `Asks the planning model for a step-by-step plan for the given task,
validates it, then executes it step by step in a browser. Required steps that
fail trigger a bounded replan cycle before the run aborts.`,
		Args: cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags so they override config file and env values.
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			task := strings.Join(args, " ")

			applyFlagOverrides(cmd)

			runID := uuid.New().String()
			logger.Info("Starting run", zap.String("run_id", runID), zap.String("task", task))

			oracle, err := llmclient.NewClient(cfg.LLM(), logger)
			if err != nil {
				return fmt.Errorf("failed to create LLM client: %w", err)
			}

			jrnl, err := journal.NewFileJournal(cfg.Journal(), runID, logger)
			if err != nil {
				return fmt.Errorf("failed to open journal: %w", err)
			}
			defer jrnl.Close()

			backend, err := browser.New(ctx, cfg.Browser(), logger)
			if err != nil {
				return fmt.Errorf("failed to launch browser: %w", err)
			}
			defer backend.Close()

			var vision schemas.VisionLLMClient
			if cfg.LLM().VisionModel != "" {
				vision = oracle
			}

			planner := plan.NewPlanner(oracle, cfg.Run().PlanAttempts, logger)
			runner := executor.New(backend, oracle, vision, jrnl, cfg.Run(), logger)
			ctrl := controller.New(runID, planner, runner, jrnl, cfg.Run(), logger)

			summary, err := ctrl.Run(ctx, task)
			printSummary(cmd, summary)
			if err != nil {
				var exhausted *controller.ReplanBudgetExhaustedError
				if errors.As(err, &exhausted) {
					return fmt.Errorf("run aborted: %w", err)
				}
				return fmt.Errorf("run failed: %w", err)
			}
			return nil
		},
	}

	runCmd.Flags().Bool("headless", true, "run the browser without a visible window")
	runCmd.Flags().Bool("debug-browser", false, "log CDP traffic")
	runCmd.Flags().Int("max-replans", 1, "replan budget for required-step failures")
	runCmd.Flags().Int("plan-attempts", 2, "planner parse attempts before aborting")
	runCmd.Flags().String("model", "", "planning/executor model name")
	runCmd.Flags().String("journal-dir", "", "directory for run journals")

	return runCmd
}

// applyFlagOverrides pushes explicitly-set flags into the shared config.
func applyFlagOverrides(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("headless") {
		v, _ := flags.GetBool("headless")
		cfg.SetBrowserHeadless(v)
	}
	if flags.Changed("debug-browser") {
		v, _ := flags.GetBool("debug-browser")
		cfg.SetBrowserDebug(v)
	}
	if flags.Changed("max-replans") {
		v, _ := flags.GetInt("max-replans")
		cfg.SetRunMaxReplans(v)
	}
	if flags.Changed("plan-attempts") {
		v, _ := flags.GetInt("plan-attempts")
		cfg.SetRunPlanAttempts(v)
	}
	if v, _ := flags.GetString("model"); v != "" {
		cfg.SetLLMModel(v)
	}
	if v, _ := flags.GetString("journal-dir"); v != "" {
		cfg.SetJournalDir(v)
	}
}

func printSummary(cmd *cobra.Command, summary schemas.RunSummary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nRun %s: %s\n", summary.RunID, verdict(summary.Success))
	for _, step := range summary.Steps {
		fmt.Fprintf(out, "  step %d %-4s %s (%s)\n", step.ID, verdict(step.Success), step.Goal, step.Note)
	}
	fmt.Fprintf(out, "steps: %d passed / %d failed, replans: %d, duration: %.1fs\n",
		summary.Metrics.StepsPassed, summary.Metrics.StepsFailed,
		summary.ReplansUsed, summary.Metrics.TotalSeconds)
}

func verdict(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}
