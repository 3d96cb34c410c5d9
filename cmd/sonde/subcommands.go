package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sonde-dev/sonde/internal/core"
	"github.com/sonde-dev/sonde/internal/engine"
	"github.com/sonde-dev/sonde/internal/graph"
	"github.com/sonde-dev/sonde/internal/pipeline"
	"github.com/sonde-dev/sonde/internal/research"
	"github.com/sonde-dev/sonde/internal/resilience"
	"github.com/sonde-dev/sonde/pkg/api"
)

// resolveConfig loads the runtime configuration for a command.
func resolveConfig(cmd *cobra.Command) (core.Config, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	return core.LoadConfig(cfgPath)
}

// buildOrchestrator wires the full pipeline from configuration. The returned
// cleanup stops the rate limiter.
func buildOrchestrator(cfg core.Config) (*pipeline.Orchestrator, *engine.Metrics, func(), error) {
	client, err := research.NewOpenAIClient(cfg.Model.APIKey, cfg.Model.Name)
	if err != nil {
		return nil, nil, nil, err
	}
	reg := research.NewRegistry()
	reg.RegisterModel(client)
	reg.RegisterSearch(client)

	model, err := reg.Model(cfg.Model.Provider)
	if err != nil {
		return nil, nil, nil, err
	}
	search, err := reg.Search(cfg.Model.Provider)
	if err != nil {
		return nil, nil, nil, err
	}

	limiter := resilience.NewRateLimiter(cfg.RateLimiterConfig())
	metrics := engine.NewMetrics()
	exec := engine.NewTaskExecutor(model, search, limiter, cfg.RetryPolicy(), cfg.EngineConfig(), metrics)
	runner := engine.NewBatchRunner(exec, cfg.EngineConfig().MaxConcurrentTasks)
	planner := research.NewPlanner(model, 0)
	synth := pipeline.NewSynthesizer(model, cfg.SynthesisConfig())
	return pipeline.NewOrchestrator(planner, runner, synth), metrics, limiter.Close, nil
}

// Validate a task plan file
func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a task plan's dependency graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			_, tasks, err := core.LoadPlanFile(file)
			if err != nil {
				return err
			}
			v := graph.ValidateDependencies(tasks)
			for _, e := range v.Errors {
				fmt.Println(e)
			}
			if !v.Valid {
				return fmt.Errorf("plan invalid: %d finding(s)", len(v.Errors))
			}
			fmt.Printf("plan valid: %d task(s)\n", len(tasks))
			return nil
		},
	}
	cmd.Flags().String("file", "", "task plan file (yaml)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// Print the execution schedule for a task plan file
func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the batch schedule for a task plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			_, tasks, err := core.LoadPlanFile(file)
			if err != nil {
				return err
			}
			schedule, err := graph.BuildSchedule(tasks)
			if err != nil {
				return err
			}
			byID := make(map[string]graph.TaskNode, len(tasks))
			for _, t := range tasks {
				byID[t.ID] = t
			}
			for _, b := range schedule.Batches {
				names := make([]string, 0, len(b.TaskIDs))
				for _, id := range b.TaskIDs {
					names = append(names, byID[id].Name)
				}
				fmt.Printf("batch %d: %s\n", b.Number, strings.Join(names, ", "))
			}
			return nil
		},
	}
	cmd.Flags().String("file", "", "task plan file (yaml)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// Run a research goal end to end
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a research goal through the full pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			goal, _ := cmd.Flags().GetString("goal")
			planPath, _ := cmd.Flags().GetString("plan")
			if goal == "" && planPath == "" {
				return fmt.Errorf("either --goal or --plan is required")
			}
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			orch, metrics, cleanup, err := buildOrchestrator(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			var report *pipeline.Report
			if planPath != "" {
				planGoal, tasks, err := core.LoadPlanFile(planPath)
				if err != nil {
					return err
				}
				if goal == "" {
					goal = planGoal
				}
				report, err = orch.RunWithPlan(ctx, goal, tasks)
				if err != nil {
					return err
				}
			} else {
				report, err = orch.Run(ctx, goal)
				if err != nil {
					return err
				}
			}

			store, err := core.NewStore(cfg.StorePath())
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.SaveRun(ctx, report.RunID, goal, api.RunSucceeded); err != nil {
				return err
			}
			if err := store.SaveResults(ctx, report.RunID, report.Tasks, report.Results); err != nil {
				return err
			}
			if err := store.SaveReport(ctx, report.RunID, report.Title, renderReport(report)); err != nil {
				return err
			}

			ok, failed, searches, searchErrs, _ := metrics.Stats()
			fmt.Println(renderReport(report))
			fmt.Printf("\nrun %s: %d succeeded, %d failed, %d searches (%d errored)\n",
				report.RunID, ok, failed, searches, searchErrs)
			return nil
		},
	}
	cmd.Flags().String("goal", "", "research goal")
	cmd.Flags().String("plan", "", "pre-built task plan file (skips planning)")
	return cmd
}

// List stored runs
func newRunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List stored runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			store, err := core.NewStore(cfg.StorePath())
			if err != nil {
				return err
			}
			defer store.Close()
			runs, err := store.ListRuns(cmd.Context())
			if err != nil {
				return err
			}
			for _, r := range runs {
				fmt.Printf("%s\t%s\t%s\t%s\n", r.ID, r.Status, r.CreatedAt.Format("2006-01-02 15:04"), r.Goal)
			}
			return nil
		},
	}
}

// renderReport flattens a report into printable markdown.
func renderReport(r *pipeline.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", r.Title)
	fmt.Fprintf(&b, "## Executive Summary\n%s\n\n", r.ExecutiveSummary)
	for _, s := range r.Sections {
		fmt.Fprintf(&b, "## %s\n%s\n\n", s.Topic, s.Content)
	}
	if r.ConsolidatedData != "" {
		fmt.Fprintf(&b, "## Key Data\n%s\n\n", r.ConsolidatedData)
	}
	fmt.Fprintf(&b, "## Conclusion\n%s\n", r.Conclusion)
	return b.String()
}
