package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sonde-dev/sonde/internal/engine"
	"github.com/sonde-dev/sonde/internal/graph"
	"github.com/sonde-dev/sonde/internal/research"
)

// Stage names the orchestrator's linear states.
type Stage string

const (
	StagePlanning       Stage = "planning"
	StagePlanGeneration Stage = "plan_generation"
	StageScheduling     Stage = "scheduling"
	StageExecution      Stage = "execution"
	StageSynthesis      Stage = "synthesis"
)

// StageError marks a fatal failure in a specific stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("stage %s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// Report is the final product of a run.
type Report struct {
	RunID            string                   `json:"run_id"`
	Goal             string                   `json:"goal"`
	Brief            string                   `json:"brief"`
	Title            string                   `json:"title"`
	ExecutiveSummary string                   `json:"executive_summary"`
	Sections         []Section                `json:"sections"`
	ConsolidatedData string                   `json:"consolidated_data"`
	Conclusion       string                   `json:"conclusion"`
	Schedule         *graph.ExecutionSchedule `json:"schedule"`
	Tasks            []graph.TaskNode         `json:"tasks"`
	Results          map[string]engine.Result `json:"results"`
	StartedAt        time.Time                `json:"started_at"`
	FinishedAt       time.Time                `json:"finished_at"`
}

// Section is one generated report section.
type Section struct {
	Topic   string `json:"topic"`
	Content string `json:"content"`
}

// Orchestrator walks a run through its five stages in order, with no
// branching and no revisiting. Planning, plan generation, scheduling, and
// synthesis failures are fatal; execution failures stay per-task.
type Orchestrator struct {
	planner *research.Planner
	runner  *engine.BatchRunner
	synth   *Synthesizer
}

func NewOrchestrator(planner *research.Planner, runner *engine.BatchRunner, synth *Synthesizer) *Orchestrator {
	return &Orchestrator{planner: planner, runner: runner, synth: synth}
}

// Run drives one research goal end to end. It returns the report, or a
// *StageError naming the stage that aborted the run.
func (o *Orchestrator) Run(ctx context.Context, goal string) (*Report, error) {
	runID := uuid.NewString()
	started := time.Now()
	log.Info().Str("run", runID).Str("goal", goal).Msg("starting research run")

	log.Info().Str("stage", string(StagePlanning)).Msg("entering stage")
	brief, err := o.planner.Brief(ctx, goal)
	if err != nil {
		return nil, &StageError{Stage: StagePlanning, Err: err}
	}

	log.Info().Str("stage", string(StagePlanGeneration)).Msg("entering stage")
	tasks, err := o.planner.GeneratePlan(ctx, goal, brief)
	if err != nil {
		return nil, &StageError{Stage: StagePlanGeneration, Err: err}
	}

	return o.runTasks(ctx, runID, started, goal, brief, tasks)
}

// RunWithPlan executes a pre-built task plan, skipping the planning and plan
// generation stages. Scheduling onward behaves exactly as in Run.
func (o *Orchestrator) RunWithPlan(ctx context.Context, goal string, tasks []graph.TaskNode) (*Report, error) {
	runID := uuid.NewString()
	started := time.Now()
	log.Info().Str("run", runID).Int("tasks", len(tasks)).Msg("starting research run from plan")
	return o.runTasks(ctx, runID, started, goal, "", tasks)
}

func (o *Orchestrator) runTasks(ctx context.Context, runID string, started time.Time, goal, brief string, tasks []graph.TaskNode) (*Report, error) {
	log.Info().Str("stage", string(StageScheduling)).Msg("entering stage")
	schedule, err := graph.BuildSchedule(tasks)
	if err != nil {
		return nil, &StageError{Stage: StageScheduling, Err: err}
	}

	log.Info().Str("stage", string(StageExecution)).Int("batches", schedule.BatchCount).Msg("entering stage")
	results := o.runner.RunSchedule(ctx, schedule, tasks)

	log.Info().Str("stage", string(StageSynthesis)).Msg("entering stage")
	synthesis, err := o.synth.Synthesize(ctx, goal, brief, tasks, results)
	if err != nil {
		return nil, &StageError{Stage: StageSynthesis, Err: err}
	}

	report := &Report{
		RunID:            runID,
		Goal:             goal,
		Brief:            brief,
		Title:            synthesis.Title,
		ExecutiveSummary: synthesis.ExecutiveSummary,
		Sections:         synthesis.Sections,
		ConsolidatedData: synthesis.ConsolidatedData,
		Conclusion:       synthesis.Conclusion,
		Schedule:         schedule,
		Tasks:            tasks,
		Results:          results,
		StartedAt:        started,
		FinishedAt:       time.Now(),
	}
	log.Info().Str("run", runID).Dur("took", report.FinishedAt.Sub(started)).Msg("research run complete")
	return report, nil
}
