package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sonde-dev/sonde/internal/graph"
)

// Planner turns a research goal into a dependency-ordered task plan using a
// model's structured output.
type Planner struct {
	model    ModelInvoker
	maxTasks int
}

// NewPlanner creates a planner. maxTasks caps the generated plan; zero means
// no cap.
func NewPlanner(model ModelInvoker, maxTasks int) *Planner {
	return &Planner{model: model, maxTasks: maxTasks}
}

// Brief expands a raw goal into a short research brief. Failures here are
// fatal to a run; the planner has nothing to fall back on.
func (p *Planner) Brief(ctx context.Context, goal string) (string, error) {
	prompt := fmt.Sprintf(
		"Restate the research goal below as a concise brief: scope, the questions to answer, and what a complete answer looks like. Keep it under 200 words.\n\nGoal: %s",
		goal)
	brief, err := p.model.Invoke(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate brief: %w", err)
	}
	return brief, nil
}

// plannedTask is the wire shape of one task in the model's plan output.
type plannedTask struct {
	Name        string   `json:"name"`
	Priority    string   `json:"priority"`
	DependsOn   []string `json:"depends_on"`
	Description string   `json:"description"`
}

type plannedGraph struct {
	Tasks []plannedTask `json:"tasks"`
}

// GeneratePlan asks the model for a task plan and converts it into TaskNodes
// with fresh ids. The result is unvalidated; scheduling owns validation.
func (p *Planner) GeneratePlan(ctx context.Context, goal, brief string) ([]graph.TaskNode, error) {
	prompt := fmt.Sprintf(`Decompose this research brief into subtasks.
Respond with a JSON object: {"tasks": [{"name": string, "priority": "high"|"medium"|"low", "depends_on": [task names], "description": string}]}.
Task names must be unique. depends_on may only reference other task names in the plan.

Goal: %s

Brief: %s`, goal, brief)

	var plan plannedGraph
	if err := p.model.InvokeJSON(ctx, prompt, &plan); err != nil {
		return nil, fmt.Errorf("generate plan: %w", err)
	}
	if len(plan.Tasks) == 0 {
		return nil, fmt.Errorf("generate plan: model returned no tasks")
	}
	if p.maxTasks > 0 && len(plan.Tasks) > p.maxTasks {
		plan.Tasks = plan.Tasks[:p.maxTasks]
	}

	nodes := make([]graph.TaskNode, 0, len(plan.Tasks))
	for _, t := range plan.Tasks {
		nodes = append(nodes, graph.TaskNode{
			ID:          uuid.NewString(),
			Name:        strings.TrimSpace(t.Name),
			Priority:    normalizePriority(t.Priority),
			DependsOn:   t.DependsOn,
			Description: t.Description,
		})
	}
	log.Info().Int("tasks", len(nodes)).Msg("generated task plan")
	return nodes, nil
}

func normalizePriority(s string) graph.Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return graph.PriorityHigh
	case "low":
		return graph.PriorityLow
	default:
		return graph.PriorityMedium
	}
}
