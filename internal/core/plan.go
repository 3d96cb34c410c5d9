package core

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/sonde-dev/sonde/internal/graph"
)

// planFile is the on-disk shape of a hand-written task plan.
type planFile struct {
	Goal  string           `yaml:"goal"`
	Tasks []graph.TaskNode `yaml:"tasks"`
}

// LoadPlanFile reads a YAML task plan. Tasks without ids get fresh ones; the
// plan is returned unvalidated so callers can surface validator findings.
func LoadPlanFile(path string) (string, []graph.TaskNode, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("open plan: %w", err)
	}
	var plan planFile
	if err := yaml.Unmarshal(content, &plan); err != nil {
		return "", nil, fmt.Errorf("parse plan: %w", err)
	}
	for i := range plan.Tasks {
		if plan.Tasks[i].ID == "" {
			plan.Tasks[i].ID = uuid.NewString()
		}
		if plan.Tasks[i].Priority == "" {
			plan.Tasks[i].Priority = graph.PriorityMedium
		}
	}
	return plan.Goal, plan.Tasks, nil
}
