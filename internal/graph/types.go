package graph

import "fmt"

// Priority orders tasks within a batch. Higher priorities run first.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// rank maps a priority to a sortable weight. Unknown values sort last.
func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// TaskNode is one unit of research work. Names are unique within a run and
// dependencies refer to sibling names, not ids.
type TaskNode struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Priority    Priority `json:"priority" yaml:"priority"`
	DependsOn   []string `json:"depends_on" yaml:"depends_on"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// ExecutionBatch is one wave of tasks whose dependencies are all satisfied by
// earlier batches. Tasks within a batch may run concurrently.
type ExecutionBatch struct {
	Number      int      `json:"number" yaml:"number"`
	TaskIDs     []string `json:"task_ids" yaml:"task_ids"`
	Description string   `json:"description" yaml:"description"`
}

// ExecutionSchedule is the full scheduling result for one run. It is immutable
// once produced and consumed exactly once by the batch runner.
type ExecutionSchedule struct {
	Batches    []ExecutionBatch `json:"batches" yaml:"batches"`
	TopoOrder  []string         `json:"topo_order" yaml:"topo_order"`
	BatchCount int              `json:"batch_count" yaml:"batch_count"`
}

// nodeByID builds an id lookup for a task list.
func nodeByID(tasks []TaskNode) map[string]TaskNode {
	m := make(map[string]TaskNode, len(tasks))
	for _, t := range tasks {
		m[t.ID] = t
	}
	return m
}

// idByName builds a name to id lookup for a task list.
func idByName(tasks []TaskNode) map[string]string {
	m := make(map[string]string, len(tasks))
	for _, t := range tasks {
		m[t.Name] = t.ID
	}
	return m
}

func batchDescription(n int, tasks []string) string {
	return fmt.Sprintf("Batch %d: %d task(s)", n, len(tasks))
}
