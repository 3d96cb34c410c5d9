package graph

import (
	"sort"

	"github.com/rs/zerolog/log"
)

// PlanBatches groups a topologically ordered task list into execution waves.
// A task joins the open batch only when every dependency sits in an already
// closed batch; otherwise the open batch closes and a new one starts with that
// task. Within each closed batch, tasks stable-sort by priority.
//
// Batch boundaries follow encounter order rather than dependency depth, so the
// plan can contain more batches than the theoretical minimum. The upside is
// that a task never shares a batch with anything scheduled after one of its
// dependencies.
func PlanBatches(tasks []TaskNode, order []string) []ExecutionBatch {
	if len(order) == 0 {
		return nil
	}
	byID := nodeByID(tasks)
	ids := idByName(tasks)

	completed := make(map[string]bool, len(tasks))
	var batches []ExecutionBatch
	var current []string

	closeBatch := func() {
		if len(current) == 0 {
			return
		}
		sortBatchByPriority(current, byID)
		for _, id := range current {
			completed[id] = true
		}
		n := len(batches) + 1
		batches = append(batches, ExecutionBatch{
			Number:      n,
			TaskIDs:     current,
			Description: batchDescription(n, current),
		})
		current = nil
	}

	for _, id := range order {
		task, ok := byID[id]
		if !ok {
			continue
		}
		ready := true
		for _, dep := range task.DependsOn {
			depID, ok := ids[dep]
			if !ok {
				continue
			}
			if !completed[depID] {
				ready = false
				break
			}
		}
		if !ready {
			closeBatch()
		}
		current = append(current, id)
	}
	closeBatch()

	log.Debug().Int("tasks", len(order)).Int("batches", len(batches)).Msg("planned execution batches")
	return batches
}

// sortBatchByPriority stable-sorts ids by task priority, high first, keeping
// the relative order of equal priorities.
func sortBatchByPriority(ids []string, byID map[string]TaskNode) {
	sort.SliceStable(ids, func(i, j int) bool {
		return byID[ids[i]].Priority.rank() < byID[ids[j]].Priority.rank()
	})
}

// BuildSchedule validates, sorts, and batches a task set in one pass. A failed
// validation or a detected cycle is fatal to scheduling.
func BuildSchedule(tasks []TaskNode) (*ExecutionSchedule, error) {
	if v := ValidateDependencies(tasks); !v.Valid {
		return nil, &ScheduleError{Errors: v.Errors}
	}
	order, err := TopoSort(tasks)
	if err != nil {
		return nil, err
	}
	batches := PlanBatches(tasks, order)
	return &ExecutionSchedule{
		Batches:    batches,
		TopoOrder:  order,
		BatchCount: len(batches),
	}, nil
}
