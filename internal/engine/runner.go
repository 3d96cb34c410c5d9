package engine

import (
	"context"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sonde-dev/sonde/internal/graph"
)

// BatchRunner drives an execution schedule: batches run strictly in order,
// and a batch is a barrier, so the next batch starts only once every task in
// the current one has settled, success or failure.
type BatchRunner struct {
	exec          *TaskExecutor
	maxConcurrent int
}

func NewBatchRunner(exec *TaskExecutor, maxConcurrent int) *BatchRunner {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &BatchRunner{exec: exec, maxConcurrent: maxConcurrent}
}

// RunSchedule executes every batch of the schedule and returns the settled
// result map. Tasks within a batch run concurrently with failure isolation:
// a failed task settles as data and never cancels its siblings.
func (r *BatchRunner) RunSchedule(ctx context.Context, schedule *graph.ExecutionSchedule, tasks []graph.TaskNode) map[string]Result {
	byID := make(map[string]graph.TaskNode, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	results := NewResultMap()
	for _, batch := range schedule.Batches {
		log.Info().
			Int("batch", batch.Number).
			Int("of", schedule.BatchCount).
			Int("tasks", len(batch.TaskIDs)).
			Msg("starting batch")

		var g errgroup.Group
		g.SetLimit(r.maxConcurrent)
		for _, id := range batch.TaskIDs {
			task, ok := byID[id]
			if !ok {
				continue
			}
			g.Go(func() error {
				results.Put(r.exec.Execute(ctx, task))
				return nil
			})
		}
		// Tasks never return errors; Wait is purely the batch barrier.
		_ = g.Wait()
	}
	return results.Snapshot()
}
