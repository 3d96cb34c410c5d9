package graph

import (
	"fmt"
	"testing"
)

func TestPlanBatchesDiamond(t *testing.T) {
	tasks := diamond()
	order, err := TopoSort(tasks)
	if err != nil {
		t.Fatalf("TopoSort failed: %v", err)
	}

	batches := PlanBatches(tasks, order)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	if len(batches[0].TaskIDs) != 1 || batches[0].TaskIDs[0] != "a" {
		t.Errorf("batch 1 should be [A], got %v", batches[0].TaskIDs)
	}
	if len(batches[1].TaskIDs) != 2 {
		t.Fatalf("batch 2 should hold B and C, got %v", batches[1].TaskIDs)
	}
	// C is high priority, B is low: C sorts first within the batch.
	if batches[1].TaskIDs[0] != "c" || batches[1].TaskIDs[1] != "b" {
		t.Errorf("batch 2 should be priority sorted [C B], got %v", batches[1].TaskIDs)
	}
	if len(batches[2].TaskIDs) != 1 || batches[2].TaskIDs[0] != "d" {
		t.Errorf("batch 3 should be [D], got %v", batches[2].TaskIDs)
	}
}

func TestPlanBatchesDependencyInvariant(t *testing.T) {
	tasks := []TaskNode{
		node("1", "roots", PriorityMedium),
		node("2", "stems", PriorityMedium, "roots"),
		node("3", "leaves", PriorityMedium, "stems"),
		node("4", "bark", PriorityLow, "roots"),
		node("5", "soil", PriorityHigh),
	}
	order, err := TopoSort(tasks)
	if err != nil {
		t.Fatalf("TopoSort failed: %v", err)
	}
	batches := PlanBatches(tasks, order)

	batchOf := make(map[string]int)
	for _, b := range batches {
		for _, id := range b.TaskIDs {
			batchOf[id] = b.Number
		}
	}
	ids := idByName(tasks)
	for _, task := range tasks {
		for _, dep := range task.DependsOn {
			if batchOf[task.ID] <= batchOf[ids[dep]] {
				t.Errorf("task %s in batch %d does not follow dependency %s in batch %d",
					task.Name, batchOf[task.ID], dep, batchOf[ids[dep]])
			}
		}
	}
}

func TestPlanBatchesFlattenIsTopological(t *testing.T) {
	tasks := []TaskNode{
		node("1", "A", PriorityLow),
		node("2", "B", PriorityHigh, "A"),
		node("3", "C", PriorityMedium, "A", "B"),
		node("4", "D", PriorityHigh),
	}
	order, err := TopoSort(tasks)
	if err != nil {
		t.Fatalf("TopoSort failed: %v", err)
	}
	batches := PlanBatches(tasks, order)

	var flat []string
	for _, b := range batches {
		flat = append(flat, b.TaskIDs...)
	}
	if len(flat) != len(tasks) {
		t.Fatalf("flattened plan lost tasks: %v", flat)
	}
	pos := make(map[string]int, len(flat))
	for i, id := range flat {
		pos[id] = i
	}
	ids := idByName(tasks)
	for _, task := range tasks {
		for _, dep := range task.DependsOn {
			if pos[ids[dep]] > pos[task.ID] {
				t.Errorf("flattened order places %s before its dependency %s", task.Name, dep)
			}
		}
	}
}

func TestBuildSchedule(t *testing.T) {
	schedule, err := BuildSchedule(diamond())
	if err != nil {
		t.Fatalf("BuildSchedule failed: %v", err)
	}
	if schedule.BatchCount != 3 || len(schedule.Batches) != 3 {
		t.Errorf("expected 3 batches, got %d", schedule.BatchCount)
	}
	if len(schedule.TopoOrder) != 4 {
		t.Errorf("expected 4 ids in topo order, got %d", len(schedule.TopoOrder))
	}
}

func TestBuildScheduleRejectsInvalidGraph(t *testing.T) {
	tasks := []TaskNode{
		node("1", "A", PriorityHigh, "A"),
	}
	if _, err := BuildSchedule(tasks); err == nil {
		t.Fatal("expected BuildSchedule to reject a self-cycle")
	}
}

func BenchmarkBuildSchedule(b *testing.B) {
	tasks := make([]TaskNode, 0, 300)
	for i := 0; i < 300; i++ {
		var deps []string
		if i > 0 {
			deps = append(deps, fmt.Sprintf("task-%d", (i-1)/100))
		}
		tasks = append(tasks, TaskNode{
			ID:        fmt.Sprintf("%d", i),
			Name:      fmt.Sprintf("task-%d", i),
			Priority:  PriorityMedium,
			DependsOn: deps,
		})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := BuildSchedule(tasks); err != nil {
			b.Fatalf("BuildSchedule failed: %v", err)
		}
	}
}
