package graph

import (
	"errors"
	"testing"
)

func diamond() []TaskNode {
	return []TaskNode{
		node("a", "A", PriorityMedium),
		node("b", "B", PriorityLow, "A"),
		node("c", "C", PriorityHigh, "A"),
		node("d", "D", PriorityMedium, "B", "C"),
	}
}

func TestTopoSortDiamond(t *testing.T) {
	order, err := TopoSort(diamond())
	if err != nil {
		t.Fatalf("TopoSort failed: %v", err)
	}
	if len(order) != 4 {
		t.Fatalf("expected 4 ids, got %d", len(order))
	}
	if order[0] != "a" {
		t.Errorf("expected A first, got %s", order[0])
	}
	if order[3] != "d" {
		t.Errorf("expected D last, got %s", order[3])
	}
}

func TestTopoSortRespectsDependencies(t *testing.T) {
	tasks := []TaskNode{
		node("1", "deploy", PriorityHigh, "test"),
		node("2", "test", PriorityMedium, "build"),
		node("3", "build", PriorityLow),
		node("4", "docs", PriorityLow),
	}

	order, err := TopoSort(tasks)
	if err != nil {
		t.Fatalf("TopoSort failed: %v", err)
	}
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	if pos["3"] > pos["2"] || pos["2"] > pos["1"] {
		t.Errorf("dependency order violated: %v", order)
	}
	// Independent tasks keep original list order.
	if pos["3"] > pos["4"] {
		t.Errorf("expected build before docs (list order), got %v", order)
	}
}

func TestTopoSortCycle(t *testing.T) {
	tasks := []TaskNode{
		node("1", "A", PriorityHigh, "C"),
		node("2", "B", PriorityHigh, "A"),
		node("3", "C", PriorityHigh, "B"),
	}

	_, err := TopoSort(tasks)
	if err == nil {
		t.Fatal("expected a cycle error")
	}
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *CycleError, got %T", err)
	}
	if len(cycleErr.Unsorted) != 3 {
		t.Errorf("expected 3 unsorted tasks, got %v", cycleErr.Unsorted)
	}
}

func TestTopoSortIgnoresUnresolvedNames(t *testing.T) {
	tasks := []TaskNode{
		node("1", "A", PriorityHigh, "ghost"),
		node("2", "B", PriorityHigh, "A"),
	}

	// The validator rejects this input; the sorter tolerates it.
	if v := ValidateDependencies(tasks); v.Valid {
		t.Fatal("validator should reject unresolved names")
	}
	order, err := TopoSort(tasks)
	if err != nil {
		t.Fatalf("TopoSort should drop unresolved edges: %v", err)
	}
	if len(order) != 2 || order[0] != "1" || order[1] != "2" {
		t.Errorf("unexpected order: %v", order)
	}
}
