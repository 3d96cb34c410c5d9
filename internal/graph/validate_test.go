package graph

import (
	"reflect"
	"strings"
	"testing"
)

func node(id, name string, prio Priority, deps ...string) TaskNode {
	return TaskNode{ID: id, Name: name, Priority: prio, DependsOn: deps}
}

func TestValidateCleanGraph(t *testing.T) {
	tasks := []TaskNode{
		node("1", "A", PriorityHigh),
		node("2", "B", PriorityMedium, "A"),
		node("3", "C", PriorityLow, "A"),
	}

	v := ValidateDependencies(tasks)
	if !v.Valid {
		t.Fatalf("expected valid graph, got errors: %v", v.Errors)
	}
	if len(v.Errors) != 0 {
		t.Errorf("expected no errors, got %v", v.Errors)
	}
}

func TestValidateDuplicateNames(t *testing.T) {
	tasks := []TaskNode{
		node("1", "X", PriorityHigh),
		node("2", "X", PriorityLow),
		node("3", "Y", PriorityMedium),
	}

	v := ValidateDependencies(tasks)
	if v.Valid {
		t.Fatal("expected invalid graph")
	}
	want := `Duplicate task name: "X" appears 2 times`
	found := false
	for _, e := range v.Errors {
		if e == want {
			found = true
		}
	}
	if !found {
		t.Errorf("expected error %q, got %v", want, v.Errors)
	}
}

func TestValidateMissingReference(t *testing.T) {
	tasks := []TaskNode{
		node("1", "A", PriorityHigh, "ghost"),
	}

	v := ValidateDependencies(tasks)
	if v.Valid {
		t.Fatal("expected invalid graph")
	}
	if len(v.Errors) != 1 || !strings.Contains(v.Errors[0], "non-existent task") {
		t.Errorf("expected a non-existent task error, got %v", v.Errors)
	}
	if !strings.Contains(v.Errors[0], `"ghost"`) || !strings.Contains(v.Errors[0], `"A"`) {
		t.Errorf("error should name both the task and the missing dependency: %s", v.Errors[0])
	}
}

func TestValidateCycle(t *testing.T) {
	tasks := []TaskNode{
		node("1", "A", PriorityHigh, "B"),
		node("2", "B", PriorityHigh, "A"),
	}

	v := ValidateDependencies(tasks)
	if v.Valid {
		t.Fatal("expected invalid graph")
	}
	found := false
	for _, e := range v.Errors {
		if strings.Contains(e, "Circular dependency") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a circular dependency error, got %v", v.Errors)
	}
}

func TestValidateDepth(t *testing.T) {
	// A <- B <- C <- D <- E: longest chain length 4.
	tasks := []TaskNode{
		node("1", "A", PriorityMedium),
		node("2", "B", PriorityMedium, "A"),
		node("3", "C", PriorityMedium, "B"),
		node("4", "D", PriorityMedium, "C"),
		node("5", "E", PriorityMedium, "D"),
	}

	v := ValidateDependencies(tasks)
	if v.Valid {
		t.Fatal("expected depth over 3 to fail with the default validator")
	}
	if len(v.Errors) != 1 || !strings.Contains(v.Errors[0], "depth") {
		t.Errorf("expected a depth finding, got %v", v.Errors)
	}

	lenient := &Validator{MaxDepth: 3, DepthFatal: false}
	v = lenient.Validate(tasks)
	if !v.Valid {
		t.Errorf("non-fatal depth policy should keep the graph valid, got errors %v", v.Errors)
	}
	if len(v.Errors) != 1 {
		t.Errorf("depth finding should still be reported, got %v", v.Errors)
	}

	deep := &Validator{MaxDepth: 10, DepthFatal: true}
	if v := deep.Validate(tasks); !v.Valid || len(v.Errors) != 0 {
		t.Errorf("depth 4 within limit 10 should be clean, got %v", v.Errors)
	}
}

func TestValidateIdempotent(t *testing.T) {
	tasks := []TaskNode{
		node("1", "A", PriorityHigh, "B", "ghost"),
		node("2", "B", PriorityLow, "A"),
	}

	first := ValidateDependencies(tasks)
	second := ValidateDependencies(tasks)
	if first.Valid != second.Valid || !reflect.DeepEqual(first.Errors, second.Errors) {
		t.Errorf("validation not idempotent: %v vs %v", first, second)
	}
}
