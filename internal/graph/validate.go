package graph

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// Validation is the outcome of static checks over a task set. Errors collects
// every finding; nothing is thrown.
type Validation struct {
	Valid  bool
	Errors []string
}

// Validator runs static dependency checks. MaxDepth bounds the longest
// dependency chain; DepthFatal controls whether exceeding it flips Valid or is
// merely reported.
type Validator struct {
	MaxDepth   int
	DepthFatal bool
}

// NewValidator returns a validator with the default depth policy.
func NewValidator() *Validator {
	return &Validator{MaxDepth: 3, DepthFatal: true}
}

// ValidateDependencies runs the default validator over tasks.
func ValidateDependencies(tasks []TaskNode) Validation {
	return NewValidator().Validate(tasks)
}

// Validate checks for duplicate names, unresolved dependency references,
// cycles, and excessive dependency depth. It never returns an error; all
// findings are reported as strings.
func (v *Validator) Validate(tasks []TaskNode) Validation {
	var errs []string

	errs = append(errs, checkDuplicateNames(tasks)...)
	errs = append(errs, checkMissingReferences(tasks)...)
	errs = append(errs, checkCycles(tasks)...)
	depthWarnings := v.checkDepth(tasks)

	valid := len(errs) == 0
	if v.DepthFatal && len(depthWarnings) > 0 {
		valid = false
	}
	errs = append(errs, depthWarnings...)

	if !valid {
		log.Debug().Int("findings", len(errs)).Msg("task graph validation failed")
	}
	return Validation{Valid: valid, Errors: errs}
}

// checkDuplicateNames reports every name appearing more than once, with its count.
func checkDuplicateNames(tasks []TaskNode) []string {
	counts := make(map[string]int, len(tasks))
	var order []string
	for _, t := range tasks {
		if counts[t.Name] == 0 {
			order = append(order, t.Name)
		}
		counts[t.Name]++
	}
	var errs []string
	for _, name := range order {
		if counts[name] > 1 {
			errs = append(errs, fmt.Sprintf("Duplicate task name: %q appears %d times", name, counts[name]))
		}
	}
	return errs
}

// checkMissingReferences reports each dependency name that resolves to no task.
func checkMissingReferences(tasks []TaskNode) []string {
	known := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		known[t.Name] = true
	}
	var errs []string
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if !known[dep] {
				errs = append(errs, fmt.Sprintf("Task %q depends on non-existent task %q", t.Name, dep))
			}
		}
	}
	return errs
}

// checkCycles walks the dependency edges with a global visited set and a
// per-path recursion stack, reporting the first cyclic task found per root.
func checkCycles(tasks []TaskNode) []string {
	adj := make(map[string][]string, len(tasks))
	known := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		known[t.Name] = true
	}
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if known[dep] {
				adj[t.Name] = append(adj[t.Name], dep)
			}
		}
	}

	visited := make(map[string]bool, len(tasks))
	onPath := make(map[string]bool, len(tasks))
	var errs []string

	var visit func(name string) bool
	visit = func(name string) bool {
		visited[name] = true
		onPath[name] = true
		for _, dep := range adj[name] {
			if onPath[dep] {
				errs = append(errs, fmt.Sprintf("Circular dependency detected involving task %q", dep))
				onPath[name] = false
				return true
			}
			if !visited[dep] {
				if visit(dep) {
					onPath[name] = false
					return true
				}
			}
		}
		onPath[name] = false
		return false
	}

	for _, t := range tasks {
		if !visited[t.Name] {
			visit(t.Name)
		}
	}
	return errs
}

// checkDepth computes the longest dependency chain per task and warns when the
// maximum exceeds v.MaxDepth. The onPath guard keeps the recursion finite even
// on cyclic input, which is reported separately.
func (v *Validator) checkDepth(tasks []TaskNode) []string {
	byName := make(map[string]TaskNode, len(tasks))
	for _, t := range tasks {
		byName[t.Name] = t
	}

	memo := make(map[string]int, len(tasks))
	onPath := make(map[string]bool, len(tasks))

	var depth func(name string) int
	depth = func(name string) int {
		if d, ok := memo[name]; ok {
			return d
		}
		if onPath[name] {
			return 0
		}
		onPath[name] = true
		defer func() { onPath[name] = false }()

		t, ok := byName[name]
		if !ok {
			return 0
		}
		max := 0
		for _, dep := range t.DependsOn {
			if d := depth(dep) + 1; d > max {
				max = d
			}
		}
		memo[name] = max
		return max
	}

	maxDepth := 0
	deepest := ""
	for _, t := range tasks {
		if d := depth(t.Name); d > maxDepth {
			maxDepth = d
			deepest = t.Name
		}
	}
	if maxDepth > v.MaxDepth {
		return []string{fmt.Sprintf("Dependency depth %d exceeds maximum %d (task %q)", maxDepth, v.MaxDepth, deepest)}
	}
	return nil
}
