package graph

import (
	"fmt"
	"strings"
)

// CycleError reports that a topological sort could not place every task.
// Unsorted lists the names of tasks caught in (or downstream of) a cycle.
type CycleError struct {
	Unsorted []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular dependency detected, unsorted tasks: %s", strings.Join(e.Unsorted, ", "))
}

// ScheduleError reports that validation rejected a task set before scheduling.
type ScheduleError struct {
	Errors []string
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("invalid task graph: %s", strings.Join(e.Errors, "; "))
}
