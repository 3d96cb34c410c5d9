package graph

// TopoSort orders task ids so that every dependency precedes its dependents,
// using Kahn's algorithm. Ties between independent tasks break by original
// list order. Dependency names that resolve to no task are silently ignored;
// the validator is the place where those are reported.
func TopoSort(tasks []TaskNode) ([]string, error) {
	ids := idByName(tasks)

	inDegree := make(map[string]int, len(tasks))
	dependents := make(map[string][]string, len(tasks))
	for _, t := range tasks {
		inDegree[t.ID] = 0
	}
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			depID, ok := ids[dep]
			if !ok {
				continue
			}
			inDegree[t.ID]++
			dependents[depID] = append(dependents[depID], t.ID)
		}
	}

	// Seed in original list order so independent tasks keep a stable ordering.
	queue := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if inDegree[t.ID] == 0 {
			queue = append(queue, t.ID)
		}
	}

	order := make([]string, 0, len(tasks))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, next := range dependents[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) < len(tasks) {
		placed := make(map[string]bool, len(order))
		for _, id := range order {
			placed[id] = true
		}
		var unsorted []string
		for _, t := range tasks {
			if !placed[t.ID] {
				unsorted = append(unsorted, t.Name)
			}
		}
		return nil, &CycleError{Unsorted: unsorted}
	}
	return order, nil
}
