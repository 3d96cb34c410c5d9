package engine

import "sync"

// Status tags a task execution outcome.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Result is the settled outcome of one task. Failures are data, never errors;
// a failed task carries its error message and empty content.
type Result struct {
	TaskID  string `json:"task_id"`
	Status  Status `json:"status"`
	Content string `json:"content,omitempty"`
	Err     string `json:"error,omitempty"`
}

// ResultMap collects results across concurrently running tasks. Each task id
// is written exactly once.
type ResultMap struct {
	mu      sync.RWMutex
	results map[string]Result
}

func NewResultMap() *ResultMap {
	return &ResultMap{results: make(map[string]Result)}
}

// Put stores a result. A second write to the same id is a programming error
// and is ignored to keep the first settled outcome.
func (m *ResultMap) Put(r Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.results[r.TaskID]; ok {
		return
	}
	m.results[r.TaskID] = r
}

func (m *ResultMap) Get(taskID string) (Result, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[taskID]
	return r, ok
}

func (m *ResultMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.results)
}

// Snapshot returns a copy of the collected results keyed by task id.
func (m *ResultMap) Snapshot() map[string]Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Result, len(m.results))
	for id, r := range m.results {
		out[id] = r
	}
	return out
}
