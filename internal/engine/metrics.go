package engine

import (
	"sync"
	"time"
)

// Metrics tracks run-level execution counters.
type Metrics struct {
	mu             sync.RWMutex
	tasksSucceeded int64
	tasksFailed    int64
	searches       int64
	searchErrors   int64
	duration       time.Duration
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) RecordTask(success bool, d time.Duration) {
	m.mu.Lock()
	if success {
		m.tasksSucceeded++
	} else {
		m.tasksFailed++
	}
	m.duration += d
	m.mu.Unlock()
}

func (m *Metrics) RecordSearch(err error) {
	m.mu.Lock()
	m.searches++
	if err != nil {
		m.searchErrors++
	}
	m.mu.Unlock()
}

// Stats returns tasks succeeded, tasks failed, searches issued, search
// errors, and total task duration.
func (m *Metrics) Stats() (int64, int64, int64, int64, time.Duration) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tasksSucceeded, m.tasksFailed, m.searches, m.searchErrors, m.duration
}
