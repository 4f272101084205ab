package store

import (
	"context"
	"sync"

	"github.com/JonMunkholm/annonces/internal/core"
)

// DefaultMemoryLimit is the number of runs Memory keeps when no limit is given.
const DefaultMemoryLimit = 100

// Memory keeps the most recent runs, with full reports, in process.
// The oldest run is evicted once the limit is reached.
type Memory struct {
	mu    sync.RWMutex
	limit int
	order []string // run IDs, oldest first
	runs  map[string]*core.Run
}

// NewMemory creates a store holding at most limit runs.
func NewMemory(limit int) *Memory {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	return &Memory{
		limit: limit,
		runs:  make(map[string]*core.Run),
	}
}

// SaveRun records run, replacing a run with the same ID.
func (m *Memory) SaveRun(ctx context.Context, run *core.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.runs[run.ID]; !exists {
		m.order = append(m.order, run.ID)
	}
	m.runs[run.ID] = run

	for len(m.order) > m.limit {
		delete(m.runs, m.order[0])
		m.order = m.order[1:]
	}
	return nil
}

// GetRun returns a run with its report.
func (m *Memory) GetRun(ctx context.Context, id string) (*core.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[id]
	if !ok {
		return nil, core.ErrRunNotFound
	}
	return run, nil
}

// ListRuns returns up to limit runs, most recent first, without reports.
func (m *Memory) ListRuns(ctx context.Context, limit int) ([]*core.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.order) {
		limit = len(m.order)
	}
	out := make([]*core.Run, 0, limit)
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		summary := *m.runs[m.order[i]]
		summary.Report = nil
		out = append(out, &summary)
	}
	return out, nil
}

// Len returns the number of stored runs.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error {
	return nil
}
