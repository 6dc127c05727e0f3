// Package task implements the Task Registry (C3): an in-memory map of
// task_id to lifecycle record, with TTL-based eviction of terminal tasks.
package task

import (
	"sync"
	"time"

	"github.com/unalkalkan/narrated-video-pipeline/pkg/types"
)

// DefaultTTL is how long a terminal task's record is retained after
// completed_at before the sweeper evicts it.
const DefaultTTL = 3600 * time.Second

// DefaultSweepInterval is how often the background sweeper runs absent an
// explicit interval.
const DefaultSweepInterval = 60 * time.Second

// Registry tracks every task's lifecycle record. Access is serialized by a
// coarse lock protecting the outer map; each record's own fields are only
// ever touched while holding that lock, so there is no finer-grained lock
// needed per record.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*types.Task
	ttl   time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a Registry and starts its background TTL sweeper at the
// given interval (DefaultSweepInterval if zero) using the given ttl
// (DefaultTTL if zero).
func New(ttl, sweepInterval time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	r := &Registry{
		tasks:  make(map[string]*types.Task),
		ttl:    ttl,
		stopCh: make(chan struct{}),
	}
	go r.sweepLoop(sweepInterval)
	return r
}

// Stop halts the background sweeper. Safe to call more than once.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

func (r *Registry) sweepLoop(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			r.sweep()
		case <-r.stopCh:
			return
		}
	}
}

func (r *Registry) sweep() {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, tk := range r.tasks {
		if tk.CompletedAt == nil {
			continue
		}
		if now.Sub(*tk.CompletedAt) > r.ttl {
			delete(r.tasks, id)
		}
	}
}

// Create registers a new pending task.
func (r *Registry) Create(taskID string) *types.Task {
	t := &types.Task{
		ID:        taskID,
		Status:    types.TaskPending,
		CreatedAt: time.Now(),
	}
	r.mu.Lock()
	r.tasks[taskID] = t
	r.mu.Unlock()
	return t
}

// MarkRunning transitions a task to running and records the given stage.
func (r *Registry) MarkRunning(taskID, stage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[taskID]
	if !ok {
		return
	}
	t.Status = types.TaskRunning
	t.Stage = stage
}

// MarkCompleted transitions a task to its terminal completed state.
func (r *Registry) MarkCompleted(taskID string, result *types.RenderOut) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[taskID]
	if !ok {
		return
	}
	now := time.Now()
	t.Status = types.TaskCompleted
	t.Result = result
	t.CompletedAt = &now
}

// MarkFailed transitions a task to its terminal failed state, capturing
// the stage name and error string.
func (r *Registry) MarkFailed(taskID, stage string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[taskID]
	if !ok {
		return
	}
	now := time.Now()
	t.Status = types.TaskFailed
	t.Stage = stage
	t.Error = err.Error()
	t.CompletedAt = &now
}

// MarkCancelled transitions a task to its terminal cancelled state.
func (r *Registry) MarkCancelled(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[taskID]
	if !ok {
		return
	}
	now := time.Now()
	t.Status = types.TaskCancelled
	t.CompletedAt = &now
}

// Get returns a copy of the task record for taskID, or (nil, false) if it
// never existed or has been evicted. Callers must treat both cases as 404.
func (r *Registry) Get(taskID string) (*types.Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[taskID]
	if !ok {
		return nil, false
	}
	cp := *t
	return &cp, true
}
