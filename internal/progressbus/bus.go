// Package progressbus implements the Progress Bus (C2): a per-task
// latest-state cache fanned out to N subscribers, each a bounded push
// channel. Publishing never blocks the producer.
package progressbus

import (
	"sync"

	"github.com/unalkalkan/narrated-video-pipeline/pkg/types"
)

// defaultBufferSize is the bounded buffer size for each Subscription. When
// a slow subscriber overruns it, the oldest pending record is dropped.
const defaultBufferSize = 16

// Subscription is a live handle a consumer reads progress records from.
type Subscription struct {
	taskID string
	ch     chan types.ProgressRecord
	bus    *Bus
}

// C returns the channel to receive records from.
func (s *Subscription) C() <-chan types.ProgressRecord { return s.ch }

type taskState struct {
	mu          sync.Mutex
	latest      *types.ProgressRecord
	subscribers map[*Subscription]struct{}
}

// Bus is the process-local singleton coordinating progress publication and
// subscription. Its own lifecycle is tied to process start/stop.
type Bus struct {
	mu    sync.RWMutex
	tasks map[string]*taskState
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{tasks: make(map[string]*taskState)}
}

func (b *Bus) stateFor(taskID string, create bool) *taskState {
	b.mu.RLock()
	st, ok := b.tasks[taskID]
	b.mu.RUnlock()
	if ok || !create {
		return st
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if st, ok := b.tasks[taskID]; ok {
		return st
	}
	st = &taskState{subscribers: make(map[*Subscription]struct{})}
	b.tasks[taskID] = st
	return st
}

// Publish records the latest state for task_id and fans it out to every
// current subscriber. All mutations for a given task_id are serialized by
// the task's own lock; publishing from any producer is safe.
func (b *Bus) Publish(taskID string, rec types.ProgressRecord) {
	rec.TaskID = taskID
	st := b.stateFor(taskID, true)

	st.mu.Lock()
	st.latest = &rec
	subs := make([]*Subscription, 0, len(st.subscribers))
	for s := range st.subscribers {
		subs = append(subs, s)
	}
	st.mu.Unlock()

	for _, s := range subs {
		deliverNonBlocking(s.ch, rec)
	}
}

// deliverNonBlocking sends rec on ch, dropping the oldest buffered record
// if the channel is full, so the producer never blocks on a slow consumer.
func deliverNonBlocking(ch chan types.ProgressRecord, rec types.ProgressRecord) {
	for {
		select {
		case ch <- rec:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

// Latest returns the most recently published record for task_id, or nil if
// none has been published (task never existed, or Forget was called for it).
func (b *Bus) Latest(taskID string) *types.ProgressRecord {
	st := b.stateFor(taskID, false)
	if st == nil {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.latest == nil {
		return nil
	}
	cp := *st.latest
	return &cp
}

// Subscribe registers a new Subscription for task_id. If a latest record
// already exists, it is delivered immediately as the subscriber's first
// message (initial state delivery).
func (b *Bus) Subscribe(taskID string) *Subscription {
	st := b.stateFor(taskID, true)
	sub := &Subscription{
		taskID: taskID,
		ch:     make(chan types.ProgressRecord, defaultBufferSize),
		bus:    b,
	}

	st.mu.Lock()
	st.subscribers[sub] = struct{}{}
	latest := st.latest
	st.mu.Unlock()

	if latest != nil {
		deliverNonBlocking(sub.ch, *latest)
	}
	return sub
}

// Unsubscribe removes a Subscription. Safe to call more than once.
func (b *Bus) Unsubscribe(sub *Subscription) {
	st := b.stateFor(sub.taskID, false)
	if st == nil {
		return
	}
	st.mu.Lock()
	delete(st.subscribers, sub)
	st.mu.Unlock()
}

// Forget drops all bus state for task_id. The Task Registry's TTL sweeper
// does not call it, so a task's bus state outlives its eviction from the
// registry unless Forget is called.
func (b *Bus) Forget(taskID string) {
	b.mu.Lock()
	delete(b.tasks, taskID)
	b.mu.Unlock()
}
