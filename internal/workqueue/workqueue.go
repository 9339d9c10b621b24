// Package workqueue implements the single-consumer, timer-driven work
// task abstraction spec.md §5 describes in place of real threads: a
// queue accepts a callback to run at (or after) a given time, and a
// single goroutine pops and runs whichever is due next, one at a time —
// "work tasks replace threads"; there is no preemption inside a callback.
//
// This is the WORK_Timed + deferred-callback mechanism; cmd/jobcored
// starts one Queue. pkg/cred's recurring sweep does not run on it (it uses
// its own robfig/cron scheduler), and pkg/array's doneness check is called
// directly.
package workqueue

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Task is a single deferred callback, scheduled to run no earlier than
// At.
type Task struct {
	At   time.Time
	Run  func(context.Context)
	index int // heap bookkeeping
}

// taskHeap orders pending tasks by At, earliest first.
type taskHeap []*Task

func (h taskHeap) Len() int            { return len(h) }
func (h taskHeap) Less(i, j int) bool  { return h[i].At.Before(h[j].At) }
func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *taskHeap) Push(x any) {
	t := x.(*Task)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// Queue is a single-consumer timer wheel: callbacks enqueued with
// Schedule run serially, in time order, on the goroutine started by Run.
// Nothing here preempts a running callback — matching spec.md §5's
// "there is no preemption inside a handler".
type Queue struct {
	mu     sync.Mutex
	heap   taskHeap
	wakeup chan struct{}
}

// New constructs an empty Queue.
func New() *Queue {
	return &Queue{wakeup: make(chan struct{}, 1)}
}

// Schedule enqueues fn to run at or after at. Safe to call from any
// goroutine, including from within a running task (the reentrancy
// guarantee spec.md §5 assumes for deferred callbacks fired from hooks).
func (q *Queue) Schedule(at time.Time, fn func(context.Context)) {
	q.mu.Lock()
	heap.Push(&q.heap, &Task{At: at, Run: fn})
	q.mu.Unlock()
	q.nudge()
}

// After is a convenience wrapper scheduling fn to run after d elapses.
func (q *Queue) After(d time.Duration, fn func(context.Context)) {
	q.Schedule(time.Now().Add(d), fn)
}

func (q *Queue) nudge() {
	select {
	case q.wakeup <- struct{}{}:
	default:
	}
}

func (q *Queue) next() (*Task, time.Duration, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.heap) == 0 {
		return nil, 0, false
	}
	t := q.heap[0]
	wait := time.Until(t.At)
	if wait <= 0 {
		heap.Pop(&q.heap)
		return t, 0, true
	}
	return nil, wait, true
}

// Run drains tasks as they come due until ctx is canceled. Callbacks run
// serially on this goroutine — the "no preemption inside a handler"
// guarantee spec.md §5 relies on for the array tracker never being
// observed mid-transition.
func (q *Queue) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		task, wait, has := q.next()
		if task != nil {
			task.Run(ctx)
			continue
		}
		if !has {
			wait = time.Hour
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-q.wakeup:
		}
	}
}
