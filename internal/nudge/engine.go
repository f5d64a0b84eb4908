// Package nudge delivers timed reminders for open tasks: when a task is about
// to cross the staleness threshold and when its due time arrives.
package nudge

import (
	"container/heap"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrInvalidTriggerTime = errors.New("nudge: invalid trigger time")
	ErrMissingTaskID      = errors.New("nudge: task id is required")
	ErrStopped            = errors.New("nudge: engine stopped")
)

type Kind string

const (
	KindStale Kind = "stale"
	KindDue   Kind = "due"
)

type Nudge struct {
	TaskID    string
	Title     string
	Kind      Kind
	TriggerAt time.Time
}

func (n Nudge) key() string {
	return string(n.Kind) + "/" + n.TaskID
}

type entry struct {
	nudge Nudge
	index int
}

type queue []*entry

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	return q[i].nudge.TriggerAt.Before(q[j].nudge.TriggerAt)
}

func (q queue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *queue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

// Engine fires nudges in trigger order. A task holds at most one pending
// nudge per kind; scheduling again moves it.
type Engine struct {
	mu      sync.Mutex
	queue   queue
	byKey   map[string]*entry
	out     chan Nudge
	wakeup  chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
	now     func() time.Time
	started bool
	stopped bool
	dropped uint64
}

func NewEngine(bufferSize int) *Engine {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Engine{
		queue:  make(queue, 0),
		byKey:  make(map[string]*entry),
		out:    make(chan Nudge, bufferSize),
		wakeup: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// C is closed after Stop returns.
func (e *Engine) C() <-chan Nudge {
	return e.out
}

func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started || e.stopped {
		return
	}
	e.started = true
	go e.loop()
}

func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	close(e.stopCh)
	started := e.started
	e.mu.Unlock()
	if started {
		<-e.doneCh
		return
	}
	close(e.out)
}

func (e *Engine) Schedule(n Nudge) error {
	if n.TaskID == "" {
		return ErrMissingTaskID
	}
	if n.TriggerAt.IsZero() {
		return ErrInvalidTriggerTime
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return ErrStopped
	}

	if existing, ok := e.byKey[n.key()]; ok {
		existing.nudge = n
		heap.Fix(&e.queue, existing.index)
	} else {
		ent := &entry{nudge: n}
		heap.Push(&e.queue, ent)
		e.byKey[n.key()] = ent
	}
	e.signalWakeup()
	return nil
}

// Cancel drops every pending nudge for the task and reports how many were removed.
func (e *Engine) Cancel(taskID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	removed := 0
	for _, kind := range []Kind{KindStale, KindDue} {
		key := Nudge{TaskID: taskID, Kind: kind}.key()
		ent, ok := e.byKey[key]
		if !ok {
			continue
		}
		heap.Remove(&e.queue, ent.index)
		delete(e.byKey, key)
		removed++
	}
	if removed > 0 {
		e.signalWakeup()
	}
	return removed
}

// Retain drops pending nudges for tasks outside keep, such as tasks completed
// since the last plan.
func (e *Engine) Retain(keep map[string]bool) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	removed := 0
	for key, ent := range e.byKey {
		if keep[ent.nudge.TaskID] {
			continue
		}
		heap.Remove(&e.queue, ent.index)
		delete(e.byKey, key)
		removed++
	}
	if removed > 0 {
		e.signalWakeup()
	}
	return removed
}

func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

func (e *Engine) Dropped() uint64 {
	return atomic.LoadUint64(&e.dropped)
}

func (e *Engine) loop() {
	defer close(e.doneCh)
	defer close(e.out)

	var timer *time.Timer
	defer func() { stopTimer(timer) }()
	for {
		next, ok := e.peek()
		if !ok {
			select {
			case <-e.wakeup:
				continue
			case <-e.stopCh:
				return
			}
		}

		wait := next.TriggerAt.Sub(e.now())
		if wait < 0 {
			wait = 0
		}
		timer = resetTimer(timer, wait)

		select {
		case <-timer.C:
			for _, n := range e.popDue(e.now()) {
				select {
				case e.out <- n:
				default:
					atomic.AddUint64(&e.dropped, 1)
				}
			}
		case <-e.wakeup:
		case <-e.stopCh:
			return
		}
	}
}

func (e *Engine) signalWakeup() {
	select {
	case e.wakeup <- struct{}{}:
	default:
	}
}

func (e *Engine) peek() (Nudge, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return Nudge{}, false
	}
	return e.queue[0].nudge, true
}

func (e *Engine) popDue(now time.Time) []Nudge {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Nudge
	for len(e.queue) > 0 && !e.queue[0].nudge.TriggerAt.After(now) {
		ent := heap.Pop(&e.queue).(*entry)
		delete(e.byKey, ent.nudge.key())
		out = append(out, ent.nudge)
	}
	return out
}

func resetTimer(timer *time.Timer, d time.Duration) *time.Timer {
	if timer == nil {
		return time.NewTimer(d)
	}
	stopTimer(timer)
	timer.Reset(d)
	return timer
}

func stopTimer(timer *time.Timer) {
	if timer == nil {
		return
	}
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}
