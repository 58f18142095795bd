package timer

import (
	"container/heap"
	"sync"
	"time"
)

// Scheduler is the time source of the simulation. Callbacks registered with
// AfterFunc run on the goroutine that advances the scheduler, so they never
// race with a tick.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	// Stop prevents the callback from running. It returns false if the
	// callback already ran or the timer was stopped before.
	Stop() bool
}

// Virtual is a Scheduler whose clock only moves when Advance is called.
// The frame loop advances it by the frame delta, tests advance it directly.
type Virtual struct {
	mu    sync.Mutex
	now   time.Time
	seq   uint64
	queue timerQueue
}

func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start}
}

func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

func (v *Virtual) AfterFunc(d time.Duration, f func()) Timer {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq++
	t := &virtualTimer{owner: v, due: v.now.Add(d), seq: v.seq, f: f}
	heap.Push(&v.queue, t)
	return t
}

// Advance moves the clock forward by d and runs every callback that becomes
// due, in due order. Callbacks see Now() equal to their due time and may
// register new timers; those run within the same Advance if they fall due.
func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	target := v.now.Add(d)
	v.mu.Unlock()
	for {
		v.mu.Lock()
		if v.queue.Len() == 0 || v.queue[0].due.After(target) {
			v.now = target
			v.mu.Unlock()
			return
		}
		t, _ := heap.Pop(&v.queue).(*virtualTimer)
		t.fired = true
		if t.due.After(v.now) {
			v.now = t.due
		}
		v.mu.Unlock()
		t.f()
	}
}

// Pending returns the number of timers waiting to fire.
func (v *Virtual) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.queue.Len()
}

type virtualTimer struct {
	owner *Virtual
	due   time.Time
	seq   uint64
	index int
	fired bool
	f     func()
}

func (t *virtualTimer) Stop() bool {
	v := t.owner
	v.mu.Lock()
	defer v.mu.Unlock()
	if t.fired || t.index < 0 {
		return false
	}
	heap.Remove(&v.queue, t.index)
	return true
}

// timerQueue orders by due time, ties by registration order.
type timerQueue []*virtualTimer

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].due.Equal(q[j].due) {
		return q[i].seq < q[j].seq
	}
	return q[i].due.Before(q[j].due)
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *timerQueue) Push(x any) {
	t, _ := x.(*virtualTimer)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}
