// timer/timer.go
package timer

import (
	"container/heap"
	"sync"
	"time"
)

// tickInterval bounds how late a deadline can fire. Room deadlines carry
// their own grace period on top of this.
const tickInterval = 10 * time.Millisecond

type task struct {
	id      int64
	execute time.Time
	fn      func()
	index   int
}

type taskQueue []*task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	return q[i].execute.Before(q[j].execute)
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x any) {
	n := len(*q)
	t := x.(*task)
	t.index = n
	*q = append(*q, t)
}

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	t.index = -1
	*q = old[0 : n-1]
	return t
}

// Manager schedules one-shot deadline callbacks. Cancelling is idempotent:
// cancelling twice, or after the callback already fired, is a no-op.
type Manager struct {
	queue  taskQueue
	mutex  sync.Mutex
	nextID int64
	quit   chan struct{}
	once   sync.Once
}

func NewManager() *Manager {
	m := &Manager{
		queue:  make(taskQueue, 0),
		nextID: 1,
		quit:   make(chan struct{}),
	}
	heap.Init(&m.queue)
	go m.run()
	return m
}

// Schedule registers fn to run once after delay and returns a handle for
// Cancel. Callbacks run on their own goroutine; whatever locking they
// need is their own business.
func (m *Manager) Schedule(delay time.Duration, fn func()) int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	t := &task{
		id:      m.nextID,
		execute: time.Now().Add(delay),
		fn:      fn,
	}
	m.nextID++

	heap.Push(&m.queue, t)
	return t.id
}

// Cancel drops a pending task. Unknown or already-fired ids are ignored.
func (m *Manager) Cancel(id int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i, t := range m.queue {
		if t.id == id {
			heap.Remove(&m.queue, i)
			break
		}
	}
}

// Stop shuts the scheduler down. Pending tasks never fire.
func (m *Manager) Stop() {
	m.once.Do(func() { close(m.quit) })
}

func (m *Manager) run() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, t := range m.collectDue() {
				go t.fn()
			}
		case <-m.quit:
			return
		}
	}
}

func (m *Manager) collectDue() []*task {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := time.Now()
	var due []*task
	for m.queue.Len() > 0 {
		t := m.queue[0]
		if t.execute.After(now) {
			break
		}
		heap.Pop(&m.queue)
		due = append(due, t)
	}
	return due
}
