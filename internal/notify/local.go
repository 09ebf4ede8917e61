package notify

import (
	"container/heap"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/taskloop/taskloop/internal/model"
)

var (
	ErrNoDueDate = errors.New("notify: task has no due date")
	ErrStopped   = errors.New("notify: notifier stopped")
)

// Event is a fired due-date notification.
type Event struct {
	Handle    string
	TaskID    string
	Title     string
	DueAt     time.Time
	TriggerAt time.Time
}

type queueItem struct {
	event Event
}

type priorityQueue []queueItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	return pq[i].event.TriggerAt.Before(pq[j].event.TriggerAt)
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
}

func (pq *priorityQueue) Push(x any) {
	*pq = append(*pq, x.(queueItem))
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[0 : n-1]
	return item
}

// Local is an in-process due-date notifier driven by a single timer over a
// time-ordered queue. Cancelled handles stay queued and are discarded at
// pop time, which keeps Cancel O(1).
type Local struct {
	lead time.Duration

	mu        sync.Mutex
	queue     priorityQueue
	cancelled map[string]bool
	out       chan Event
	wakeup    chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
	started   bool
	stopped   bool
	dropped   uint64
}

// NewLocal builds a notifier firing lead before each task's due date.
func NewLocal(lead time.Duration, bufferSize int) *Local {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Local{
		lead:      lead,
		queue:     make(priorityQueue, 0),
		cancelled: make(map[string]bool),
		out:       make(chan Event, bufferSize),
		wakeup:    make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

func (l *Local) C() <-chan Event {
	return l.out
}

func (l *Local) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return
	}
	l.started = true
	heap.Init(&l.queue)
	go l.loop()
}

func (l *Local) Stop() {
	l.mu.Lock()
	if !l.started || l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	close(l.stopCh)
	l.mu.Unlock()
	<-l.doneCh
}

func (l *Local) ScheduleDueDate(task model.Task) (string, error) {
	if task.DueDate == nil {
		return "", ErrNoDueDate
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return "", ErrStopped
	}

	handle := uuid.NewString()
	heap.Push(&l.queue, queueItem{event: Event{
		Handle:    handle,
		TaskID:    task.ID,
		Title:     task.Title,
		DueAt:     task.DueDate.UTC(),
		TriggerAt: task.DueDate.UTC().Add(-l.lead),
	}})
	l.signalWakeup()
	return handle, nil
}

func (l *Local) Cancel(handle string) error {
	if handle == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancelled[handle] = true
	return nil
}

func (l *Local) Dropped() uint64 {
	return atomic.LoadUint64(&l.dropped)
}

func (l *Local) loop() {
	defer close(l.doneCh)
	defer close(l.out)

	var timer *time.Timer
	for {
		next, hasNext := l.peek()
		if !hasNext {
			select {
			case <-l.wakeup:
				continue
			case <-l.stopCh:
				return
			}
		}

		wait := time.Until(next.TriggerAt)
		if wait < 0 {
			wait = 0
		}
		timer = resetTimer(timer, wait)

		select {
		case <-timer.C:
			due := l.popDue(time.Now().UTC())
			for _, ev := range due {
				select {
				case l.out <- ev:
				default:
					atomic.AddUint64(&l.dropped, 1)
				}
			}
		case <-l.wakeup:
			continue
		case <-l.stopCh:
			if timer != nil {
				stopTimer(timer)
			}
			return
		}
	}
}

func (l *Local) signalWakeup() {
	select {
	case l.wakeup <- struct{}{}:
	default:
	}
}

func (l *Local) peek() (Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for len(l.queue) > 0 {
		ev := l.queue[0].event
		if !l.cancelled[ev.Handle] {
			return ev, true
		}
		heap.Pop(&l.queue)
		delete(l.cancelled, ev.Handle)
	}
	return Event{}, false
}

func (l *Local) popDue(now time.Time) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Event, 0)
	for len(l.queue) > 0 {
		next := l.queue[0].event
		if next.TriggerAt.After(now) {
			break
		}
		item := heap.Pop(&l.queue).(queueItem)
		if l.cancelled[item.event.Handle] {
			delete(l.cancelled, item.event.Handle)
			continue
		}
		out = append(out, item.event)
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
