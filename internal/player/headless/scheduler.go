package headless

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/snappy-loop/bulletin/internal/player"
)

type frameQueue struct {
	mu      sync.Mutex
	seq     int
	pending map[int]func(time.Time)
}

func (q *frameQueue) add(fn func(time.Time)) func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == nil {
		q.pending = map[int]func(time.Time){}
	}
	q.seq++
	id := q.seq
	q.pending[id] = fn
	return func() {
		q.mu.Lock()
		delete(q.pending, id)
		q.mu.Unlock()
	}
}

// fire runs callbacks registered before the call in registration order;
// callbacks registered while firing wait for the next frame.
func (q *frameQueue) fire(now time.Time) {
	q.mu.Lock()
	due := q.pending
	q.pending = nil
	q.mu.Unlock()

	ids := make([]int, 0, len(due))
	for id := range due {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		due[id](now)
	}
}

func (q *frameQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// ManualScheduler is a simulated display clock: time only moves on Advance,
// which fires pending frames every Step.
type ManualScheduler struct {
	Step time.Duration

	now   time.Time
	queue frameQueue
}

// NewManualScheduler starts simulated time at start with a 60Hz step.
func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{Step: time.Second / 60, now: start}
}

// Now implements player.FrameScheduler.
func (m *ManualScheduler) Now() time.Time { return m.now }

// RequestFrame implements player.FrameScheduler.
func (m *ManualScheduler) RequestFrame(fn func(time.Time)) func() {
	return m.queue.add(fn)
}

// Advance moves time forward by d, one step at a time.
func (m *ManualScheduler) Advance(d time.Duration) {
	end := m.now.Add(d)
	for m.now.Before(end) {
		next := m.now.Add(m.Step)
		if next.After(end) {
			next = end
		}
		m.now = next
		m.queue.fire(m.now)
	}
}

// Pending returns the number of scheduled callbacks.
func (m *ManualScheduler) Pending() int { return m.queue.len() }

// TickerScheduler fires frames from a wall-clock ticker, posting each frame
// through a dispatcher.
type TickerScheduler struct {
	dispatch player.Dispatcher
	period   time.Duration
	queue    frameQueue
}

// NewTickerScheduler creates a scheduler ticking fps times per second.
func NewTickerScheduler(dispatch player.Dispatcher, fps int) *TickerScheduler {
	if fps <= 0 {
		fps = 60
	}
	return &TickerScheduler{dispatch: dispatch, period: time.Second / time.Duration(fps)}
}

// Now implements player.FrameScheduler.
func (s *TickerScheduler) Now() time.Time { return time.Now() }

// RequestFrame implements player.FrameScheduler.
func (s *TickerScheduler) RequestFrame(fn func(time.Time)) func() {
	return s.queue.add(fn)
}

// Run ticks until ctx is cancelled or the dispatcher stops accepting work.
func (s *TickerScheduler) Run(ctx context.Context) {
	t := time.NewTicker(s.period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if s.queue.len() == 0 {
				continue
			}
			if !s.dispatch.Post(func() { s.queue.fire(now) }) {
				return
			}
		}
	}
}
