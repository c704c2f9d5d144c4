// Package timer schedules deferred callbacks for the input loop.
//
// Every callback runs on the loop that owns the scheduler, never
// concurrently with touch handling. Cancellation is best effort: a timer that
// already fired in the runtime may still be delivered, so owners guard their
// callbacks with a Generation token.
package timer

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Handle cancels a scheduled callback.
type Handle interface {
	Cancel()
}

// Scheduler runs fn once after delay on the owning loop.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) Handle
	Now() time.Duration
}

// Generation invalidates callbacks scheduled before the last Bump.
type Generation struct {
	n uint64
}

// Token returns the current generation.
func (g *Generation) Token() uint64 { return g.n }

// Bump invalidates every outstanding token.
func (g *Generation) Bump() { g.n++ }

// Valid reports whether tok is still current.
func (g *Generation) Valid(tok uint64) bool { return tok == g.n }

// Guard wraps fn so it runs only while the generation is unchanged.
func (g *Generation) Guard(fn func()) func() {
	tok := g.n
	return func() {
		if g.Valid(tok) {
			fn()
		}
	}
}

// Loop is a Scheduler backed by runtime timers. Fired callbacks are queued
// on Tasks and must be run by the goroutine that owns the input state.
// Call Stop once nothing drains Tasks anymore.
type Loop struct {
	start    time.Time
	tasks    chan func()
	done     chan struct{}
	stopOnce sync.Once
}

// NewLoop returns a loop scheduler with the given task queue depth.
func NewLoop(depth int) *Loop {
	if depth < 1 {
		depth = 1
	}
	return &Loop{
		start: time.Now(),
		tasks: make(chan func(), depth),
		done:  make(chan struct{}),
	}
}

// Stop drops every callback that fires from now on. It is safe to call more
// than once.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// Tasks returns the channel of fired callbacks.
func (l *Loop) Tasks() <-chan func() { return l.tasks }

// Now returns the time elapsed since the loop was created.
func (l *Loop) Now() time.Duration { return time.Since(l.start) }

type loopHandle struct {
	t *time.Timer
}

func (h loopHandle) Cancel() { h.t.Stop() }

// Schedule queues fn on Tasks after delay. After Stop the callback is
// dropped instead of waiting for a reader.
func (l *Loop) Schedule(delay time.Duration, fn func()) Handle {
	t := time.AfterFunc(delay, func() {
		select {
		case <-l.done:
			return
		default:
		}
		select {
		case l.tasks <- fn:
		case <-l.done:
		}
	})
	return loopHandle{t: t}
}

// Run executes queued callbacks until ctx is done. Use it when the loop has
// no other event source.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Manual is a Scheduler driven by a virtual clock. Callbacks run
// synchronously inside Advance.
type Manual struct {
	mu      sync.Mutex
	now     time.Duration
	seq     uint64
	pending []*manualTimer
}

type manualTimer struct {
	at        time.Duration
	seq       uint64
	fn        func()
	cancelled bool
}

func (m *manualTimer) Cancel() { m.cancelled = true }

// NewManual returns a manual scheduler at time zero.
func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Schedule(delay time.Duration, fn func()) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{at: m.now + delay, seq: m.seq, fn: fn}
	m.pending = append(m.pending, t)
	return t
}

// Pending returns the number of live timers.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.pending {
		if !t.cancelled {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d, firing due timers in deadline order.
// Timers scheduled by a callback fire in the same call if they fall due.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		t := m.next(target)
		if t == nil {
			break
		}
		t.fn()
	}

	m.mu.Lock()
	m.now = target
	m.mu.Unlock()
}

// Set moves the clock to an absolute time. Moving backwards is ignored.
func (m *Manual) Set(at time.Duration) {
	if d := at - m.Now(); d > 0 {
		m.Advance(d)
	}
}

func (m *Manual) next(target time.Duration) *manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()

	live := m.pending[:0]
	for _, t := range m.pending {
		if !t.cancelled {
			live = append(live, t)
		}
	}
	m.pending = live
	if len(m.pending) == 0 {
		return nil
	}
	sort.Slice(m.pending, func(i, j int) bool {
		if m.pending[i].at != m.pending[j].at {
			return m.pending[i].at < m.pending[j].at
		}
		return m.pending[i].seq < m.pending[j].seq
	})
	t := m.pending[0]
	if t.at > target {
		return nil
	}
	m.pending = m.pending[1:]
	m.now = t.at
	return t
}
