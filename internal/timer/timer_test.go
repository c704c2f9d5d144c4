package timer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManual_FiresInOrder(t *testing.T) {
	m := NewManual()
	var got []string

	m.Schedule(30*time.Millisecond, func() { got = append(got, "c") })
	m.Schedule(10*time.Millisecond, func() { got = append(got, "a") })
	m.Schedule(10*time.Millisecond, func() { got = append(got, "b") })

	m.Advance(5 * time.Millisecond)
	assert.Empty(t, got)

	m.Advance(25 * time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, 30*time.Millisecond, m.Now())
	assert.Zero(t, m.Pending())
}

func TestManual_Cancel(t *testing.T) {
	m := NewManual()
	fired := false
	h := m.Schedule(10*time.Millisecond, func() { fired = true })
	assert.Equal(t, 1, m.Pending())

	h.Cancel()
	m.Advance(time.Second)
	assert.False(t, fired)
}

func TestManual_Rescheduling(t *testing.T) {
	m := NewManual()
	var times []time.Duration

	var tick func()
	tick = func() {
		times = append(times, m.Now())
		if len(times) < 4 {
			m.Schedule(50*time.Millisecond, tick)
		}
	}
	m.Schedule(400*time.Millisecond, tick)

	m.Advance(time.Second)
	assert.Equal(t, []time.Duration{
		400 * time.Millisecond,
		450 * time.Millisecond,
		500 * time.Millisecond,
		550 * time.Millisecond,
	}, times)
}

func TestManual_Set(t *testing.T) {
	m := NewManual()
	m.Set(100 * time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, m.Now())

	m.Set(50 * time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, m.Now(), "clock never moves backwards")
}

func TestGeneration_Guard(t *testing.T) {
	var g Generation
	m := NewManual()
	fired := 0

	m.Schedule(10*time.Millisecond, g.Guard(func() { fired++ }))
	g.Bump()
	m.Schedule(10*time.Millisecond, g.Guard(func() { fired++ }))

	m.Advance(20 * time.Millisecond)
	assert.Equal(t, 1, fired, "callback from a stale generation is a no-op")

	tok := g.Token()
	assert.True(t, g.Valid(tok))
	g.Bump()
	assert.False(t, g.Valid(tok))
}

func TestLoop_DeliversOnTasks(t *testing.T) {
	l := NewLoop(4)
	done := make(chan struct{})

	l.Schedule(time.Millisecond, func() { close(done) })

	select {
	case fn := <-l.Tasks():
		fn()
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
	<-done
}

func TestLoop_Run(t *testing.T) {
	l := NewLoop(1)
	ctx, cancel := context.WithCancel(context.Background())

	l.Schedule(time.Millisecond, cancel)
	err := l.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoop_StopReleasesBlockedTimers(t *testing.T) {
	l := NewLoop(1)
	ran := 0
	for i := 0; i < 3; i++ {
		l.Schedule(time.Millisecond, func() { ran++ })
	}
	// Nobody drains Tasks: one callback fits the queue, two block.
	require.Eventually(t, func() bool { return len(l.Tasks()) == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	l.Stop()
	l.Stop()
	l.Schedule(time.Millisecond, func() { ran++ })
	time.Sleep(20 * time.Millisecond)

	(<-l.Tasks())()
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, l.Tasks(), 0, "blocked and late callbacks are dropped")
	assert.Equal(t, 1, ran)
}
