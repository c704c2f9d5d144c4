package pointer

import (
	"time"

	"keyintent/internal/timer"
)

// Key repeat and long-press defaults.
const (
	DefaultRepeatStartDelay = 400 * time.Millisecond
	DefaultRepeatInterval   = 50 * time.Millisecond
	DefaultLongPressTimeout = 500 * time.Millisecond
)

// Repeater owns the auto-repeat and long-press timers of one pointer.
// Each timer kind has its own generation so cancelling one never lets a
// stale callback of the other through.
type Repeater struct {
	sched timer.Scheduler

	repeatGen timer.Generation
	pressGen  timer.Generation
	repeat    timer.Handle
	longPress timer.Handle
	repeating bool
}

// NewRepeater returns a repeater that schedules on sched.
func NewRepeater(sched timer.Scheduler) *Repeater {
	return &Repeater{sched: sched}
}

// Repeating reports whether auto-repeat is armed.
func (r *Repeater) Repeating() bool { return r.repeating }

// StartRepeat schedules fire after delay and then every interval until
// cancelled. A pending long press is cancelled.
func (r *Repeater) StartRepeat(delay, interval time.Duration, fire func()) {
	r.CancelLongPress()
	r.CancelRepeat()
	r.repeating = true

	tok := r.repeatGen.Token()
	var tick func()
	tick = func() {
		if !r.repeatGen.Valid(tok) {
			return
		}
		fire()
		// fire may have cancelled the repeat.
		if r.repeatGen.Valid(tok) {
			r.repeat = r.sched.Schedule(interval, tick)
		}
	}
	r.repeat = r.sched.Schedule(delay, tick)
}

// StartLongPress schedules fire after timeout, replacing any pending long
// press.
func (r *Repeater) StartLongPress(timeout time.Duration, fire func()) {
	r.CancelLongPress()
	r.longPress = r.sched.Schedule(timeout, r.pressGen.Guard(fire))
}

// CancelRepeat stops auto-repeat.
func (r *Repeater) CancelRepeat() {
	r.repeatGen.Bump()
	if r.repeat != nil {
		r.repeat.Cancel()
		r.repeat = nil
	}
	r.repeating = false
}

// CancelLongPress drops a pending long press.
func (r *Repeater) CancelLongPress() {
	r.pressGen.Bump()
	if r.longPress != nil {
		r.longPress.Cancel()
		r.longPress = nil
	}
}

// Cancel stops both timers.
func (r *Repeater) Cancel() {
	r.CancelRepeat()
	r.CancelLongPress()
}
