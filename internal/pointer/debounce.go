package pointer

import (
	"time"

	"keyintent/internal/keyboard"
)

// DebounceState describes what a Debouncer currently believes.
type DebounceState int

const (
	// NoKey means the pointer is not over any key.
	NoKey DebounceState = iota
	// Tracking means the pointer is settled on the current key.
	Tracking
	// Transitioning means the pointer just moved to a new key and has not
	// dwelt there long enough to outweigh the previous one.
	Transitioning
)

func (s DebounceState) String() string {
	switch s {
	case NoKey:
		return "no-key"
	case Tracking:
		return "tracking"
	case Transitioning:
		return "transitioning"
	default:
		return "unknown"
	}
}

// Transition is the outcome of feeding one sample to a Debouncer.
type Transition int

const (
	// Stay: the sample hit the current key.
	Stay Transition = iota
	// Bounced: the sample hit another key (or none) but stayed within the
	// hysteresis band of the current key, so the current key is kept.
	Bounced
	// Entered: the pointer moved from no key onto a key.
	Entered
	// Changed: the pointer moved to a different key.
	Changed
	// Left: the pointer moved off every key.
	Left
)

// DefaultDebounceTime is the dwell below which a key change is treated as
// a bounce when the pointer is released.
const DefaultDebounceTime = 70 * time.Millisecond

// Debouncer filters jitter out of one pointer's key sequence. It combines a
// spatial rule (hysteresis around the current key's edge) with a temporal
// rule (a brief final visit to a new key reverts to the previous key).
//
// A Debouncer belongs to exactly one pointer. Down resets it.
type Debouncer struct {
	keys         []keyboard.Key
	hysteresisSq int
	bounceTime   time.Duration

	current int
	lastKey int

	startX, startY int
	lastX, lastY   int
	// codeX/codeY is where the pointer last was on the previous key.
	codeX, codeY int

	currentKeyTime time.Duration
	lastKeyTime    time.Duration
	lastMoveTime   time.Duration
}

// NewDebouncer returns a debouncer for the given keys. Hysteresis is the
// distance in pixels a pointer may stray outside the current key before the
// key changes; it must be at least 1.
func NewDebouncer(keys []keyboard.Key, hysteresis int, bounceTime time.Duration) *Debouncer {
	d := &Debouncer{current: keyboard.NotAKey, lastKey: keyboard.NotAKey}
	d.SetLayout(keys, hysteresis)
	d.bounceTime = bounceTime
	if d.bounceTime <= 0 {
		d.bounceTime = DefaultDebounceTime
	}
	return d
}

// SetLayout replaces the keys and hysteresis.
func (d *Debouncer) SetLayout(keys []keyboard.Key, hysteresis int) {
	if hysteresis < 1 {
		panic("pointer: hysteresis must be at least 1px")
	}
	d.keys = keys
	d.hysteresisSq = hysteresis * hysteresis
	d.current = keyboard.NotAKey
	d.lastKey = keyboard.NotAKey
}

func (d *Debouncer) valid(i int) bool { return i >= 0 && i < len(d.keys) }

func (d *Debouncer) clamp(i int) int {
	if d.valid(i) {
		return i
	}
	return keyboard.NotAKey
}

// Current returns the stable key index.
func (d *Debouncer) Current() int { return d.current }

// Last returns the previous key index used by the temporal rule.
func (d *Debouncer) Last() int { return d.lastKey }

// LastPosition returns the most recent sample.
func (d *Debouncer) LastPosition() (x, y int) { return d.lastX, d.lastY }

// StartPosition returns where the pointer went down.
func (d *Debouncer) StartPosition() (x, y int) { return d.startX, d.startY }

// State reports the debouncer's current belief.
func (d *Debouncer) State() DebounceState {
	switch {
	case d.minorTimeBounce():
		return Transitioning
	case d.current == keyboard.NotAKey:
		return NoKey
	default:
		return Tracking
	}
}

// PreviewKey is the key to highlight: the previous key while a transition
// is still inside the bounce window, otherwise the current key.
func (d *Debouncer) PreviewKey() int {
	if d.minorTimeBounce() {
		return d.lastKey
	}
	return d.current
}

// Down starts tracking a new touch.
func (d *Debouncer) Down(key, x, y int, t time.Duration) {
	d.current = d.clamp(key)
	d.startX, d.startY = x, y
	d.codeX, d.codeY = x, y
	d.lastKey = keyboard.NotAKey
	d.lastKeyTime = 0
	d.currentKeyTime = 0
	d.lastMoveTime = t
	d.lastX, d.lastY = x, y
}

// Move feeds one sample and reports how the stable key changed.
func (d *Debouncer) Move(key, x, y int, t time.Duration) Transition {
	key = d.clamp(key)
	var tr Transition

	switch {
	case key == d.current:
		d.updateTime(t)
		tr = Stay
	case d.minorMoveBounce(x, y, key):
		d.updateTime(t)
		tr = Bounced
	case d.current == keyboard.NotAKey:
		d.updateTime(t)
		d.current = key
		tr = Entered
	case key == keyboard.NotAKey:
		d.updateTime(t)
		d.current = key
		tr = Left
	default:
		d.resetTime(t, d.current)
		d.codeX, d.codeY = d.lastX, d.lastY
		d.current = key
		tr = Changed
	}

	d.lastX, d.lastY = x, y
	return tr
}

// Up finalizes the touch. It returns the key to commit and the coordinates
// to resolve alternates at, which differ from the release point when the
// temporal rule reverted to the previous key. changed reports whether the
// release point itself switched keys.
func (d *Debouncer) Up(key, x, y int, t time.Duration) (index, ux, uy int, changed, timeBounce bool) {
	key = d.clamp(key)
	if key == d.current || d.minorMoveBounce(x, y, key) {
		d.updateTime(t)
	} else {
		d.resetTime(t, d.current)
		d.current = key
		changed = true
	}

	if d.minorTimeBounce() {
		d.current = d.lastKey
		return d.current, d.codeX, d.codeY, changed, true
	}
	return d.current, x, y, changed, false
}

func (d *Debouncer) minorMoveBounce(x, y, key int) bool {
	if key == d.current {
		return true
	}
	if !d.valid(d.current) {
		return false
	}
	return d.keys[d.current].SquaredDistanceToEdge(x, y) < d.hysteresisSq
}

func (d *Debouncer) updateTime(t time.Duration) {
	d.currentKeyTime += t - d.lastMoveTime
	d.lastMoveTime = t
}

func (d *Debouncer) resetTime(t time.Duration, current int) {
	d.lastKey = current
	d.lastKeyTime = d.currentKeyTime + t - d.lastMoveTime
	d.currentKeyTime = 0
	d.lastMoveTime = t
}

func (d *Debouncer) minorTimeBounce() bool {
	return d.currentKeyTime < d.lastKeyTime &&
		d.currentKeyTime < d.bounceTime &&
		d.lastKey != keyboard.NotAKey
}
