// Package pointer turns raw pointer events into key commits.
//
// Each finger on the keyboard is followed by a Tracker:
//
//	down ──► Debouncer.Down ──► MultiTap.Check ──► OnPress
//	  │                                             │
//	  ├── repeatable key: send now, Repeater.StartRepeat
//	  └── other key:      Repeater.StartLongPress
//
//	move ──► Debouncer.Move ──► preview / long-press rearm
//
//	up ───► Debouncer.Up ──► cancel timers ──► dismiss preview
//	                                        └─► MultiTap.Resolve ──► OnKey
//
// A Group multiplexes several pointers and enforces the multi-touch policy.
// Nothing in this package is safe for concurrent use; all calls, including
// timer callbacks, must come from the input loop.
package pointer

import (
	"time"

	"keyintent/internal/keyboard"
	"keyintent/internal/proximity"
	"keyintent/internal/timer"
)

// Listener receives the key events a tracker produces.
type Listener interface {
	// OnPress is called at pointer down with the primary code of the key,
	// or 0 when the pointer is over no key.
	OnPress(code int)
	// OnRelease is called after every OnKey or OnText.
	OnRelease(code int)
	// OnKey delivers a committed code. codes holds the alternates, closest
	// first, and is only valid during the call. The delete that precedes a
	// multi-tap cycle step arrives with nil codes.
	OnKey(code int, codes []int, x, y int)
	// OnText delivers the text payload of a key.
	OnText(text string)
	// OnCancel is called when a pointer is released over no key.
	OnCancel()
	// OnLongPress is called when a key is held past the long-press timeout.
	// Returning true consumes the touch.
	OnLongPress(keyIndex int) bool
}

// UIProxy receives preview and redraw requests.
type UIProxy interface {
	// ShowPreview shows label over key; keyboard.NotAKey hides the preview.
	ShowPreview(keyIndex int, label string)
	// CancelPreview drops any pending or visible preview.
	CancelPreview()
	InvalidateKey(keyIndex int)
}

// BounceKind names the rule that absorbed a key change.
type BounceKind string

const (
	MoveBounce BounceKind = "move"
	TimeBounce BounceKind = "time"
)

// Observer receives counters from trackers. Any method may be a no-op.
type Observer interface {
	Bounce(kind BounceKind)
	MultiTapCycle()
	RepeatFired()
	LongPress()
}

type nopObserver struct{}

func (nopObserver) Bounce(BounceKind) {}
func (nopObserver) MultiTapCycle()    {}
func (nopObserver) RepeatFired()      {}
func (nopObserver) LongPress()        {}

// Options holds the timing and distance parameters of trackers.
type Options struct {
	Hysteresis       int
	DebounceTime     time.Duration
	MultiTapInterval time.Duration
	RepeatStartDelay time.Duration
	RepeatInterval   time.Duration
	LongPressTimeout time.Duration
}

// DefaultOptions returns the stock timings with an 8px hysteresis.
func DefaultOptions() Options {
	return Options{
		Hysteresis:       8,
		DebounceTime:     DefaultDebounceTime,
		MultiTapInterval: DefaultMultiTapInterval,
		RepeatStartDelay: DefaultRepeatStartDelay,
		RepeatInterval:   DefaultRepeatInterval,
		LongPressTimeout: DefaultLongPressTimeout,
	}
}

// Tracker follows one pointer from down to up.
type Tracker struct {
	id       int
	opts     Options
	resolver *proximity.Resolver
	keys     []keyboard.Key
	listener Listener
	ui       UIProxy
	observer Observer

	deb     *Debouncer
	tap     *MultiTap
	rep     *Repeater
	scratch proximity.Scratch
	single  [1]int

	active     bool
	processed  bool
	repeatable bool
	shown      int
	downTime   time.Duration
}

// NewTracker returns a tracker for pointer id. The resolver must already
// have a layout.
func NewTracker(id int, r *proximity.Resolver, sched timer.Scheduler, l Listener, ui UIProxy, opts Options) *Tracker {
	t := &Tracker{
		id:       id,
		opts:     opts,
		resolver: r,
		keys:     r.Layout().Keys(),
		listener: l,
		ui:       ui,
		observer: nopObserver{},
		tap:      NewMultiTap(opts.MultiTapInterval),
		rep:      NewRepeater(sched),
		shown:    keyboard.NotAKey,
	}
	t.deb = NewDebouncer(t.keys, opts.Hysteresis, opts.DebounceTime)
	return t
}

// SetObserver installs an observer; nil restores the no-op one.
func (t *Tracker) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	t.observer = o
}

// SetLayout cancels any touch in progress and switches to the resolver's
// current layout.
func (t *Tracker) SetLayout() {
	t.Cancel()
	t.keys = t.resolver.Layout().Keys()
	t.deb.SetLayout(t.keys, t.opts.Hysteresis)
	t.tap.Reset()
}

func (t *Tracker) ID() int { return t.id }

// Active reports whether the pointer is down.
func (t *Tracker) Active() bool { return t.active }

// Repeating reports whether the pointer holds an auto-repeating key.
func (t *Tracker) Repeating() bool { return t.rep.Repeating() }

// State exposes the debouncer state.
func (t *Tracker) State() DebounceState { return t.deb.State() }

// CurrentKey returns the stable key under the pointer.
func (t *Tracker) CurrentKey() int { return t.deb.Current() }

// LastPosition returns the last sample of the pointer.
func (t *Tracker) LastPosition() (int, int) { return t.deb.LastPosition() }

// DownTime returns when the pointer went down.
func (t *Tracker) DownTime() time.Duration { return t.downTime }

func (t *Tracker) key(i int) *keyboard.Key {
	if i < 0 || i >= len(t.keys) {
		return nil
	}
	return &t.keys[i]
}

// Down starts a touch at (x, y).
func (t *Tracker) Down(x, y int, at time.Duration) {
	index := t.resolver.KeyIndex(x, y)
	t.active = true
	t.processed = false
	t.repeatable = false
	t.downTime = at

	t.deb.Down(index, x, y, at)
	key := t.key(index)
	t.tap.Check(at, index, key)

	code := 0
	if key != nil {
		code = key.Primary()
	}
	t.listener.OnPress(code)

	if key != nil {
		if key.Repeatable {
			t.repeatable = true
			t.repeatKey(index)
			t.rep.StartRepeat(t.opts.RepeatStartDelay, t.opts.RepeatInterval, func() {
				t.observer.RepeatFired()
				t.repeatKey(index)
			})
		} else {
			t.startLongPress(index)
		}
	}
	t.showPreview(index)
}

// Move feeds a pointer sample.
func (t *Tracker) Move(x, y int, at time.Duration) {
	if !t.active || t.processed {
		return
	}
	// A repeating key keeps firing wherever the pointer goes until up,
	// cancel, or a second pointer.
	if t.rep.Repeating() {
		return
	}
	index := t.resolver.KeyIndex(x, y)

	switch t.deb.Move(index, x, y, at) {
	case Bounced:
		t.observer.Bounce(MoveBounce)
	case Entered:
		if !t.repeatable {
			t.startLongPress(index)
		}
	case Changed:
		t.tap.Reset()
		if !t.repeatable {
			t.startLongPress(index)
		}
	case Left:
		t.rep.Cancel()
	}
	t.showPreview(t.deb.PreviewKey())
}

// Up ends the touch at (x, y) and commits the debounced key.
func (t *Tracker) Up(x, y int, at time.Duration) {
	if !t.active {
		return
	}
	t.active = false
	if t.processed {
		t.rep.Cancel()
		return
	}

	index := t.resolver.KeyIndex(x, y)
	commit, cx, cy, changed, timeBounce := t.deb.Up(index, x, y, at)
	if changed {
		t.tap.Reset()
	}
	if timeBounce {
		t.observer.Bounce(TimeBounce)
	}

	t.rep.Cancel()
	t.ui.CancelPreview()
	t.showPreview(keyboard.NotAKey)

	if !t.repeatable {
		t.send(commit, cx, cy, at, true)
	}
	if t.key(index) != nil {
		t.ui.InvalidateKey(index)
	}
}

// Cancel abandons the touch without committing anything.
func (t *Tracker) Cancel() {
	wasActive := t.active
	t.active = false
	t.rep.Cancel()
	t.ui.CancelPreview()
	t.showPreview(keyboard.NotAKey)
	if wasActive {
		if cur := t.deb.Current(); t.key(cur) != nil {
			t.ui.InvalidateKey(cur)
		}
	}
}

// CancelRepeat stops auto-repeat without ending the touch. The key is not
// sent again at up.
func (t *Tracker) CancelRepeat() {
	t.rep.CancelRepeat()
}

func (t *Tracker) startLongPress(index int) {
	t.rep.StartLongPress(t.opts.LongPressTimeout, func() {
		if !t.active || t.processed {
			return
		}
		if t.listener.OnLongPress(index) {
			t.observer.LongPress()
			t.processed = true
			t.showPreview(keyboard.NotAKey)
		}
	})
}

// repeatKey sends the key at its own origin. Repeats never take part in a
// multi-tap cycle.
func (t *Tracker) repeatKey(index int) {
	if key := t.key(index); key != nil {
		t.send(index, key.X, key.Y, 0, false)
	}
}

func (t *Tracker) send(index, x, y int, at time.Duration, timed bool) {
	key := t.key(index)
	if key == nil {
		t.listener.OnCancel()
		return
	}

	if key.Text != "" {
		t.listener.OnText(key.Text)
		t.listener.OnRelease(keyboard.NotAKey)
	} else {
		code := key.Primary()
		codes := t.resolver.ResolveInto(x, y, &t.scratch).Nearby

		if t.tap.Active() {
			var del bool
			code, del = t.tap.Resolve(key)
			if del {
				t.observer.MultiTapCycle()
				t.listener.OnKey(keyboard.KeycodeDelete, nil, x, y)
			}
		}

		// Debouncing can leave a neighbour closer than the committed key.
		if len(codes) >= 2 && codes[0] != code && codes[1] == code {
			codes[0], codes[1] = codes[1], codes[0]
		}
		if len(codes) == 0 {
			t.single[0] = code
			codes = t.single[:]
		}
		t.listener.OnKey(code, codes, x, y)
		t.listener.OnRelease(code)
	}
	t.tap.Sent(index, at, timed)
}

func (t *Tracker) showPreview(index int) {
	key := t.key(index)
	if key == nil || key.Modifier {
		index = keyboard.NotAKey
	}
	if index == keyboard.NotAKey {
		if t.shown != keyboard.NotAKey {
			t.ui.InvalidateKey(t.shown)
			t.ui.ShowPreview(keyboard.NotAKey, "")
			t.shown = keyboard.NotAKey
		}
		return
	}
	if index == t.shown {
		return
	}
	if t.shown != keyboard.NotAKey {
		t.ui.InvalidateKey(t.shown)
	}
	t.shown = index
	t.ui.ShowPreview(index, t.tap.PreviewText(key))
	t.ui.InvalidateKey(index)
}
