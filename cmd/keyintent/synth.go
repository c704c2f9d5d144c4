package main

import (
	"fmt"
	"time"
	"unicode"

	"keyintent/internal/ime"
	"keyintent/internal/keyboard"
	"keyintent/internal/pointer"
)

const (
	synthStart = 100 * time.Millisecond
	synthHold  = 40 * time.Millisecond
	synthGap   = 150 * time.Millisecond
)

// findKey returns the key producing code and the code's position in the
// key's multi-tap cycle. Keys with code as their primary win.
func findKey(layout *keyboard.Layout, code int) (index, taps int, ok bool) {
	index = keyboard.NotAKey
	for i, k := range layout.Keys() {
		for j, c := range k.Codes {
			if c != code {
				continue
			}
			if j == 0 {
				return i, 0, true
			}
			if index == keyboard.NotAKey {
				index, taps = i, j
			}
		}
	}
	return index, taps, index != keyboard.NotAKey
}

func keyCodeFor(r rune) int {
	switch r {
	case '\n':
		return keyboard.KeycodeEnter
	case ' ':
		return keyboard.KeycodeSpace
	}
	return int(unicode.ToLower(r))
}

// synthesize returns the touches that type text on layout by tapping key
// centers. Upper-case letters are preceded by a shift tap, and letters
// further along a multi-tap cycle are tapped once per position.
func synthesize(layout *keyboard.Layout, text string, opts pointer.Options) ([]ime.TouchEvent, error) {
	var events []ime.TouchEvent
	at := synthStart
	lastKey := keyboard.NotAKey

	tapGap := synthGap
	if opts.MultiTapInterval > 0 && tapGap >= opts.MultiTapInterval {
		tapGap = opts.MultiTapInterval / 2
	}
	cycleBreak := opts.MultiTapInterval + synthGap

	tap := func(index int, gap time.Duration) {
		k := layout.Key(index)
		x, y := k.X+k.Width/2, k.Y+k.Height/2
		at += gap
		events = append(events,
			ime.TouchEvent{Action: ime.ActionDown, X: x, Y: y, Time: at},
			ime.TouchEvent{Action: ime.ActionUp, X: x, Y: y, Time: at + synthHold},
		)
		at += synthHold
		lastKey = index
	}

	for _, r := range text {
		index, taps, ok := findKey(layout, keyCodeFor(r))
		if !ok {
			return nil, fmt.Errorf("no key types %q", r)
		}
		if unicode.IsUpper(r) {
			shift, _, ok := findKey(layout, keyboard.KeycodeShift)
			if !ok {
				return nil, fmt.Errorf("no shift key for %q", r)
			}
			tap(shift, synthGap)
		}

		gap := synthGap
		if index == lastKey && len(layout.Key(index).Codes) > 1 {
			gap = cycleBreak
		}
		tap(index, gap)
		for i := 0; i < taps; i++ {
			tap(index, tapGap)
		}
	}
	return events, nil
}
