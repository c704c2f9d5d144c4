package pointer

import (
	"time"

	"keyintent/internal/keyboard"
)

// DefaultMultiTapInterval is the window within which tapping the same
// multi-code key again cycles to its next code.
const DefaultMultiTapInterval = 800 * time.Millisecond

// MultiTap tracks the tap cycle of multi-code keys, as on a phone keypad.
//
// A fresh tap on a multi-code key sets the tap index to -1. The first send
// turns that into 0 without emitting a delete; every later send within the
// window first deletes the previously sent code.
type MultiTap struct {
	interval time.Duration

	lastSent    int
	tapCount    int
	lastTapTime time.Duration
	hasTapTime  bool
	active      bool
}

// NewMultiTap returns a resolver with the given interval. Non-positive
// intervals select the default.
func NewMultiTap(interval time.Duration) *MultiTap {
	if interval <= 0 {
		interval = DefaultMultiTapInterval
	}
	m := &MultiTap{interval: interval}
	m.Reset()
	return m
}

// Reset forgets the current cycle.
func (m *MultiTap) Reset() {
	m.lastSent = keyboard.NotAKey
	m.tapCount = 0
	m.hasTapTime = false
	m.active = false
}

// Active reports whether the last checked key is in multi-tap mode.
func (m *MultiTap) Active() bool { return m.active }

// TapCount returns the current cycle position; -1 before the first send of
// a fresh cycle.
func (m *MultiTap) TapCount() int { return m.tapCount }

// Check is called at pointer down on key index with the given key.
func (m *MultiTap) Check(t time.Duration, index int, key *keyboard.Key) {
	if key == nil {
		return
	}
	continuing := m.hasTapTime && t < m.lastTapTime+m.interval && index == m.lastSent
	if len(key.Codes) > 1 {
		m.active = true
		if continuing {
			m.tapCount = (m.tapCount + 1) % len(key.Codes)
		} else {
			m.tapCount = -1
		}
		return
	}
	if !continuing {
		m.Reset()
	}
}

// Resolve picks the code to send for key. deleteFirst reports that the
// previously sent code of this cycle must be deleted first.
func (m *MultiTap) Resolve(key *keyboard.Key) (code int, deleteFirst bool) {
	if !m.active {
		return key.Codes[0], false
	}
	if m.tapCount == -1 {
		m.tapCount = 0
	} else {
		deleteFirst = true
	}
	if m.tapCount >= len(key.Codes) {
		m.tapCount = 0
	}
	return key.Codes[m.tapCount], deleteFirst
}

// Sent records that key index was sent at t. Untimed sends (key repeat)
// never continue a cycle.
func (m *MultiTap) Sent(index int, t time.Duration, timed bool) {
	m.lastSent = index
	m.lastTapTime = t
	m.hasTapTime = timed
}

// PreviewText returns the label to preview for key.
func (m *MultiTap) PreviewText(key *keyboard.Key) string {
	if !m.active {
		return key.Label
	}
	i := m.tapCount
	if i < 0 || i >= len(key.Codes) {
		i = 0
	}
	return string(rune(key.Codes[i]))
}
