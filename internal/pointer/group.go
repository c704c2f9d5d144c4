package pointer

import (
	"sort"
	"time"
)

// TrackerFactory builds the tracker for a new pointer id.
type TrackerFactory func(id int) *Tracker

// Group dispatches multi-pointer events to per-pointer trackers.
//
// Only the newest pointer is tracked. When a second pointer goes down, any
// key repeat stops and every older pointer is released at its last
// position, committing its key as if it had been lifted.
type Group struct {
	factory  TrackerFactory
	trackers map[int]*Tracker
	seq      map[int]uint64
	next     uint64
}

// NewGroup returns a group that creates trackers with factory.
func NewGroup(factory TrackerFactory) *Group {
	return &Group{
		factory:  factory,
		trackers: make(map[int]*Tracker),
		seq:      make(map[int]uint64),
	}
}

// Tracker returns the tracker for id, creating it on first use.
func (g *Group) Tracker(id int) *Tracker {
	t, ok := g.trackers[id]
	if !ok {
		t = g.factory(id)
		g.trackers[id] = t
	}
	return t
}

// Each calls fn for every tracker created so far, in pointer id order.
func (g *Group) Each(fn func(*Tracker)) {
	ids := make([]int, 0, len(g.trackers))
	for id := range g.trackers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		fn(g.trackers[id])
	}
}

// ActiveCount returns the number of pointers currently down.
func (g *Group) ActiveCount() int {
	n := 0
	for _, t := range g.trackers {
		if t.Active() {
			n++
		}
	}
	return n
}

// Down handles pointer id going down.
func (g *Group) Down(id, x, y int, at time.Duration) {
	for _, old := range g.olderThan(id) {
		if old.Repeating() {
			old.CancelRepeat()
		}
		lx, ly := old.LastPosition()
		old.Up(lx, ly, at)
	}
	g.next++
	g.seq[id] = g.next
	g.Tracker(id).Down(x, y, at)
}

// Move handles a sample of pointer id.
func (g *Group) Move(id, x, y int, at time.Duration) {
	if t, ok := g.trackers[id]; ok {
		t.Move(x, y, at)
	}
}

// Up handles pointer id going up.
func (g *Group) Up(id, x, y int, at time.Duration) {
	if t, ok := g.trackers[id]; ok {
		t.Up(x, y, at)
	}
}

// Cancel abandons pointer id.
func (g *Group) Cancel(id int) {
	if t, ok := g.trackers[id]; ok {
		t.Cancel()
	}
}

// CancelAll abandons every pointer.
func (g *Group) CancelAll() {
	g.Each(func(t *Tracker) { t.Cancel() })
}

// SetLayout switches every tracker to the resolver's current layout.
func (g *Group) SetLayout() {
	g.Each(func(t *Tracker) { t.SetLayout() })
}

// olderThan returns the active trackers other than id, oldest first.
func (g *Group) olderThan(id int) []*Tracker {
	var out []*Tracker
	for tid, t := range g.trackers {
		if tid != id && t.Active() {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return g.seq[out[i].ID()] < g.seq[out[j].ID()]
	})
	return out
}
