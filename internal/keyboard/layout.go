package keyboard

import (
	"errors"
	"fmt"
)

// Grid dimensions of the nearest-key lookup table.
const (
	GridWidth  = 14
	GridHeight = 5
	gridSize   = GridWidth * GridHeight

	// searchDistance scales the average key width into the radius used to
	// assign keys to grid cells.
	searchDistance = 1.8
)

// Layout is an immutable set of keys plus a coarse spatial index.
type Layout struct {
	width  int
	height int
	keys   []Key

	cellWidth  int
	cellHeight int
	grid       [gridSize][]int

	threshold int
}

// NewLayout builds a layout of the given size. Keys are copied; the caller
// may reuse the slice.
func NewLayout(width, height int, keys []Key) (*Layout, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid layout size %dx%d", width, height)
	}
	if len(keys) == 0 {
		return nil, errors.New("layout has no keys")
	}
	l := &Layout{
		width:  width,
		height: height,
		keys:   make([]Key, len(keys)),
	}
	for i, k := range keys {
		if k.Width <= 0 || k.Height <= 0 {
			return nil, fmt.Errorf("key %d: invalid size %dx%d", i, k.Width, k.Height)
		}
		if len(k.Codes) == 0 {
			return nil, fmt.Errorf("key %d: no codes", i)
		}
		k.Codes = append([]int(nil), k.Codes...)
		l.keys[i] = k
	}
	l.threshold = ProximityThreshold(l.keys)
	l.computeGrid()
	return l, nil
}

// Keys returns the layout's keys. Callers must not modify them.
func (l *Layout) Keys() []Key { return l.keys }

// Key returns the key at index i, or nil when i is out of range.
func (l *Layout) Key(i int) *Key {
	if i < 0 || i >= len(l.keys) {
		return nil
	}
	return &l.keys[i]
}

func (l *Layout) Width() int  { return l.width }
func (l *Layout) Height() int { return l.height }

// ProximityThreshold returns the unsquared proximity radius of this layout.
func (l *Layout) ProximityThreshold() int { return l.threshold }

// NearestKeys returns the indices of keys that may be close to the point.
// Points outside the keyboard yield an empty slice.
func (l *Layout) NearestKeys(x, y int) []int {
	if x < 0 || x >= l.width || y < 0 || y >= l.height {
		return nil
	}
	idx := (y/l.cellHeight)*GridWidth + x/l.cellWidth
	if idx >= gridSize {
		return nil
	}
	return l.grid[idx]
}

func (l *Layout) averageKeyWidth() int {
	sum := 0
	for i := range l.keys {
		sum += l.keys[i].Width
	}
	return sum / len(l.keys)
}

func (l *Layout) computeGrid() {
	// Round up so no pixel falls outside the grid.
	l.cellWidth = (l.width + GridWidth - 1) / GridWidth
	l.cellHeight = (l.height + GridHeight - 1) / GridHeight

	radius := int(float64(l.averageKeyWidth()) * searchDistance)
	radiusSq := radius * radius

	cw, ch := l.cellWidth, l.cellHeight
	for x := 0; x < GridWidth*cw; x += cw {
		for y := 0; y < GridHeight*ch; y += ch {
			var cell []int
			for i := range l.keys {
				k := &l.keys[i]
				if k.SquaredDistanceFrom(x, y) < radiusSq ||
					k.SquaredDistanceFrom(x+cw-1, y) < radiusSq ||
					k.SquaredDistanceFrom(x+cw-1, y+ch-1) < radiusSq ||
					k.SquaredDistanceFrom(x, y+ch-1) < radiusSq ||
					k.Overlaps(x, y, cw, ch) {
					cell = append(cell, i)
				}
			}
			l.grid[(y/ch)*GridWidth+x/cw] = cell
		}
	}
}
