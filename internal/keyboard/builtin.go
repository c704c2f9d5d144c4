package keyboard

import "strings"

// rowBuilder lays keys out left to right in units of a base cell width.
type rowBuilder struct {
	cell   int
	gap    int
	y      int
	height int
	x      int
	edges  Edges
	keys   []Key
}

func (r *rowBuilder) add(units float64, label string, codes ...int) *Key {
	w := int(float64(r.cell) * units)
	r.keys = append(r.keys, Key{
		X:      r.x + r.gap/2,
		Y:      r.y,
		Width:  w - r.gap,
		Height: r.height,
		Gap:    r.gap,
		Codes:  codes,
		Label:  label,
		Edges:  r.edges,
	})
	r.x += w
	return &r.keys[len(r.keys)-1]
}

func (r *rowBuilder) skip(units float64) {
	r.x += int(float64(r.cell) * units)
}

func (r *rowBuilder) letters(s string) {
	for _, c := range s {
		r.add(1, string(c), int(c))
	}
}

// finish marks the outermost keys of the row as touching the keyboard's side
// edges and returns the row.
func (r *rowBuilder) finish() []Key {
	if len(r.keys) > 0 {
		r.keys[0].Edges |= EdgeLeft
		r.keys[len(r.keys)-1].Edges |= EdgeRight
	}
	return r.keys
}

// QWERTY returns a four-row English layout sized to width x height.
func QWERTY(width, height int) (*Layout, error) {
	cell := width / 10
	rowHeight := height / 4
	gap := cell / 10

	var keys []Key
	row := func(i int, edges Edges) *rowBuilder {
		return &rowBuilder{cell: cell, gap: gap, y: i * rowHeight, height: rowHeight, edges: edges}
	}

	r0 := row(0, EdgeTop)
	r0.letters("qwertyuiop")
	keys = append(keys, r0.finish()...)

	r1 := row(1, 0)
	r1.skip(0.5)
	r1.letters("asdfghjkl")
	keys = append(keys, r1.finish()...)

	r2 := row(2, 0)
	shift := r2.add(1.5, "shift", KeycodeShift)
	shift.Modifier = true
	r2.letters("zxcvbnm")
	del := r2.add(1.5, "del", KeycodeDelete)
	del.Repeatable = true
	keys = append(keys, r2.finish()...)

	r3 := row(3, EdgeBottom)
	r3.add(1.5, "?123", KeycodeModeChange)
	r3.add(1, ",", ',')
	space := r3.add(5, "space", KeycodeSpace)
	space.Repeatable = true
	r3.add(1, ".", '.')
	r3.add(1.5, "enter", KeycodeEnter)
	keys = append(keys, r3.finish()...)

	return NewLayout(width, height, keys)
}

// phoneRows are the keys of a 12-key phone pad; the letters of each key are
// its multi-tap cycle.
var phoneRows = [3][3]string{
	{".,?!", "abc", "def"},
	{"ghi", "jkl", "mno"},
	{"pqrs", "tuv", "wxyz"},
}

// Phone returns a 12-key multi-tap layout sized to width x height. The
// bottom row holds shift, space, and delete.
func Phone(width, height int) (*Layout, error) {
	cell := width / 3
	rowHeight := height / 4
	gap := cell / 20

	var keys []Key
	for i, labels := range phoneRows {
		var edges Edges
		if i == 0 {
			edges = EdgeTop
		}
		r := &rowBuilder{cell: cell, gap: gap, y: i * rowHeight, height: rowHeight, edges: edges}
		for _, s := range labels {
			codes := make([]int, 0, len(s))
			for _, c := range s {
				codes = append(codes, int(c))
			}
			r.add(1, strings.ToUpper(s), codes...)
		}
		keys = append(keys, r.finish()...)
	}

	r := &rowBuilder{cell: cell, gap: gap, y: len(phoneRows) * rowHeight, height: rowHeight, edges: EdgeBottom}
	shift := r.add(1, "shift", KeycodeShift)
	shift.Modifier = true
	r.add(1, "space", KeycodeSpace)
	del := r.add(1, "del", KeycodeDelete)
	del.Repeatable = true
	keys = append(keys, r.finish()...)

	return NewLayout(width, height, keys)
}
