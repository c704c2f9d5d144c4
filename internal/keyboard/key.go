package keyboard

// NotAKey is the key index reported when a point hits no key.
const NotAKey = -1

// Key codes with special meaning. Printable keys use their Unicode code point.
const (
	KeycodeShift      = -1
	KeycodeModeChange = -2
	KeycodeCancel     = -3
	KeycodeDone       = -4
	KeycodeDelete     = -5
	KeycodeAlt        = -6

	KeycodeEnter = '\n'
	KeycodeSpace = ' '
)

// Edges marks which borders of the keyboard a key touches. A key on an edge
// accepts touches that land beyond that edge.
type Edges uint8

const (
	EdgeLeft Edges = 1 << iota
	EdgeRight
	EdgeTop
	EdgeBottom
)

// Key is one key of a layout. Geometry is in pixels relative to the
// keyboard's top-left corner.
type Key struct {
	X      int
	Y      int
	Width  int
	Height int

	// Gap is the horizontal spacing to the next key.
	Gap int

	// Codes lists the codes this key can produce. Codes[0] is the primary
	// code; the rest are multi-tap alternates.
	Codes []int

	// Label is the text drawn on the key. Used for previews only.
	Label string

	// Text, when set, is committed instead of a code.
	Text string

	Repeatable bool
	Modifier   bool
	Edges      Edges
}

// Primary returns the key's primary code, or 0 for a key without codes.
func (k *Key) Primary() int {
	if len(k.Codes) == 0 {
		return 0
	}
	return k.Codes[0]
}

// IsInside reports whether the point lies inside the key. The right and
// bottom bounds are exclusive unless the key sits on that keyboard edge.
func (k *Key) IsInside(x, y int) bool {
	left := k.Edges&EdgeLeft != 0
	right := k.Edges&EdgeRight != 0
	top := k.Edges&EdgeTop != 0
	bottom := k.Edges&EdgeBottom != 0

	return (x >= k.X || (left && x <= k.X+k.Width)) &&
		(x < k.X+k.Width || (right && x >= k.X)) &&
		(y >= k.Y || (top && y <= k.Y+k.Height)) &&
		(y < k.Y+k.Height || (bottom && y >= k.Y))
}

// SquaredDistanceFrom returns the squared distance between the point and the
// key's center.
func (k *Key) SquaredDistanceFrom(x, y int) int {
	dx := k.X + k.Width/2 - x
	dy := k.Y + k.Height/2 - y
	return dx*dx + dy*dy
}

// SquaredDistanceToEdge returns the squared distance between the point and
// the nearest point of the key's rectangle. Points inside yield 0.
func (k *Key) SquaredDistanceToEdge(x, y int) int {
	left, right := k.X, k.X+k.Width
	top, bottom := k.Y, k.Y+k.Height
	edgeX := clamp(x, left, right)
	edgeY := clamp(y, top, bottom)
	dx := x - edgeX
	dy := y - edgeY
	return dx*dx + dy*dy
}

// Overlaps reports whether the key's rectangle intersects the given one.
func (k *Key) Overlaps(x, y, w, h int) bool {
	return !(x+w-1 < k.X || x > k.X+k.Width || y+h-1 < k.Y || y > k.Y+k.Height)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ProximityThreshold is the distance within which a key center counts as
// near a touch: 1.4 times the average of min(width, height)+gap over all
// keys. The value is not squared. Returns 0 for an empty key set.
func ProximityThreshold(keys []Key) int {
	if len(keys) == 0 {
		return 0
	}
	sum := 0
	for i := range keys {
		k := &keys[i]
		sum += min(k.Width, k.Height) + k.Gap
	}
	return int(float64(sum) * 1.4 / float64(len(keys)))
}
