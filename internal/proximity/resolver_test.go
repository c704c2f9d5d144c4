package proximity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyintent/internal/keyboard"
)

// allKeys is a layout whose spatial index returns every key for every point.
type allKeys []keyboard.Key

func (a allKeys) Keys() []keyboard.Key { return a }

func (a allKeys) NearestKeys(x, y int) []int {
	idx := make([]int, len(a))
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// rowLayout returns a single row of 100x100 keys with no gaps.
func rowLayout(t *testing.T, codes ...[]int) *keyboard.Layout {
	t.Helper()
	keys := make([]keyboard.Key, len(codes))
	for i, c := range codes {
		keys[i] = keyboard.Key{X: i * 100, Y: 0, Width: 100, Height: 100, Codes: c}
	}
	l, err := keyboard.NewLayout(len(codes)*100, 100, keys)
	require.NoError(t, err)
	return l
}

func newResolver(l Layout) *Resolver {
	r := NewResolver()
	r.SetLayout(l)
	return r
}

// =============================================================================
// Primary key selection
// =============================================================================

func TestResolve_InsideKey(t *testing.T) {
	r := newResolver(rowLayout(t, []int{'a'}, []int{'b'}, []int{'c'}))

	hit := r.Resolve(50, 50)
	assert.Equal(t, 0, hit.Primary)
	assert.Equal(t, 0, hit.Distance)
	assert.Equal(t, []int{'a', 'b'}, hit.Nearby)
}

func TestResolve_NearbyOrderedByDistance(t *testing.T) {
	r := newResolver(rowLayout(t, []int{'a'}, []int{'b'}, []int{'c'}))

	hit := r.Resolve(150, 50)
	assert.Equal(t, 1, hit.Primary)
	// a and c tie; first encountered wins.
	assert.Equal(t, []int{'b', 'a', 'c'}, hit.Nearby)
}

func TestResolve_DeadSpace(t *testing.T) {
	keys := []keyboard.Key{
		{X: 0, Y: 0, Width: 90, Height: 100, Gap: 10, Codes: []int{'a'}},
		{X: 100, Y: 0, Width: 90, Height: 100, Gap: 10, Codes: []int{'b'}},
	}
	l, err := keyboard.NewLayout(200, 100, keys)
	require.NoError(t, err)
	r := newResolver(l)

	assert.Equal(t, 0, r.KeyIndex(95, 50), "closest key wins when nothing is under the point")

	r.SetProximityCorrection(false)
	assert.Equal(t, keyboard.NotAKey, r.KeyIndex(95, 50))
	hit := r.Resolve(95, 50)
	assert.Empty(t, hit.Nearby)
}

func TestResolve_OutOfRange(t *testing.T) {
	r := newResolver(rowLayout(t, []int{'a'}, []int{'b'}))

	hit := r.Resolve(-10, -10)
	assert.Equal(t, keyboard.NotAKey, hit.Primary)
	assert.Empty(t, hit.Nearby)

	hit = r.Resolve(5000, 50)
	assert.Equal(t, keyboard.NotAKey, hit.Primary)
}

func TestResolve_ControlKeysNotAlternates(t *testing.T) {
	r := newResolver(rowLayout(t, []int{keyboard.KeycodeSpace}, []int{'a'}))

	hit := r.Resolve(50, 50)
	assert.Equal(t, 0, hit.Primary, "a key under the finger is primary even without a printable code")
	assert.Equal(t, []int{'a'}, hit.Nearby)

	r = newResolver(rowLayout(t, []int{keyboard.KeycodeDelete}, []int{'a'}))
	assert.Equal(t, 0, r.KeyIndex(10, 50))
}

func TestResolve_PanicsWithoutLayout(t *testing.T) {
	r := NewResolver()
	assert.Panics(t, func() { r.Resolve(0, 0) })
	assert.Panics(t, func() { r.KeyIndex(0, 0) })
}

func TestResolver_Threshold(t *testing.T) {
	r := newResolver(rowLayout(t, []int{'a'}, []int{'b'}))
	assert.Equal(t, 140*140, r.ThresholdSquared())
}

// =============================================================================
// Nearby code buffer
// =============================================================================

func TestResolve_MultiCodeKeyContiguous(t *testing.T) {
	r := newResolver(rowLayout(t, []int{'a', 'x', 'y'}, []int{'b'}))

	hit := r.Resolve(150, 50)
	assert.Equal(t, 1, hit.Primary)
	assert.Equal(t, []int{'b', 'a', 'x', 'y'}, hit.Nearby)
}

func TestResolve_Truncation(t *testing.T) {
	keys := make(allKeys, 13)
	for i := range keys {
		keys[i] = keyboard.Key{X: 0, Y: 0, Width: 100, Height: 100, Codes: []int{'a' + i}}
	}
	r := newResolver(keys)

	hit := r.Resolve(50, 50)
	require.Len(t, hit.Nearby, MaxNearbyKeys)
	assert.Equal(t, 'a', rune(hit.Nearby[0]))
	assert.Equal(t, 'l', rune(hit.Nearby[MaxNearbyKeys-1]))
	assert.Equal(t, 12, hit.Primary, "the last key containing the point is primary")
}

func TestResolve_MultiCodeOverflowTruncated(t *testing.T) {
	keys := make(allKeys, 12)
	for i := 0; i < 11; i++ {
		keys[i] = keyboard.Key{X: 0, Y: 0, Width: 100, Height: 100, Codes: []int{'a' + i}}
	}
	keys[11] = keyboard.Key{X: 0, Y: 0, Width: 100, Height: 100, Codes: []int{'x', 'y', 'z'}}
	r := newResolver(keys)

	hit := r.Resolve(50, 50)
	require.Len(t, hit.Nearby, MaxNearbyKeys)
	assert.Equal(t, 'x', rune(hit.Nearby[11]))
}

func TestScratch_Insert(t *testing.T) {
	var s Scratch
	s.reset()

	s.insert(50, []int{'c'})
	s.insert(10, []int{'a', 'b'})
	s.insert(50, []int{'d'})
	s.insert(30, []int{'e'})

	assert.Equal(t, []int{'a', 'b', 'e', 'c', 'd'}, s.nearby())
}

func TestResolveInto_ReusesScratch(t *testing.T) {
	r := newResolver(rowLayout(t, []int{'a'}, []int{'b'}, []int{'c'}))
	var s Scratch

	first := r.ResolveInto(50, 50, &s)
	assert.Equal(t, []int{'a', 'b'}, first.Nearby)

	second := r.ResolveInto(250, 50, &s)
	assert.Equal(t, []int{'c', 'b'}, second.Nearby)
	assert.Equal(t, []int{'c', 'b'}, first.Nearby[:2], "results alias the scratch buffer")
}

func TestResolve_QWERTY(t *testing.T) {
	l, err := keyboard.QWERTY(1000, 400)
	require.NoError(t, err)
	r := newResolver(l)

	// Center of 'g'.
	var g *keyboard.Key
	for i := range l.Keys() {
		if l.Keys()[i].Primary() == 'g' {
			g = &l.Keys()[i]
		}
	}
	require.NotNil(t, g)

	hit := r.Resolve(g.X+g.Width/2, g.Y+g.Height/2)
	require.NotEmpty(t, hit.Nearby)
	assert.Equal(t, 'g', rune(hit.Nearby[0]))
	assert.Contains(t, hit.Nearby, int('f'))
	assert.Contains(t, hit.Nearby, int('h'))
	assert.NotContains(t, hit.Nearby, int('p'))
}
