package composer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposer_Add(t *testing.T) {
	c := New()
	c.Add('h', []int{'h', 'g', 'j'})
	c.Add('i', []int{'i', 'o'})

	assert.Equal(t, 2, c.Size())
	assert.Equal(t, "hi", c.TypedWord())
	assert.Equal(t, []int{'h', 'g', 'j'}, c.CodesAt(0))
}

func TestComposer_AddCopiesCodes(t *testing.T) {
	c := New()
	codes := []int{'a', 's'}
	c.Add('a', codes)
	codes[0] = 'z'

	assert.Equal(t, []int{'a', 's'}, c.CodesAt(0))
}

func TestComposer_AddSwapsPrimary(t *testing.T) {
	tests := []struct {
		name    string
		primary int
		codes   []int
		want    []int
	}{
		{"primary second", 'b', []int{'a', 'b', 'c'}, []int{'b', 'a', 'c'}},
		{"primary first", 'a', []int{'a', 'b'}, []int{'a', 'b'}},
		{"primary absent", 'x', []int{'a', 'b'}, []int{'a', 'b'}},
		{"negative code", 'b', []int{-1, 'b'}, []int{-1, 'b'}},
		{"single", 'a', []int{'a'}, []int{'a'}},
		{"empty", 'a', nil, []int{'a'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			c.Add(tt.primary, tt.codes)
			assert.Equal(t, tt.want, c.CodesAt(0))
		})
	}
}

func TestComposer_DeleteLastRestoresState(t *testing.T) {
	c := New()
	c.Add('H', []int{'H'})
	c.Add('e', []int{'e', 'w', 'r'})
	before := c.Clone()

	c.Add('L', []int{'L', 'k'})
	assert.True(t, c.IsMostlyCaps())

	c.DeleteLast()
	assert.Equal(t, before.TypedWord(), c.TypedWord())
	assert.Equal(t, before.Size(), c.Size())
	for i := 0; i < c.Size(); i++ {
		assert.Equal(t, before.CodesAt(i), c.CodesAt(i))
	}
	assert.False(t, c.IsMostlyCaps())
}

func TestComposer_DeleteLastEmptyPanics(t *testing.T) {
	c := New()
	assert.Panics(t, func() { c.DeleteLast() })
}

func TestComposer_MostlyCaps(t *testing.T) {
	c := New()
	c.Add('N', nil)
	assert.False(t, c.IsMostlyCaps(), "one capital is not mostly caps")
	c.Add('A', nil)
	assert.True(t, c.IsMostlyCaps())
	c.Add('s', nil)
	assert.True(t, c.IsMostlyCaps())
}

func TestComposer_Reset(t *testing.T) {
	c := New()
	c.Add('W', nil)
	c.Add('O', nil)
	c.SetCapitalized(true)
	c.SetAutoCapitalized(true)
	c.SetPreferredWord("Wow")

	c.Reset()
	assert.Zero(t, c.Size())
	assert.Equal(t, "", c.TypedWord())
	assert.False(t, c.IsCapitalized())
	assert.False(t, c.IsAutoCapitalized())
	assert.False(t, c.IsMostlyCaps())
	assert.Empty(t, c.PreferredWord())
}

func TestComposer_Flags(t *testing.T) {
	c := New()
	c.SetCapitalized(true)
	c.SetAutoCapitalized(true)
	c.SetPreferredWord("hello")

	assert.True(t, c.IsCapitalized())
	assert.True(t, c.IsAutoCapitalized())
	assert.Equal(t, "hello", c.PreferredWord())
}

func TestComposer_Clone(t *testing.T) {
	c := New()
	c.Add('a', []int{'a', 's'})
	cl := c.Clone()
	c.Add('b', nil)

	require.Equal(t, 1, cl.Size())
	assert.Equal(t, "a", cl.TypedWord())
}
