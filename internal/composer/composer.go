// Package composer holds the word being typed.
package composer

import (
	"unicode"
)

// Composer accumulates the keystrokes of the current word. Each keystroke
// keeps the code the user committed plus the alternates of nearby keys so
// that dictionaries can match near misses.
type Composer struct {
	codes [][]int
	typed []rune

	capsCount       int
	isCapitalized   bool
	autoCapitalized bool
	preferredWord   string
}

// New returns an empty composer.
func New() *Composer {
	return &Composer{
		codes: make([][]int, 0, 32),
		typed: make([]rune, 0, 32),
	}
}

// Reset clears the word and its flags.
func (c *Composer) Reset() {
	c.codes = c.codes[:0]
	c.typed = c.typed[:0]
	c.capsCount = 0
	c.isCapitalized = false
	c.autoCapitalized = false
	c.preferredWord = ""
}

// Size returns the number of keystrokes.
func (c *Composer) Size() int { return len(c.codes) }

// CodesAt returns the codes of keystroke i, primary first. Callers must not
// modify the slice.
func (c *Composer) CodesAt(i int) []int { return c.codes[i] }

// Add appends a keystroke. codes is copied. When the nearest key was not the
// one committed, the committed code is moved to the front.
func (c *Composer) Add(primary int, codes []int) {
	cp := make([]int, len(codes))
	copy(cp, codes)
	if len(cp) >= 2 && cp[0] != primary && cp[1] == primary && cp[0] > 0 && cp[1] > 0 {
		cp[0], cp[1] = cp[1], cp[0]
	}
	if len(cp) == 0 {
		cp = append(cp, primary)
	}
	c.codes = append(c.codes, cp)

	r := rune(primary)
	c.typed = append(c.typed, r)
	if unicode.IsUpper(r) {
		c.capsCount++
	}
}

// DeleteLast removes the last keystroke. It panics on an empty composer.
func (c *Composer) DeleteLast() {
	if len(c.codes) == 0 {
		panic("composer: DeleteLast on empty word")
	}
	c.codes = c.codes[:len(c.codes)-1]
	last := c.typed[len(c.typed)-1]
	c.typed = c.typed[:len(c.typed)-1]
	if unicode.IsUpper(last) {
		c.capsCount--
	}
}

// TypedWord returns the word as typed, or "" when empty.
func (c *Composer) TypedWord() string {
	if len(c.typed) == 0 {
		return ""
	}
	return string(c.typed)
}

// SetCapitalized records whether the word started with a capital.
func (c *Composer) SetCapitalized(v bool) { c.isCapitalized = v }

func (c *Composer) IsCapitalized() bool { return c.isCapitalized }

// IsMostlyCaps reports whether more than one character is uppercase.
func (c *Composer) IsMostlyCaps() bool { return c.capsCount > 1 }

// SetAutoCapitalized records that the first letter was capitalized by the
// editor rather than the user.
func (c *Composer) SetAutoCapitalized(v bool) { c.autoCapitalized = v }

func (c *Composer) IsAutoCapitalized() bool { return c.autoCapitalized }

// SetPreferredWord stores the word the user picked from the suggestions.
func (c *Composer) SetPreferredWord(w string) { c.preferredWord = w }

func (c *Composer) PreferredWord() string { return c.preferredWord }

// Clone returns a deep copy.
func (c *Composer) Clone() *Composer {
	out := &Composer{
		codes:           make([][]int, len(c.codes), cap(c.codes)),
		typed:           append(make([]rune, 0, cap(c.typed)), c.typed...),
		capsCount:       c.capsCount,
		isCapitalized:   c.isCapitalized,
		autoCapitalized: c.autoCapitalized,
		preferredWord:   c.preferredWord,
	}
	for i, cs := range c.codes {
		out.codes[i] = append([]int(nil), cs...)
	}
	return out
}
