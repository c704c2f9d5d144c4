// Package dictionary provides in-memory word sources for the suggestion
// ranker.
//
// Trie is an expandable dictionary: words can be added at any time and a
// lookup walks the trie with the alternates recorded for every keystroke,
// so that a word is found even when some letters landed on a neighbouring
// key. AutoDictionary learns words from typing and UserDictionary holds
// words the user added; both persist through the store package.
package dictionary

import (
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"keyintent/internal/composer"
	"keyintent/internal/suggest"
	"keyintent/internal/textfold"
)

const (
	// MaxWordLength bounds stored words and composer sizes.
	MaxWordLength = 48

	// MaxFrequency is the largest frequency a word can carry.
	MaxFrequency = 255

	// fullWordMultiplier favours words matched without a skipped letter.
	fullWordMultiplier = 2

	// minSkipLength is the composer size from which missing-letter passes
	// run.
	minSkipLength = 4

	quote = '\''
)

type node struct {
	code     rune
	freq     int
	terminal bool
	children []*node
}

// child returns the child for code, creating it when create is set.
// Children are kept sorted by code.
func (n *node) child(code rune, create bool) *node {
	i := sort.Search(len(n.children), func(i int) bool { return n.children[i].code >= code })
	if i < len(n.children) && n.children[i].code == code {
		return n.children[i]
	}
	if !create {
		return nil
	}
	c := &node{code: code}
	n.children = append(n.children, nil)
	copy(n.children[i+1:], n.children[i:])
	n.children[i] = c
	return c
}

// Trie is a word-frequency trie safe for concurrent use.
type Trie struct {
	mu   sync.RWMutex
	root node
	size int
}

// NewTrie returns an empty trie.
func NewTrie() *Trie {
	return &Trie{}
}

func validWord(word string) bool {
	n := utf8.RuneCountInString(word)
	return n > 0 && n < MaxWordLength
}

func clampFreq(freq int) int {
	return min(max(freq, 0), MaxFrequency)
}

// Add inserts word, keeping the larger of freq and any existing frequency.
// Empty words and words of MaxWordLength or more runes are ignored.
func (t *Trie) Add(word string, freq int) {
	if !validWord(word) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.insert(word)
	n.freq = clampFreq(max(freq, n.freq))
}

// Set inserts word with exactly freq.
func (t *Trie) Set(word string, freq int) {
	if !validWord(word) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.insert(word)
	n.freq = clampFreq(freq)
}

func (t *Trie) insert(word string) *node {
	n := &t.root
	for _, r := range word {
		n = n.child(r, true)
	}
	if !n.terminal {
		n.terminal = true
		t.size++
	}
	return n
}

// Remove deletes word. It reports whether the word was present.
func (t *Trie) Remove(word string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.find(word)
	if n == nil {
		return false
	}
	n.terminal = false
	n.freq = 0
	t.size--
	return true
}

func (t *Trie) find(word string) *node {
	if word == "" {
		return nil
	}
	n := &t.root
	for _, r := range word {
		if n = n.child(r, false); n == nil {
			return nil
		}
	}
	if !n.terminal {
		return nil
	}
	return n
}

// Frequency returns the frequency of word, or -1 when absent.
func (t *Trie) Frequency(word string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if n := t.find(word); n != nil {
		return n.freq
	}
	return -1
}

// IsValidWord reports whether word, or its lower-case form, is present.
// Words with zero frequency are valid.
func (t *Trie) IsValidWord(word string) bool {
	if t.Frequency(word) > -1 {
		return true
	}
	lower := strings.ToLower(word)
	return lower != word && t.Frequency(lower) > -1
}

// Size returns the number of words.
func (t *Trie) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// Clear removes every word.
func (t *Trie) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.root = node{}
	t.size = 0
}

// Each calls fn for every word in code point order until fn returns false.
func (t *Trie) Each(fn func(word string, freq int) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	buf := make([]rune, 0, MaxWordLength)
	var walk func(n *node) bool
	walk = func(n *node) bool {
		for _, c := range n.children {
			buf = append(buf, c.code)
			if c.terminal && !fn(string(buf), c.freq) {
				return false
			}
			if !walk(c) {
				return false
			}
			buf = buf[:len(buf)-1]
		}
		return true
	}
	walk(&t.root)
}

// Words reports every word reachable from the composer's keystrokes to cb.
//
// A keystroke matches a trie letter when any of its codes folds to the same
// letter; the committed code weighs twice as much as its alternates.
// Apostrophes in the dictionary need not be typed. Words longer than the
// input are reported as completions, and each completion bumps the
// histogram slot of the letter following the typed prefix. From four
// keystrokes on, additional passes allow one dictionary letter to be
// missing from the input; full-length matches get a bonus over those.
func (t *Trie) Words(c *composer.Composer, cb suggest.WordCallback, nextLetterFreq []int) {
	size := c.Size()
	if size == 0 || size >= MaxWordLength {
		return
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	w := &walker{
		c:        c,
		cb:       cb,
		next:     nextLetterFreq,
		inputLen: size,
		maxDepth: min(size*3, MaxWordLength-1),
		typed:    []rune(c.TypedWord()),
	}
	w.walk(t.root.children, 0, false, 1, 0, -1)
	if size < minSkipLength {
		return
	}
	for i := 0; i < size && !w.stopped; i++ {
		w.walk(t.root.children, 0, false, 1, 0, i)
	}
}

// walker holds the state of one lookup.
type walker struct {
	c        *composer.Composer
	cb       suggest.WordCallback
	next     []int
	inputLen int
	maxDepth int
	typed    []rune
	word     [MaxWordLength]rune
	stopped  bool
}

func (w *walker) report(depth, freq int) {
	if !w.cb(w.word[:depth], freq) {
		w.stopped = true
	}
}

func (w *walker) isTyped(n int) bool {
	if n != len(w.typed) {
		return false
	}
	for i := 0; i < n; i++ {
		if w.word[i] != w.typed[i] {
			return false
		}
	}
	return true
}

// walk visits nodes at depth. snr is the accumulated match weight and
// skipPos the depth at which a dictionary letter is consumed without input,
// or -1.
func (w *walker) walk(nodes []*node, depth int, completion bool, snr, inputIndex, skipPos int) {
	if depth > w.maxDepth {
		return
	}
	var current []int
	if inputIndex >= w.inputLen {
		completion = true
	} else {
		current = w.c.CodesAt(inputIndex)
	}

	for _, n := range nodes {
		if w.stopped {
			return
		}
		switch {
		case completion:
			w.word[depth] = n.code
			if n.terminal && n.freq > 0 {
				w.report(depth+1, n.freq*snr)
				if w.stopped {
					return
				}
				if skipPos < 0 && depth >= inputIndex {
					if r := int(w.word[inputIndex]); r < len(w.next) {
						w.next[r]++
					}
				}
			}
			if len(n.children) > 0 {
				w.walk(n.children, depth+1, true, snr, inputIndex, skipPos)
			}

		case (n.code == quote && (len(current) == 0 || current[0] != quote)) || depth == skipPos:
			w.word[depth] = n.code
			if len(n.children) > 0 {
				w.walk(n.children, depth+1, false, snr, inputIndex, skipPos)
			}

		default:
			alternates := len(current)
			if skipPos >= 0 {
				alternates = min(alternates, 1)
			}
			folded := textfold.Rune(n.code)
			for j := 0; j < alternates; j++ {
				code := current[j]
				if code < 0 {
					break
				}
				if textfold.Rune(rune(code)) != folded {
					continue
				}
				attenuation := 1
				if j == 0 {
					attenuation = 2
				}
				w.word[depth] = n.code
				if inputIndex+1 == w.inputLen {
					if n.terminal && n.freq > 0 && !w.isTyped(depth+1) {
						freq := n.freq * snr * attenuation
						if skipPos < 0 {
							freq *= fullWordMultiplier
						}
						w.report(depth+1, freq)
						if w.stopped {
							return
						}
					}
					if len(n.children) > 0 {
						w.walk(n.children, depth+1, true, snr*attenuation, inputIndex+1, skipPos)
					}
				} else if len(n.children) > 0 {
					w.walk(n.children, depth+1, false, snr*attenuation, inputIndex+1, skipPos)
				}
				break
			}
		}
	}
}
