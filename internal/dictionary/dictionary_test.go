package dictionary

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyintent/internal/composer"
	"keyintent/internal/store"
	"keyintent/internal/suggest"
)

// keystrokes builds a composer from one code list per keystroke.
func keystrokes(keys ...[]int) *composer.Composer {
	c := composer.New()
	for _, k := range keys {
		c.Add(k[0], k)
	}
	return c
}

func exact(word string) *composer.Composer {
	c := composer.New()
	for _, r := range word {
		c.Add(int(r), []int{int(r)})
	}
	return c
}

type hit struct {
	word string
	freq int
}

func collect(t *Trie, c *composer.Composer, next []int) []hit {
	var hits []hit
	t.Words(c, func(word []rune, freq int) bool {
		hits = append(hits, hit{string(word), freq})
		return true
	}, next)
	return hits
}

func best(hits []hit) map[string]int {
	m := make(map[string]int)
	for _, h := range hits {
		if h.freq > m[h.word] {
			m[h.word] = h.freq
		}
	}
	return m
}

func newTrie(words map[string]int) *Trie {
	t := NewTrie()
	for w, f := range words {
		t.Add(w, f)
	}
	return t
}

// =============================================================================
// Trie storage
// =============================================================================

func TestTrie_AddAndFrequency(t *testing.T) {
	tr := NewTrie()
	tr.Add("hello", 10)
	tr.Add("help", 20)

	assert.Equal(t, 10, tr.Frequency("hello"))
	assert.Equal(t, 20, tr.Frequency("help"))
	assert.Equal(t, -1, tr.Frequency("hel"), "prefix is not a word")
	assert.Equal(t, -1, tr.Frequency("helping"))
	assert.Equal(t, -1, tr.Frequency(""))
	assert.Equal(t, 2, tr.Size())
}

func TestTrie_AddKeepsMaximum(t *testing.T) {
	tr := NewTrie()
	tr.Add("word", 50)
	tr.Add("word", 10)
	assert.Equal(t, 50, tr.Frequency("word"))
	assert.Equal(t, 1, tr.Size())

	tr.Add("word", 1000)
	assert.Equal(t, MaxFrequency, tr.Frequency("word"))
}

func TestTrie_SetOverwrites(t *testing.T) {
	tr := NewTrie()
	tr.Add("word", 50)
	tr.Set("word", 5)
	assert.Equal(t, 5, tr.Frequency("word"))

	tr.Set("word", -3)
	assert.Equal(t, 0, tr.Frequency("word"))
}

func TestTrie_RejectsLongAndEmptyWords(t *testing.T) {
	tr := NewTrie()
	tr.Add("", 10)
	tr.Add(strings.Repeat("a", MaxWordLength), 10)
	tr.Add(strings.Repeat("b", MaxWordLength-1), 10)
	assert.Equal(t, 1, tr.Size())
}

func TestTrie_IsValidWord(t *testing.T) {
	tr := NewTrie()
	tr.Add("paris", 10)
	tr.Set("hidden", 0)

	assert.True(t, tr.IsValidWord("paris"))
	assert.True(t, tr.IsValidWord("Paris"), "falls back to lower case")
	assert.True(t, tr.IsValidWord("hidden"), "zero frequency words are valid")
	assert.False(t, tr.IsValidWord("london"))
}

func TestTrie_Remove(t *testing.T) {
	tr := newTrie(map[string]int{"car": 10, "cart": 20})

	assert.True(t, tr.Remove("car"))
	assert.False(t, tr.Remove("car"))
	assert.Equal(t, -1, tr.Frequency("car"))
	assert.Equal(t, 20, tr.Frequency("cart"))
	assert.Equal(t, 1, tr.Size())
}

func TestTrie_EachInCodePointOrder(t *testing.T) {
	tr := newTrie(map[string]int{"b": 1, "ab": 2, "a": 3, "abc": 4})

	var words []string
	tr.Each(func(w string, _ int) bool {
		words = append(words, w)
		return true
	})
	assert.Equal(t, []string{"a", "ab", "abc", "b"}, words)

	words = nil
	tr.Each(func(w string, _ int) bool {
		words = append(words, w)
		return len(words) < 2
	})
	assert.Equal(t, []string{"a", "ab"}, words)
}

func TestTrie_Clear(t *testing.T) {
	tr := newTrie(map[string]int{"one": 1, "two": 2})
	tr.Clear()
	assert.Zero(t, tr.Size())
	assert.False(t, tr.IsValidWord("one"))
}

// =============================================================================
// Trie matching
// =============================================================================

func TestWords_Completions(t *testing.T) {
	tr := newTrie(map[string]int{"the": 100, "that": 80, "this": 80, "them": 50})
	next := make([]int, suggest.NextLetterSlots)

	got := best(collect(tr, exact("th"), next))
	assert.Equal(t, map[string]int{"the": 400, "that": 320, "this": 320, "them": 200}, got)
	assert.Equal(t, 2, next['e'])
	assert.Equal(t, 1, next['a'])
	assert.Equal(t, 1, next['i'])
}

func TestWords_PrimaryOutweighsAlternates(t *testing.T) {
	tr := newTrie(map[string]int{"cats": 100, "cots": 100})

	got := best(collect(tr, keystrokes([]int{'c'}, []int{'a', 'o'}), nil))
	assert.Equal(t, 400, got["cats"])
	assert.Equal(t, 200, got["cots"])
}

func TestWords_ProximityMatchFullWord(t *testing.T) {
	tr := newTrie(map[string]int{"the": 100})

	got := best(collect(tr, keystrokes([]int{'t'}, []int{'g', 'h'}, []int{'e'}), nil))
	// t(2) * h as alternate(1) * e(2) * full-word bonus(2)
	assert.Equal(t, map[string]int{"the": 800}, got)
}

func TestWords_TypedWordNotReported(t *testing.T) {
	tr := newTrie(map[string]int{"the": 100, "them": 50})

	got := best(collect(tr, exact("the"), nil))
	assert.Equal(t, map[string]int{"them": 400}, got)
}

func TestWords_ApostropheSkipped(t *testing.T) {
	tr := newTrie(map[string]int{"don't": 100})

	got := best(collect(tr, exact("dont"), nil))
	assert.Equal(t, map[string]int{"don't": 3200}, got)
}

func TestWords_MissingLetter(t *testing.T) {
	tr := newTrie(map[string]int{"hello": 100})

	hits := collect(tr, exact("helo"), nil)
	require.NotEmpty(t, hits)
	for _, h := range hits {
		assert.Equal(t, "hello", h.word)
		assert.Equal(t, 1600, h.freq, "no full-word bonus when a letter was skipped")
	}
}

func TestWords_NoMissingLetterPassForShortInput(t *testing.T) {
	tr := newTrie(map[string]int{"cart": 100})
	assert.Empty(t, collect(tr, exact("crt"), nil))
}

func TestWords_AccentInsensitive(t *testing.T) {
	tr := newTrie(map[string]int{"café": 100})

	got := best(collect(tr, exact("cafe"), nil))
	assert.Equal(t, map[string]int{"café": 3200}, got)

	got = best(collect(tr, exact("Cafe"), nil))
	assert.Contains(t, got, "café")
}

func TestWords_ZeroFrequencyNeverReported(t *testing.T) {
	tr := NewTrie()
	tr.Set("hidden", 0)
	next := make([]int, suggest.NextLetterSlots)

	assert.Empty(t, collect(tr, exact("hid"), next))
	assert.Zero(t, next['d'])
}

func TestWords_CallbackStops(t *testing.T) {
	tr := newTrie(map[string]int{"aa": 1, "ab": 2, "ac": 3})

	calls := 0
	tr.Words(exact("a"), func([]rune, int) bool {
		calls++
		return false
	}, nil)
	assert.Equal(t, 1, calls)
}

func TestWords_LongInputIgnored(t *testing.T) {
	tr := newTrie(map[string]int{"a": 1})
	assert.Empty(t, collect(tr, exact(strings.Repeat("a", MaxWordLength)), nil))
	assert.Empty(t, collect(tr, composer.New(), nil))
}

func TestWords_DrivesRanker(t *testing.T) {
	tr := newTrie(map[string]int{"the": 100, "that": 80, "this": 80, "them": 50})
	r := suggest.NewRanker(tr)

	res := r.Query(exact("th"))
	assert.Equal(t, []string{"th", "the", "that", "this", "them"}, res.Words)
	assert.Equal(t, 2, res.NextLetterFrequencies['e'])
	assert.False(t, res.TypedWordValid)
}

// =============================================================================
// Word lists
// =============================================================================

func TestReadWordList_Text(t *testing.T) {
	in := `# common words
the 100
that   80
keyboard

`
	entries, err := ReadWordList(strings.NewReader(in), FormatText)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{"the", 100}, {"that", 80}, {"keyboard", DefaultFrequency}}, entries)
}

func TestReadWordList_TextErrors(t *testing.T) {
	_, err := ReadWordList(strings.NewReader("the many\n"), FormatText)
	assert.Error(t, err)

	_, err = ReadWordList(strings.NewReader("a b c\n"), FormatText)
	assert.Error(t, err)
}

func TestReadWordList_YAML(t *testing.T) {
	in := `locale: en_US
words:
  - word: hello
    freq: 90
  - word: hidden
    freq: 0
  - word: "  "
    freq: 5
`
	entries, err := ReadWordList(strings.NewReader(in), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{"hello", 90}, {"hidden", 0}}, entries)
}

func TestReadWordList_JSON(t *testing.T) {
	in := `{"words": [{"word": "world", "freq": 70}]}`
	entries, err := ReadWordList(strings.NewReader(in), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{"world", 70}}, entries)

	_, err = ReadWordList(strings.NewReader(`{"words": [`), FormatJSON)
	assert.Error(t, err)
}

func TestFormatForPath(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatForPath("words.yaml"))
	assert.Equal(t, FormatYAML, FormatForPath("words.YML"))
	assert.Equal(t, FormatJSON, FormatForPath("/tmp/words.json"))
	assert.Equal(t, FormatText, FormatForPath("words.txt"))
	assert.Equal(t, FormatText, FormatForPath("words"))
}

func TestLoadWordList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "en.txt")
	require.NoError(t, os.WriteFile(path, []byte("the 100\nthat 80\n"), 0600))

	tr, err := LoadWordList(path)
	require.NoError(t, err)
	assert.Equal(t, 2, tr.Size())
	assert.Equal(t, 80, tr.Frequency("that"))

	_, err = LoadWordList(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

// =============================================================================
// User and auto dictionaries
// =============================================================================

// memStore is an in-memory WordStore.
type memStore struct {
	tables  map[store.Table]map[string]int
	saveErr error
	saves   int
}

func newMemStore() *memStore {
	return &memStore{tables: map[store.Table]map[string]int{}}
}

func (m *memStore) LoadWords(_ context.Context, table store.Table, _ string) ([]store.WordEntry, error) {
	var out []store.WordEntry
	for w, f := range m.tables[table] {
		out = append(out, store.WordEntry{Word: w, Freq: f})
	}
	return out, nil
}

func (m *memStore) SaveWords(_ context.Context, table store.Table, _ string, entries []store.WordEntry) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.tables[table] == nil {
		m.tables[table] = map[string]int{}
	}
	for _, e := range entries {
		if e.Freq <= 0 {
			delete(m.tables[table], e.Word)
			continue
		}
		m.tables[table][e.Word] = e.Freq
	}
	return nil
}

func TestUserDictionary_AddAndDelete(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	ud, err := NewUserDictionary(ctx, ms, "en_US")
	require.NoError(t, err)

	require.NoError(t, ud.AddWord(ctx, "keyintent", 200))
	assert.True(t, ud.IsValidWord("keyintent"))
	assert.Equal(t, 200, ms.tables[store.UserWords]["keyintent"])

	require.NoError(t, ud.DeleteWord(ctx, "keyintent"))
	assert.False(t, ud.IsValidWord("keyintent"))
	assert.NotContains(t, ms.tables[store.UserWords], "keyintent")
}

func TestUserDictionary_LoadsAndSuggests(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	ms.tables[store.UserWords] = map[string]int{"gopher": 120}

	ud, err := NewUserDictionary(ctx, ms, "en_US")
	require.NoError(t, err)
	assert.Equal(t, 1, ud.Size())

	r := suggest.NewRanker(nil, suggest.WithExtraProviders(ud))
	res := r.Query(exact("gop"))
	assert.Equal(t, []string{"gop", "gopher"}, res.Words)
}

func TestUserDictionary_SaveError(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	ms.saveErr = errors.New("disk full")
	ud, err := NewUserDictionary(ctx, ms, "en_US")
	require.NoError(t, err)

	err = ud.AddWord(ctx, "word", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ms.saveErr)
}

func TestAutoDictionary_ValidityThreshold(t *testing.T) {
	ctx := context.Background()
	ad, err := NewAutoDictionary(ctx, nil, "en_US", nil)
	require.NoError(t, err)

	for i := 0; i < ValidityThreshold-1; i++ {
		ad.Learn("gopher", FrequencyForTyped, false)
	}
	assert.False(t, ad.IsValidWord("gopher"))

	ad.Learn("gopher", FrequencyForTyped, false)
	assert.True(t, ad.IsValidWord("gopher"))
}

func TestAutoDictionary_IgnoresShortAndLongWords(t *testing.T) {
	ctx := context.Background()
	ad, err := NewAutoDictionary(ctx, nil, "en_US", nil)
	require.NoError(t, err)

	ad.Learn("a", FrequencyForPicked, false)
	ad.Learn(strings.Repeat("x", MaxWordLength), FrequencyForPicked, false)
	assert.Zero(t, ad.Size())
	assert.Zero(t, ad.Pending())
}

func TestAutoDictionary_AutoCapitalizedLowered(t *testing.T) {
	ctx := context.Background()
	ad, err := NewAutoDictionary(ctx, nil, "en_US", nil)
	require.NoError(t, err)

	ad.Learn("Gopher", FrequencyForPicked, true)
	assert.Equal(t, FrequencyForPicked, ad.Frequency("gopher"))
	assert.Equal(t, -1, ad.Frequency("Gopher"))

	ad.Learn("Paris", FrequencyForPicked, false)
	assert.Equal(t, FrequencyForPicked, ad.Frequency("Paris"))
}

func TestAutoDictionary_FlushAndPromote(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	ud, err := NewUserDictionary(ctx, ms, "en_US")
	require.NoError(t, err)
	ad, err := NewAutoDictionary(ctx, ms, "en_US", ud)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		promoted := ad.Learn("gopher", FrequencyForPicked, false)
		assert.False(t, promoted)
	}
	assert.Equal(t, 1, ad.Pending())
	require.NoError(t, ad.Flush(ctx))
	assert.Zero(t, ad.Pending())
	assert.Equal(t, 9, ms.tables[store.AutoWords]["gopher"])

	promoted := ad.Learn("gopher", FrequencyForPicked, false)
	assert.True(t, promoted)
	assert.Equal(t, FrequencyForAutoAdd, ud.Frequency("gopher"))
	assert.True(t, ad.IsValidWord("gopher"), "promoted words stay valid")
	assert.NotContains(t, ms.tables[store.UserWords], "gopher", "promotion waits for Flush")
	assert.Equal(t, 1, ud.Pending())

	require.NoError(t, ad.Flush(ctx))
	assert.NotContains(t, ms.tables[store.AutoWords], "gopher")
	assert.Equal(t, FrequencyForAutoAdd, ms.tables[store.UserWords]["gopher"])
	assert.Zero(t, ud.Pending())

	// Already in the user dictionary: no second promotion.
	promoted = ad.Learn("gopher", FrequencyForPicked, false)
	assert.False(t, promoted)
}

func TestAutoDictionary_FlushErrorKeepsPending(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	ad, err := NewAutoDictionary(ctx, ms, "en_US", nil)
	require.NoError(t, err)

	ad.Learn("gopher", FrequencyForTyped, false)

	ms.saveErr = errors.New("locked")
	assert.Error(t, ad.Flush(ctx))
	assert.Equal(t, 1, ad.Pending())

	ms.saveErr = nil
	require.NoError(t, ad.Flush(ctx))
	assert.Equal(t, 1, ms.tables[store.AutoWords]["gopher"])
}

func TestAutoDictionary_PromotionFlushError(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	ud, err := NewUserDictionary(ctx, ms, "en_US")
	require.NoError(t, err)
	ad, err := NewAutoDictionary(ctx, ms, "en_US", ud)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		ad.Learn("gopher", FrequencyForPicked, false)
	}
	assert.Zero(t, ms.saves, "learning never touches the store")

	ms.saveErr = errors.New("locked")
	assert.Error(t, ad.Flush(ctx))
	assert.Equal(t, 1, ud.Pending())

	ms.saveErr = nil
	require.NoError(t, ad.Flush(ctx))
	assert.Equal(t, FrequencyForAutoAdd, ms.tables[store.UserWords]["gopher"])
}

func TestUserDictionary_DeleteDropsQueuedPromotion(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	ud, err := NewUserDictionary(ctx, ms, "en_US")
	require.NoError(t, err)
	ad, err := NewAutoDictionary(ctx, nil, "en_US", ud)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		ad.Learn("gopher", FrequencyForPicked, false)
	}
	require.NoError(t, ud.DeleteWord(ctx, "gopher"))
	assert.Zero(t, ud.Pending())
	require.NoError(t, ud.Flush(ctx))
	assert.NotContains(t, ms.tables[store.UserWords], "gopher")
}

func TestAutoDictionary_SQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "words.db"))
	require.NoError(t, err)
	defer st.Close()

	ad, err := NewAutoDictionary(ctx, st, "en_US", nil)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		ad.Learn("gopher", FrequencyForPicked, false)
	}
	require.NoError(t, ad.Flush(ctx))

	reloaded, err := NewAutoDictionary(ctx, st, "en_US", nil)
	require.NoError(t, err)
	assert.Equal(t, 6, reloaded.Frequency("gopher"))
	assert.True(t, reloaded.IsValidWord("gopher"))

	other, err := NewAutoDictionary(ctx, st, "fr_FR", nil)
	require.NoError(t, err)
	assert.Zero(t, other.Size())
}
