package ime

import (
	"time"
	"unicode"

	"keyintent/internal/composer"
	"keyintent/internal/dictionary"
	"keyintent/internal/keyboard"
	"keyintent/internal/metrics"
	"keyintent/internal/pointer"
	"keyintent/internal/suggest"
)

var (
	_ pointer.Listener = (*keyHandler)(nil)
	_ pointer.UIProxy  = (*keyHandler)(nil)
)

// keyHandler turns committed keys into editing operations. It is only
// called with the engine lock held.
type keyHandler struct {
	e      *Engine
	word   *composer.Composer
	result suggest.Result

	shifted     bool
	capsLock    bool
	sentenceCap bool
	// wordCap is sentenceCap as it was when the word's first letter was
	// typed; deleting back to an empty word restores it.
	wordCap    bool
	previewing bool
}

func newKeyHandler(e *Engine) *keyHandler {
	return &keyHandler{e: e, word: composer.New()}
}

// reset prepares for a new session.
func (h *keyHandler) reset() {
	h.word.Reset()
	h.result = suggest.Result{}
	h.shifted = false
	h.capsLock = false
	h.sentenceCap = h.e.autoCap
	h.wordCap = h.sentenceCap
	h.previewing = false
}

func (h *keyHandler) OnPress(int)   {}
func (h *keyHandler) OnRelease(int) {}
func (h *keyHandler) OnCancel()     {}

func (h *keyHandler) OnKey(code int, codes []int, x, y int) {
	if h.e.session == nil {
		return
	}
	// The delete stepping a multi-tap cycle is not a keystroke.
	if code != keyboard.KeycodeDelete || codes != nil {
		h.e.session.keys++
		h.e.metrics.RecordKey()
	}

	switch {
	case code == keyboard.KeycodeShift:
		h.toggleShift()
	case code == keyboard.KeycodeDelete:
		h.delete(codes)
	case code < 0:
		h.e.display.KeyEvent(code, codes)
	case isWordCode(code, h.word.Size()):
		h.letter(code, codes)
	default:
		h.separator(code)
	}
}

func (h *keyHandler) OnText(text string) {
	if h.e.session == nil {
		return
	}
	h.commitTyped()
	h.e.display.Commit(text)
	h.shifted = false
}

// OnLongPress turns caps lock on when shift is held.
func (h *keyHandler) OnLongPress(keyIndex int) bool {
	key := h.e.layout.Key(keyIndex)
	if key == nil || key.Primary() != keyboard.KeycodeShift {
		return false
	}
	h.capsLock = true
	h.shifted = false
	return true
}

func (h *keyHandler) ShowPreview(index int, label string) {
	if index == keyboard.NotAKey {
		h.CancelPreview()
		return
	}
	h.previewing = true
	h.e.display.Preview(index, label)
}

func (h *keyHandler) CancelPreview() {
	if !h.previewing {
		return
	}
	h.previewing = false
	h.e.display.Preview(keyboard.NotAKey, "")
}

func (h *keyHandler) InvalidateKey(int) {}

// isWordCode reports whether code extends the word. An apostrophe only
// does so inside a word.
func isWordCode(code, size int) bool {
	r := rune(code)
	if unicode.IsLetter(r) {
		return true
	}
	return r == '\'' && size > 0
}

func (h *keyHandler) toggleShift() {
	if h.capsLock {
		h.capsLock = false
		h.shifted = false
		return
	}
	h.shifted = !h.shifted
}

func (h *keyHandler) letter(code int, codes []int) {
	r := rune(code)
	first := h.word.Size() == 0
	autoUpper := first && h.sentenceCap && !h.shifted && !h.capsLock
	if h.shifted || h.capsLock || autoUpper {
		r = unicode.ToUpper(r)
	}
	if first {
		h.wordCap = h.sentenceCap
		h.word.SetCapitalized(unicode.IsUpper(r))
		h.word.SetAutoCapitalized(autoUpper && unicode.IsUpper(r))
	}
	h.word.Add(int(r), codes)
	h.shifted = false
	h.sentenceCap = false
	h.updateSuggestions()
}

func (h *keyHandler) delete(codes []int) {
	if h.word.Size() == 0 {
		h.e.display.KeyEvent(keyboard.KeycodeDelete, codes)
		return
	}
	h.word.DeleteLast()
	if h.word.Size() == 0 {
		h.sentenceCap = h.wordCap
	}
	h.updateSuggestions()
}

// separator commits the word, auto-correcting it when allowed, and then
// the separator itself.
func (h *keyHandler) separator(code int) {
	if h.word.Size() > 0 {
		word, source := h.word.TypedWord(), metrics.SourceTyped
		if h.e.autoCorrectOn(h.word) {
			if d := h.result.Default(); d != "" {
				word, source = d, metrics.SourceCorrected
			}
		}
		h.commitWord(word, source, dictionary.FrequencyForTyped)
	}
	h.e.display.Commit(string(rune(code)))
	h.shifted = false

	switch code {
	case '.', '!', '?', keyboard.KeycodeEnter:
		h.sentenceCap = h.e.autoCap
	case keyboard.KeycodeSpace:
	default:
		h.sentenceCap = false
	}
}

// commitTyped commits the word in progress without correction.
func (h *keyHandler) commitTyped() {
	if h.word.Size() > 0 {
		h.commitWord(h.word.TypedWord(), metrics.SourceTyped, dictionary.FrequencyForTyped)
	}
}

// pick commits suggestion i and a space. Only the typed word, which is
// always first, is learned.
func (h *keyHandler) pick(i int) {
	word := h.result.Words[i]
	delta := 0
	if i == 0 {
		delta = dictionary.FrequencyForPicked
	}
	h.commitWord(word, metrics.SourcePicked, delta)
	h.e.display.Commit(" ")
	h.shifted = false
}

func (h *keyHandler) commitWord(word, source string, learnDelta int) {
	autoCapitalized := h.word.IsAutoCapitalized()
	typed := h.word.TypedWord()

	h.e.display.Commit(word)
	h.e.session.words++
	if source == metrics.SourceCorrected {
		h.e.session.corrections++
	}
	h.e.metrics.RecordWord(source)
	h.e.session.log.Debug("word committed", "word", word, "typed", typed, "source", source)

	if learnDelta > 0 {
		h.e.learn(word, learnDelta, autoCapitalized)
	}

	h.word.Reset()
	h.result = suggest.Result{}
	h.e.display.Suggestions(h.result)
}

func (h *keyHandler) updateSuggestions() {
	if h.word.Size() == 0 {
		h.result = suggest.Result{}
		h.e.display.Suggestions(h.result)
		return
	}
	start := time.Now()
	h.result = h.e.ranker.Query(h.word)
	h.e.metrics.RecordQuery(time.Since(start), h.result.CorrectionAvailable)
	h.e.display.Suggestions(h.result)
}
