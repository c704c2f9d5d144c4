package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"keyintent/internal/keyboard"
	"keyintent/internal/suggest"
)

// textDisplay collects engine output. With a non-nil trace writer every
// callback is also printed as it happens.
type textDisplay struct {
	mu        sync.Mutex
	committed strings.Builder
	result    suggest.Result
	keys      []int
	trace     io.Writer
	live      io.Writer
}

func (d *textDisplay) KeyEvent(code int, codes []int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys = append(d.keys, code)
	if code == keyboard.KeycodeDelete {
		s := []rune(d.committed.String())
		if len(s) > 0 {
			d.committed.Reset()
			d.committed.WriteString(string(s[:len(s)-1]))
		}
		if d.live != nil {
			fmt.Fprint(d.live, "\b \b")
		}
	}
	d.printf("key %s codes=%v\n", keyName(code), codes)
}

func (d *textDisplay) Suggestions(r suggest.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r.Words = append([]string(nil), r.Words...)
	d.result = r
	if len(r.Words) > 0 {
		d.printf("suggestions %s\n", formatWords(r))
	}
}

func (d *textDisplay) Commit(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.committed.WriteString(text)
	if d.live != nil {
		fmt.Fprint(d.live, text)
	}
	d.printf("commit %q\n", text)
}

func (d *textDisplay) Preview(index int, label string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if index == keyboard.NotAKey {
		d.printf("preview hidden\n")
		return
	}
	d.printf("preview key=%d %q\n", index, label)
}

func (d *textDisplay) printf(format string, args ...any) {
	if d.trace != nil {
		fmt.Fprintf(d.trace, format, args...)
	}
}

// Text returns everything committed so far.
func (d *textDisplay) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.committed.String()
}

// Result returns the last suggestion list.
func (d *textDisplay) Result() suggest.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.result
}

// formatWords renders r as "typed | best* | ...", starring the default.
func formatWords(r suggest.Result) string {
	def := r.Default()
	parts := make([]string, len(r.Words))
	for i, w := range r.Words {
		parts[i] = w
		if i > 0 && w == def {
			parts[i] += "*"
		}
	}
	return strings.Join(parts, " | ")
}

func keyName(code int) string {
	switch code {
	case keyboard.KeycodeShift:
		return "shift"
	case keyboard.KeycodeModeChange:
		return "mode"
	case keyboard.KeycodeCancel:
		return "cancel"
	case keyboard.KeycodeDone:
		return "done"
	case keyboard.KeycodeDelete:
		return "delete"
	case keyboard.KeycodeAlt:
		return "alt"
	case keyboard.KeycodeEnter:
		return "enter"
	case keyboard.KeycodeSpace:
		return "space"
	}
	if code > 0 {
		return fmt.Sprintf("%q", rune(code))
	}
	return fmt.Sprintf("%d", code)
}
