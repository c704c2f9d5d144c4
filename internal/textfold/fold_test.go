package textfold

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRune(t *testing.T) {
	tests := []struct {
		in, want rune
	}{
		{'a', 'a'},
		{'A', 'a'},
		{'é', 'e'},
		{'É', 'e'},
		{'ñ', 'n'},
		{'ü', 'u'},
		{'\'', '\''},
		{'ß', 'ß'},
		{'Ж', 'ж'},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Rune(tt.in), "fold(%q)", tt.in)
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "cafe", String("Café"))
	assert.Equal(t, "naive", String("naïve"))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("Résumé", "resume"))
	assert.False(t, Equal("resume", "resumes"))
	assert.False(t, Equal("cat", "cot"))
}
