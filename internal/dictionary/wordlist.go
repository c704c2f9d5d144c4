package dictionary

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFrequency is used for word-list lines without a frequency.
const DefaultFrequency = 128

// Entry is one word-list line. A zero Freq keeps the word valid without
// ever suggesting it.
type Entry struct {
	Word string `json:"word" yaml:"word"`
	Freq int    `json:"freq" yaml:"freq"`
}

// wordListFile is the structured word-list layout shared by YAML and JSON.
type wordListFile struct {
	Locale string  `json:"locale,omitempty" yaml:"locale,omitempty"`
	Words  []Entry `json:"words" yaml:"words"`
}

// Format selects a word-list encoding.
type Format int

const (
	// FormatText is one "word [freq]" pair per line; '#' starts a comment.
	FormatText Format = iota
	FormatYAML
	FormatJSON
)

// FormatForPath picks the format from the file extension.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	default:
		return FormatText
	}
}

// ReadWordList decodes entries from r.
func ReadWordList(r io.Reader, format Format) ([]Entry, error) {
	switch format {
	case FormatYAML:
		var f wordListFile
		if err := yaml.NewDecoder(r).Decode(&f); err != nil {
			if err == io.EOF {
				return nil, nil
			}
			return nil, fmt.Errorf("decode yaml word list: %w", err)
		}
		return normalize(f.Words), nil
	case FormatJSON:
		var f wordListFile
		if err := json.NewDecoder(r).Decode(&f); err != nil {
			return nil, fmt.Errorf("decode json word list: %w", err)
		}
		return normalize(f.Words), nil
	default:
		return readText(r)
	}
}

func normalize(entries []Entry) []Entry {
	out := entries[:0]
	for _, e := range entries {
		e.Word = strings.TrimSpace(e.Word)
		if e.Word == "" {
			continue
		}
		out = append(out, e)
	}
	return out
}

func readText(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		switch len(fields) {
		case 0:
			continue
		case 1:
			entries = append(entries, Entry{Word: fields[0], Freq: DefaultFrequency})
		case 2:
			freq, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid frequency %q: %w", lineNo, fields[1], err)
			}
			entries = append(entries, Entry{Word: fields[0], Freq: freq})
		default:
			return nil, fmt.Errorf("line %d: expected \"word [freq]\", got %d fields", lineNo, len(fields))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read word list: %w", err)
	}
	return entries, nil
}

// LoadWordList reads the word list at path into a new trie.
func LoadWordList(path string) (*Trie, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open word list: %w", err)
	}
	defer f.Close()

	entries, err := ReadWordList(f, FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t := NewTrie()
	for _, e := range entries {
		t.Add(e.Word, e.Freq)
	}
	return t, nil
}
