// Package trace reads and writes recorded touch traces.
//
// A trace is a JSON document listing pointer samples with their time in
// milliseconds. Every document is checked against the embedded
// touch-trace-v1 JSON Schema before it is decoded, and sample times must
// never go backwards.
package trace

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"keyintent/internal/ime"
)

// Version is the trace format version written by Encode.
const Version = 1

const schemaURL = "touch-trace-v1.schema.json"

//go:embed touch-trace-v1.schema.json
var schemaData []byte

// ErrInvalid is wrapped by every error caused by the trace contents.
var ErrInvalid = errors.New("invalid touch trace")

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiled() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaData)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile(schemaURL)
	})
	return schema, schemaErr
}

// Layout names the keyboard a trace was recorded on.
type Layout struct {
	Name   string `json:"name"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Event is one recorded pointer sample.
type Event struct {
	Pointer int    `json:"pointer"`
	Action  string `json:"action"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	TimeMs  int64  `json:"t_ms"`
}

// Touch converts the sample to an engine event.
func (e Event) Touch() (ime.TouchEvent, error) {
	action, err := ime.ParseAction(e.Action)
	if err != nil {
		return ime.TouchEvent{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return ime.TouchEvent{
		Pointer: e.Pointer,
		Action:  action,
		X:       e.X,
		Y:       e.Y,
		Time:    time.Duration(e.TimeMs) * time.Millisecond,
	}, nil
}

// FromTouch converts an engine event to a sample, truncating its time to
// the millisecond.
func FromTouch(ev ime.TouchEvent) Event {
	return Event{
		Pointer: ev.Pointer,
		Action:  ev.Action.String(),
		X:       ev.X,
		Y:       ev.Y,
		TimeMs:  ev.Time.Milliseconds(),
	}
}

// Trace is a decoded touch trace.
type Trace struct {
	Version     int     `json:"version"`
	Description string  `json:"description,omitempty"`
	Layout      *Layout `json:"layout,omitempty"`
	Events      []Event `json:"events"`
}

// TouchEvents converts every sample.
func (t *Trace) TouchEvents() ([]ime.TouchEvent, error) {
	out := make([]ime.TouchEvent, 0, len(t.Events))
	for i, e := range t.Events {
		ev, err := e.Touch()
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

// Duration returns the time of the last sample.
func (t *Trace) Duration() time.Duration {
	if len(t.Events) == 0 {
		return 0
	}
	return time.Duration(t.Events[len(t.Events)-1].TimeMs) * time.Millisecond
}

// Validate checks a raw document against the schema.
func Validate(data []byte) error {
	s, err := compiled()
	if err != nil {
		return fmt.Errorf("compile trace schema: %w", err)
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := s.Validate(instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Decode reads, validates and decodes a trace.
func Decode(r io.Reader) (*Trace, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	if err := Validate(data); err != nil {
		return nil, err
	}

	var t Trace
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	for i := 1; i < len(t.Events); i++ {
		if t.Events[i].TimeMs < t.Events[i-1].TimeMs {
			return nil, fmt.Errorf("%w: event %d at %dms precedes event %d at %dms",
				ErrInvalid, i, t.Events[i].TimeMs, i-1, t.Events[i-1].TimeMs)
		}
	}
	return &t, nil
}

// Load decodes the trace file at path.
func Load(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()

	t, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// Encode writes t as indented JSON. The version is set to Version.
func Encode(w io.Writer, t *Trace) error {
	t.Version = Version
	if t.Events == nil {
		t.Events = []Event{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t); err != nil {
		return fmt.Errorf("encode trace: %w", err)
	}
	return nil
}

// Save writes t to path.
func Save(path string, t *Trace) error {
	var buf bytes.Buffer
	if err := Encode(&buf, t); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create trace directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write trace: %w", err)
	}
	return nil
}

// Recorder collects engine events into a trace.
type Recorder struct {
	mu    sync.Mutex
	trace Trace
}

// NewRecorder starts an empty trace for layout, which may be nil.
func NewRecorder(layout *Layout, description string) *Recorder {
	return &Recorder{trace: Trace{Version: Version, Layout: layout, Description: description}}
}

// Record appends ev.
func (r *Recorder) Record(ev ime.TouchEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace.Events = append(r.trace.Events, FromTouch(ev))
}

// Len returns the number of recorded samples.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trace.Events)
}

// Trace returns a copy of the recorded trace.
func (r *Recorder) Trace() *Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.trace
	t.Events = append([]Event(nil), r.trace.Events...)
	return &t
}
