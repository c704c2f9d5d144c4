package ime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"keyintent/internal/composer"
	"keyintent/internal/dictionary"
	"keyintent/internal/keyboard"
	"keyintent/internal/logging"
	"keyintent/internal/metrics"
	"keyintent/internal/pointer"
	"keyintent/internal/proximity"
	"keyintent/internal/store"
	"keyintent/internal/suggest"
	"keyintent/internal/timer"
)

var (
	ErrNoSession     = errors.New("no active session")
	ErrSessionActive = errors.New("session already active; call EndSession first")
	ErrNoSuggestion  = errors.New("no such suggestion")
)

// Action is the kind of a touch event.
type Action int

const (
	ActionDown Action = iota
	ActionMove
	ActionUp
	ActionCancel
)

func (a Action) String() string {
	switch a {
	case ActionDown:
		return "down"
	case ActionMove:
		return "move"
	case ActionUp:
		return "up"
	case ActionCancel:
		return "cancel"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// ParseAction parses the name of an action.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(s) {
	case "down":
		return ActionDown, nil
	case "move":
		return ActionMove, nil
	case "up":
		return ActionUp, nil
	case "cancel":
		return ActionCancel, nil
	default:
		return 0, fmt.Errorf("unknown touch action %q", s)
	}
}

// TouchEvent is one pointer sample.
type TouchEvent struct {
	Pointer int
	Action  Action
	X, Y    int

	// Time is the monotonic time of the sample on the scheduler's clock.
	// Zero means the scheduler's current time.
	Time time.Duration
}

// Display receives everything the engine produces.
type Display interface {
	// KeyEvent delivers a key the engine did not consume, such as a delete
	// with nothing composed or a mode change.
	KeyEvent(code int, codes []int)
	// Suggestions delivers the ranked list for the word being composed. An
	// empty result clears the strip.
	Suggestions(r suggest.Result)
	// Commit delivers finalized text.
	Commit(text string)
	// Preview shows label over key index; keyboard.NotAKey hides it.
	Preview(index int, label string)
}

type nopDisplay struct{}

func (nopDisplay) KeyEvent(int, []int)         {}
func (nopDisplay) Suggestions(suggest.Result) {}
func (nopDisplay) Commit(string)               {}
func (nopDisplay) Preview(int, string)         {}

// SessionStore persists session summaries. *store.Store implements it.
type SessionStore interface {
	InsertSession(ctx context.Context, r *store.SessionRecord) error
}

// Options configures an Engine. Layout, Ranker and Scheduler are required.
type Options struct {
	Layout              *keyboard.Layout
	Pointer             pointer.Options
	ProximityCorrection bool

	Ranker *suggest.Ranker
	// Auto learns committed words. Nil disables learning.
	Auto *dictionary.AutoDictionary

	Scheduler timer.Scheduler
	Display   Display
	Sessions  SessionStore
	Logger    *logging.Logger
	Metrics   *metrics.Metrics

	// AutoCorrect replaces the typed word with the default suggestion when a
	// separator is typed.
	AutoCorrect bool
	// RequireMainDictionary turns auto-correction off while the main
	// dictionary is too small to trust.
	RequireMainDictionary bool
	// AutoCapitalize shifts the first letter of each sentence.
	AutoCapitalize bool

	Locale string
}

// Engine runs input sessions over one keyboard. It is safe to call its
// methods from several goroutines, but events must arrive in order.
type Engine struct {
	mu  sync.Mutex
	gen timer.Generation

	sched    timer.Scheduler
	resolver *proximity.Resolver
	layout   *keyboard.Layout
	group    *pointer.Group
	input    *keyHandler

	ranker   *suggest.Ranker
	auto     *dictionary.AutoDictionary
	sessions SessionStore
	display  Display
	metrics  *metrics.Metrics
	log      *logging.Logger

	autoCorrect bool
	requireMain bool
	autoCap     bool
	locale      string

	session *session
}

type session struct {
	id      string
	started time.Time
	log     *logging.Logger

	keys        int
	words       int
	corrections int
}

// NewEngine builds an engine with no active session.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Layout == nil {
		return nil, errors.New("ime: layout is required")
	}
	if opts.Ranker == nil {
		return nil, errors.New("ime: ranker is required")
	}
	if opts.Scheduler == nil {
		return nil, errors.New("ime: scheduler is required")
	}
	if opts.Display == nil {
		opts.Display = nopDisplay{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Pointer.Hysteresis < 1 {
		opts.Pointer = pointer.DefaultOptions()
	}

	e := &Engine{
		sched:       opts.Scheduler,
		resolver:    proximity.NewResolver(),
		layout:      opts.Layout,
		ranker:      opts.Ranker,
		auto:        opts.Auto,
		sessions:    opts.Sessions,
		display:     opts.Display,
		metrics:     opts.Metrics,
		log:         opts.Logger.WithComponent("ime"),
		autoCorrect: opts.AutoCorrect,
		requireMain: opts.RequireMainDictionary,
		autoCap:     opts.AutoCapitalize,
		locale:      opts.Locale,
	}
	e.resolver.SetLayout(opts.Layout)
	e.resolver.SetProximityCorrection(opts.ProximityCorrection)
	e.input = newKeyHandler(e)

	sched := guardedScheduler{e: e}
	pointerOpts := opts.Pointer
	e.group = pointer.NewGroup(func(id int) *pointer.Tracker {
		t := pointer.NewTracker(id, e.resolver, sched, e.input, e.input, pointerOpts)
		if e.metrics != nil {
			t.SetObserver(e.metrics)
		}
		return t
	})
	return e, nil
}

// guardedScheduler runs tracker timers under the engine lock and drops
// those scheduled before the last generation bump.
type guardedScheduler struct {
	e *Engine
}

func (s guardedScheduler) Schedule(delay time.Duration, fn func()) timer.Handle {
	tok := s.e.gen.Token()
	return s.e.sched.Schedule(delay, func() {
		s.e.mu.Lock()
		defer s.e.mu.Unlock()
		if !s.e.gen.Valid(tok) || s.e.session == nil {
			return
		}
		fn()
	})
}

func (s guardedScheduler) Now() time.Duration { return s.e.sched.Now() }

// StartSession begins a session and returns its ID.
func (e *Engine) StartSession(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil {
		return "", ErrSessionActive
	}

	id := uuid.NewString()
	e.gen.Bump()
	e.group.CancelAll()
	e.input.reset()

	e.session = &session{
		id:      id,
		started: time.Now(),
		log:     e.log.WithSession(id),
	}
	e.metrics.SessionStarted()
	e.session.log.Info("session started",
		"layout_keys", len(e.layout.Keys()),
		"correction_mode", e.ranker.CorrectionMode().String(),
	)
	return id, nil
}

// Summary describes a finished session.
type Summary struct {
	ID             string
	Locale         string
	Started        time.Time
	Ended          time.Time
	KeysCommitted  int
	WordsCommitted int
	Corrections    int
}

// Duration returns how long the session lasted.
func (s *Summary) Duration() time.Duration { return s.Ended.Sub(s.Started) }

// EndSession commits the word in progress as typed, flushes learned words
// and records the session. The session is over even when an error is
// returned alongside the summary.
func (e *Engine) EndSession(ctx context.Context) (*Summary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil, ErrNoSession
	}

	e.input.commitTyped()
	e.gen.Bump()
	e.group.CancelAll()

	s := e.session
	e.session = nil
	e.metrics.SessionEnded()

	sum := &Summary{
		ID:             s.id,
		Locale:         e.locale,
		Started:        s.started,
		Ended:          time.Now(),
		KeysCommitted:  s.keys,
		WordsCommitted: s.words,
		Corrections:    s.corrections,
	}

	var errs []error
	if e.auto != nil {
		if err := e.auto.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if e.sessions != nil {
		rec := &store.SessionRecord{
			ID:             sum.ID,
			Locale:         sum.Locale,
			StartedNs:      sum.Started.UnixNano(),
			EndedNs:        sum.Ended.UnixNano(),
			KeysCommitted:  sum.KeysCommitted,
			WordsCommitted: sum.WordsCommitted,
			Corrections:    sum.Corrections,
		}
		if err := e.sessions.InsertSession(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("record session: %w", err))
		}
	}

	s.log.Info("session ended",
		"duration", sum.Duration().String(),
		"keys", sum.KeysCommitted,
		"words", sum.WordsCommitted,
		"corrections", sum.Corrections,
	)
	if err := errors.Join(errs...); err != nil {
		s.log.Error("session cleanup failed", "error", err)
		return sum, err
	}
	return sum, nil
}

// HasActiveSession reports whether a session is running.
func (e *Engine) HasActiveSession() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session != nil
}

// SessionInfo contains read-only session information.
type SessionInfo struct {
	ID             string
	Started        time.Time
	Composing      string
	Suggestions    []string
	Shifted        bool
	CapsLock       bool
	KeysCommitted  int
	WordsCommitted int
	Corrections    int
}

// SessionInfo returns a copy of the current session state, or nil.
func (e *Engine) SessionInfo() *SessionInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil
	}
	return &SessionInfo{
		ID:             e.session.id,
		Started:        e.session.started,
		Composing:      e.input.word.TypedWord(),
		Suggestions:    append([]string(nil), e.input.result.Words...),
		Shifted:        e.input.shifted,
		CapsLock:       e.input.capsLock,
		KeysCommitted:  e.session.keys,
		WordsCommitted: e.session.words,
		Corrections:    e.session.corrections,
	}
}

// Suggestions returns the last ranked result for the word in progress.
func (e *Engine) Suggestions() suggest.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.input.result
	r.Words = append([]string(nil), r.Words...)
	return r
}

// HandleTouch feeds one pointer sample to the keyboard.
func (e *Engine) HandleTouch(ev TouchEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return ErrNoSession
	}

	at := ev.Time
	if at == 0 {
		at = e.sched.Now()
	}

	switch ev.Action {
	case ActionDown:
		e.group.Down(ev.Pointer, ev.X, ev.Y, at)
	case ActionMove:
		e.group.Move(ev.Pointer, ev.X, ev.Y, at)
	case ActionUp:
		e.group.Up(ev.Pointer, ev.X, ev.Y, at)
	case ActionCancel:
		e.group.Cancel(ev.Pointer)
	default:
		return fmt.Errorf("ime: unknown touch action %d", int(ev.Action))
	}
	return nil
}

// taskSource is implemented by schedulers that hand fired timers back to
// the caller's loop, such as timer.Loop.
type taskSource interface {
	Tasks() <-chan func()
}

// Run handles events and fired timers until ctx is done or events is
// closed.
func (e *Engine) Run(ctx context.Context, events <-chan TouchEvent) error {
	var tasks <-chan func()
	if ts, ok := e.sched.(taskSource); ok {
		tasks = ts.Tasks()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := e.HandleTouch(ev); err != nil {
				return err
			}
		case fn := <-tasks:
			fn()
		}
	}
}

// Replay feeds recorded events on a manual clock, firing timers that fall
// due between samples. After the last event the clock advances by tail so
// trailing timers can run.
func (e *Engine) Replay(clock *timer.Manual, events []TouchEvent, tail time.Duration) error {
	for i, ev := range events {
		clock.Set(ev.Time)
		if err := e.HandleTouch(ev); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
	}
	if tail > 0 {
		clock.Advance(tail)
	}
	return nil
}

// PickSuggestion commits suggestion i of the current result followed by a
// space.
func (e *Engine) PickSuggestion(i int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return ErrNoSession
	}
	if i < 0 || i >= len(e.input.result.Words) {
		return fmt.Errorf("%w: index %d of %d", ErrNoSuggestion, i, len(e.input.result.Words))
	}
	e.input.pick(i)
	return nil
}

// SetLayout switches keyboards. Touches in progress are abandoned and
// pending timers dropped; the word in progress is kept.
func (e *Engine) SetLayout(l *keyboard.Layout) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.gen.Bump()
	e.layout = l
	e.resolver.SetLayout(l)
	e.group.SetLayout()
	e.log.Info("layout changed", "keys", len(l.Keys()), "width", l.Width(), "height", l.Height())
}

// Layout returns the active keyboard.
func (e *Engine) Layout() *keyboard.Layout {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.layout
}

// Reconfigure applies ranker options and the auto-correct switch. The
// current suggestions are recomputed.
func (e *Engine) Reconfigure(autoCorrect bool, opts ...suggest.Option) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.autoCorrect = autoCorrect
	for _, opt := range opts {
		opt(e.ranker)
	}
	if e.session != nil {
		e.input.updateSuggestions()
	}
	e.log.Info("suggestions reconfigured",
		"auto_correct", autoCorrect,
		"correction_mode", e.ranker.CorrectionMode().String(),
		"max_suggestions", e.ranker.MaxSuggestions(),
	)
}

// autoCorrectOn reports whether separators may replace the typed word.
func (e *Engine) autoCorrectOn(c *composer.Composer) bool {
	if !e.autoCorrect || c.IsMostlyCaps() {
		return false
	}
	return !e.requireMain || e.ranker.HasMainDictionary()
}

// learn adds a committed word to the auto dictionary when it is not
// already known, or when the auto dictionary already vouches for it.
func (e *Engine) learn(word string, delta int, autoCapitalized bool) {
	if e.auto == nil || e.ranker.CorrectionMode() != suggest.CorrectionFull {
		return
	}
	if !e.auto.IsValidWord(word) &&
		(e.ranker.IsValidWord(word) || e.ranker.IsValidWord(strings.ToLower(word))) {
		return
	}

	promoted := e.auto.Learn(word, delta, autoCapitalized)
	e.metrics.RecordLearned()
	if promoted {
		e.sessionLog().Debug("word promoted to user dictionary", "word", word)
	}
}

func (e *Engine) sessionLog() *logging.Logger {
	if e.session != nil {
		return e.session.log
	}
	return e.log
}
