// keyintent - touch keyboard intent resolution
//
//	keyintent replay <trace.json>   Replay a recorded touch trace
//	keyintent suggest <word>        Show suggestions for a typed word
//	keyintent synth <text>          Write a trace that types text
//	keyintent layout                Print the key table
//	keyintent run                   Read live touches from stdin
//	keyintent sessions              List recent input sessions
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"keyintent/internal/config"
	"keyintent/internal/ime"
	"keyintent/internal/keyboard"
	"keyintent/internal/store"
	"keyintent/internal/suggest"
	"keyintent/internal/timer"
	"keyintent/internal/trace"
)

// replayTail lets timers armed by the last sample fire.
const replayTail = time.Second

var configPath string

func main() {
	global := flag.NewFlagSet("keyintent", flag.ExitOnError)
	global.StringVar(&configPath, "config", "", "configuration file")
	global.Usage = usage
	global.Parse(os.Args[1:])

	args := global.Args()
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "replay":
		cmdReplay(rest)
	case "suggest":
		cmdSuggest(rest)
	case "synth":
		cmdSynth(rest)
	case "layout":
		cmdLayout(rest)
	case "run":
		cmdRun(rest)
	case "sessions":
		cmdSessions(rest)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`keyintent - Touch Keyboard Intent Resolution

USAGE:
    keyintent [-config file] <command> [options]

COMMANDS:
    replay <trace.json>   Replay a recorded touch trace and print the result
    suggest <word>        Type a word on the keyboard and show suggestions
    synth <text>          Write a touch trace that types text
    layout                Print the key table of the configured layout
    run                   Read newline-delimited touch events from stdin
    sessions              List recent input sessions
    help                  Show this help message

TRACE EVENTS:
    {"pointer": 0, "action": "down", "x": 288, "y": 90, "t_ms": 100}

    action is one of down, move, up or cancel. In run mode t_ms is ignored
    and samples are stamped on arrival.

CONFIGURATION:
    keyintent reads keyintent.toml (or .json, .yaml) from the platform
    config directory unless -config names a file. KEYINTENT_* environment
    variables override file values. run reloads the file when it changes.`)
}

func mustConfig() *config.Config {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fatal("load config: %v", err)
	}
	return cfg
}

func cmdReplay(args []string) {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	verbose := fs.Bool("v", false, "print every display callback")
	persist := fs.Bool("learn", false, "store learned words and the session")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: keyintent replay [-v] [-learn] <trace.json>")
		os.Exit(1)
	}

	tr, err := trace.Load(fs.Arg(0))
	if err != nil {
		fatal("%v", err)
	}
	events, err := tr.TouchEvents()
	if err != nil {
		fatal("%v", err)
	}

	cfg := mustConfig()
	name, width, height := cfg.Keyboard.Layout, cfg.Keyboard.Width, cfg.Keyboard.Height
	if tr.Layout != nil {
		name = tr.Layout.Name
		if tr.Layout.Width > 0 {
			width = tr.Layout.Width
		}
		if tr.Layout.Height > 0 {
			height = tr.Layout.Height
		}
	}
	layout, err := buildLayout(name, width, height)
	if err != nil {
		fatal("%v", err)
	}

	display := &textDisplay{}
	if *verbose {
		display.trace = os.Stdout
	}
	summary, err := replay(cfg, *persist, layout, events, display)
	if err != nil {
		fatal("%v", err)
	}

	fmt.Printf("Committed:   %q\n", display.Text())
	if r := display.Result(); len(r.Words) > 0 {
		fmt.Printf("Composing:   %s\n", r.Words[0])
		fmt.Printf("Suggestions: %s\n", formatWords(r))
	}
	fmt.Printf("Keys: %d  Words: %d  Corrections: %d\n",
		summary.KeysCommitted, summary.WordsCommitted, summary.Corrections)
}

// replay runs events through a fresh engine on a virtual clock. display
// is left holding the text and suggestions from before the session ended,
// so the word in progress is reported as composing.
func replay(cfg *config.Config, persist bool, layout *keyboard.Layout, events []ime.TouchEvent, display *textDisplay) (*ime.Summary, error) {
	ctx := context.Background()
	a, err := newApp(ctx, cfg, persist)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	clock := timer.NewManual()
	engine, err := a.engine(layout, clock, display)
	if err != nil {
		return nil, err
	}
	if _, err := engine.StartSession(ctx); err != nil {
		return nil, err
	}
	if err := engine.Replay(clock, events, replayTail); err != nil {
		return nil, err
	}

	composing, text := engine.Suggestions(), display.Text()
	summary, err := engine.EndSession(ctx)
	if summary == nil {
		return nil, err
	}
	if err != nil {
		a.log.Warn("end session", "error", err)
	}
	display.mu.Lock()
	display.result = composing
	display.committed.Reset()
	display.committed.WriteString(text)
	display.mu.Unlock()
	return summary, nil
}

func cmdSuggest(args []string) {
	fs := flag.NewFlagSet("suggest", flag.ExitOnError)
	verbose := fs.Bool("v", false, "print every display callback")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: keyintent suggest [-v] <word>")
		os.Exit(1)
	}
	word := fs.Arg(0)

	cfg := mustConfig()
	cfg.Suggest.AutoCapitalize = false
	layout, err := configLayout(cfg)
	if err != nil {
		fatal("%v", err)
	}
	events, err := synthesize(layout, word, cfg.PointerOptions())
	if err != nil {
		fatal("%v", err)
	}

	display := &textDisplay{}
	if *verbose {
		display.trace = os.Stdout
	}
	if _, err := replay(cfg, false, layout, events, display); err != nil {
		fatal("%v", err)
	}

	r := display.Result()
	if len(r.Words) == 0 {
		fmt.Println("No suggestions")
		return
	}
	fmt.Printf("Typed:        %s\n", r.Words[0])
	fmt.Printf("Valid:        %t\n", r.TypedWordValid)
	fmt.Printf("Correction:   %t\n", r.CorrectionAvailable)
	if def := r.Default(); def != "" {
		fmt.Printf("Auto-correct: %s\n", def)
	}
	fmt.Println()
	for i, w := range r.Words {
		fmt.Printf("  %2d. %s\n", i, w)
	}
}

func cmdSynth(args []string) {
	fs := flag.NewFlagSet("synth", flag.ExitOnError)
	out := fs.String("o", "", "output file (default stdout)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: keyintent synth [-o out.json] <text>")
		os.Exit(1)
	}
	text := strings.Join(fs.Args(), " ")

	cfg := mustConfig()
	layout, err := configLayout(cfg)
	if err != nil {
		fatal("%v", err)
	}
	events, err := synthesize(layout, text, cfg.PointerOptions())
	if err != nil {
		fatal("%v", err)
	}

	name := cfg.Keyboard.Layout
	if name == "" {
		name = "qwerty"
	}
	rec := trace.NewRecorder(&trace.Layout{
		Name:   name,
		Width:  layout.Width(),
		Height: layout.Height(),
	}, fmt.Sprintf("types %q", text))
	for _, ev := range events {
		rec.Record(ev)
	}

	if *out == "" {
		if err := trace.Encode(os.Stdout, rec.Trace()); err != nil {
			fatal("%v", err)
		}
		return
	}
	if err := trace.Save(*out, rec.Trace()); err != nil {
		fatal("%v", err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %d events to %s\n", rec.Len(), *out)
}

func cmdLayout(args []string) {
	fs := flag.NewFlagSet("layout", flag.ExitOnError)
	name := fs.String("name", "", "layout name (default from config)")
	fs.Parse(args)

	cfg := mustConfig()
	if *name != "" {
		cfg.Keyboard.Layout = *name
	}
	layout, err := configLayout(cfg)
	if err != nil {
		fatal("%v", err)
	}

	fmt.Printf("Layout %s %dx%d, proximity threshold %d\n\n",
		cfg.Keyboard.Layout, layout.Width(), layout.Height(), layout.ProximityThreshold())

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tLABEL\tCODES\tX\tY\tW\tH\tFLAGS")
	for i, k := range layout.Keys() {
		codes := make([]string, len(k.Codes))
		for j, c := range k.Codes {
			codes[j] = keyName(c)
		}
		var flags []string
		if k.Repeatable {
			flags = append(flags, "repeat")
		}
		if k.Modifier {
			flags = append(flags, "modifier")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			i, k.Label, strings.Join(codes, " "), k.X, k.Y, k.Width, k.Height, strings.Join(flags, ","))
	}
	w.Flush()
}

func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	metricsAddr := fs.String("metrics", "", "serve Prometheus metrics on this address")
	verbose := fs.Bool("v", false, "print every display callback to stderr")
	fs.Parse(args)

	cfg := mustConfig()
	if *metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.ListenAddr = *metricsAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		fatal("%v", err)
	}
	defer a.Close()

	layout, err := configLayout(cfg)
	if err != nil {
		fatal("%v", err)
	}
	display := &textDisplay{live: os.Stdout}
	if *verbose {
		display.trace = os.Stderr
	}
	loop := timer.NewLoop(64)
	defer loop.Stop()
	engine, err := a.engine(layout, loop, display)
	if err != nil {
		fatal("%v", err)
	}

	if a.metrics != nil && cfg.Metrics.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.metrics.Handler())
		srv := &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("metrics server", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		a.log.Info("serving metrics", "addr", cfg.Metrics.ListenAddr)
	}

	if path := configFile(); path != "" {
		loader := config.NewLoader(path)
		if _, err := loader.Load(); err != nil {
			fatal("load config: %v", err)
		}
		loader.OnChange(func(next *config.Config) {
			applyConfig(a, engine, cfg, next)
		})
		if err := loader.Watch(); err != nil {
			a.log.Warn("config watch disabled", "error", err)
		} else {
			defer loader.Close()
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case err := <-loader.Errors():
						a.log.Warn("config reload rejected", "error", err)
						if a.metrics != nil {
							a.metrics.RecordConfigReload(err)
						}
					}
				}
			}()
		}
	}

	id, err := engine.StartSession(ctx)
	if err != nil {
		fatal("%v", err)
	}
	a.log.Info("reading touch events from stdin", "session_id", id)

	events := make(chan ime.TouchEvent)
	go readEvents(ctx, a, events)

	if err := engine.Run(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
		a.log.Error("engine stopped", "error", err)
	}

	summary, err := engine.EndSession(context.Background())
	if err != nil {
		a.log.Warn("end session", "error", err)
	}
	if summary != nil {
		fmt.Fprintf(os.Stderr, "\nSession %s: %d keys, %d words, %d corrections in %s\n",
			summary.ID, summary.KeysCommitted, summary.WordsCommitted, summary.Corrections,
			summary.Duration().Round(time.Millisecond))
	}
}

func configFile() string {
	if configPath != "" {
		return configPath
	}
	return config.FindConfigFile()
}

// applyConfig pushes a reloaded configuration into a running engine.
// Layout changes rebuild the keyboard; everything else is reconfigured in
// place.
func applyConfig(a *app, engine *ime.Engine, current, next *config.Config) {
	opts := append([]suggest.Option{suggest.WithAutoText(nil)}, next.RankerOptions()...)
	engine.Reconfigure(next.Suggest.AutoCorrect, opts...)

	k, n := current.Keyboard, next.Keyboard
	if k.Layout != n.Layout || k.Width != n.Width || k.Height != n.Height {
		layout, err := configLayout(next)
		if err != nil {
			a.log.Warn("layout unchanged", "error", err)
			if a.metrics != nil {
				a.metrics.RecordConfigReload(err)
			}
			return
		}
		engine.SetLayout(layout)
		current.Keyboard.Layout, current.Keyboard.Width, current.Keyboard.Height = n.Layout, n.Width, n.Height
	}
	if k.HysteresisPx != n.HysteresisPx || k.MultiTapIntervalMs != n.MultiTapIntervalMs ||
		k.RepeatStartDelayMs != n.RepeatStartDelayMs || k.LongPressTimeoutMs != n.LongPressTimeoutMs {
		a.log.Warn("pointer timing changes apply to the next run")
	}
	a.log.Info("config reloaded")
	if a.metrics != nil {
		a.metrics.RecordConfigReload(nil)
	}
}

// readEvents decodes one trace event per line until stdin closes or ctx
// is done. Malformed lines are logged and skipped.
func readEvents(ctx context.Context, a *app, out chan<- ime.TouchEvent) {
	defer close(out)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var ev trace.Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			a.log.Warn("skip malformed event", "error", err)
			continue
		}
		touch, err := ev.Touch()
		if err != nil {
			a.log.Warn("skip event", "error", err)
			continue
		}
		touch.Time = 0

		select {
		case out <- touch:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		a.log.Error("read stdin", "error", err)
	}
}

func cmdSessions(args []string) {
	fs := flag.NewFlagSet("sessions", flag.ExitOnError)
	limit := fs.Int("n", 10, "number of sessions")
	fs.Parse(args)

	cfg := mustConfig()
	if cfg.Dictionary.StorePath == "" {
		fatal("dictionary.store_path is not set")
	}
	s, err := store.Open(cfg.Dictionary.StorePath)
	if err != nil {
		fatal("%v", err)
	}
	defer s.Close()

	records, err := s.RecentSessions(context.Background(), *limit)
	if err != nil {
		fatal("%v", err)
	}
	if len(records) == 0 {
		fmt.Println("No sessions recorded")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tDURATION\tLOCALE\tKEYS\tWORDS\tCORRECTIONS\tID")
	for _, r := range records {
		started := time.Unix(0, r.StartedNs)
		duration := time.Duration(r.EndedNs - r.StartedNs).Round(time.Second)
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			started.Format("2006-01-02 15:04:05"), duration, r.Locale,
			r.KeysCommitted, r.WordsCommitted, r.Corrections, r.ID)
	}
	w.Flush()
}
