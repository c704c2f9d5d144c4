// Package ime runs one input session of the soft keyboard.
//
// # Architecture Overview
//
// The Engine owns every piece of mutable input state and feeds it from a
// single loop:
//
//	TouchEvent ──► pointer.Group ──► Tracker (debounce, multi-tap, repeat)
//	                                    │
//	                                    ▼
//	                               keyHandler.OnKey
//	                                    │
//	          ┌─────────────────────────┼──────────────────────────┐
//	          ▼                         ▼                          ▼
//	      letters                   separators                 specials
//	  composer.Add ──► Ranker.Query   commit word (auto-correct)   Display.KeyEvent
//	          │                         │
//	          ▼                         ▼
//	  Display.Suggestions        Display.Commit ──► auto dictionary
//
// Timers scheduled by the trackers are routed through the engine so that a
// callback fired after StartSession, EndSession or SetLayout is dropped.
//
// # Session Model
//
// A session spans one focused text field. StartSession resets the composer
// and shift state; EndSession commits the word in progress as typed,
// flushes learned words and stores a summary row.
//
// # Concurrency
//
// HandleTouch and timer callbacks are serialized by the engine mutex, so a
// caller that runs its own loop may call HandleTouch directly. Run drives
// both touch events and a timer.Loop from one goroutine.
package ime
