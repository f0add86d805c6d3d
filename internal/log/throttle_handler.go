package log

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// DefaultThrottleWindow is how long a repeated message stays suppressed
// after being emitted. One line per message per window keeps a
// multi-hour crawl's log readable without hiding that the condition
// is still occurring.
const DefaultThrottleWindow = 10 * time.Second

// SuppressedKey is the attribute added to a record when earlier
// identical messages were dropped since the last emission.
const SuppressedKey = "suppressed"

// ThrottleHandler wraps an slog.Handler to rate-limit repeated messages.
// A record whose level and message match one emitted within the window
// is dropped; when the window expires, the next occurrence is emitted
// with a "suppressed" attribute counting the dropped records.
//
// Design decision: We use a handler wrapper rather than a custom logger
// because:
//  1. It integrates seamlessly with standard slog APIs
//  2. It works with any underlying handler (text, JSON, etc.)
//
// Throttling keys on level+message, not attributes: the per-marker
// messages we need to collapse differ only in their marker id attribute.
type ThrottleHandler struct {
	// handler is the underlying slog handler that receives surviving records.
	handler slog.Handler

	// state is shared across WithAttrs/WithGroup clones so derived
	// handlers throttle against the same history.
	state *throttleState
}

// throttleState tracks when each message was last emitted.
type throttleState struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	seen map[throttleKey]*messageHistory
}

// throttleKey identifies a message for throttling purposes.
type throttleKey struct {
	level   slog.Level
	message string
}

// messageHistory is the throttle record for one message.
type messageHistory struct {
	lastEmitted time.Time
	suppressed  int
}

// ThrottleOption configures a ThrottleHandler.
type ThrottleOption func(*throttleState)

// WithWindow sets the suppression window. Zero or negative disables
// throttling entirely.
func WithWindow(window time.Duration) ThrottleOption {
	return func(s *throttleState) {
		s.window = window
	}
}

// WithTimeSource replaces the wall clock, for tests.
func WithTimeSource(now func() time.Time) ThrottleOption {
	return func(s *throttleState) {
		s.now = now
	}
}

// NewThrottleHandler creates a ThrottleHandler wrapping the given handler.
// If handler is nil, the returned handler wraps slog.Default().Handler().
func NewThrottleHandler(handler slog.Handler, opts ...ThrottleOption) *ThrottleHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}

	state := &throttleState{
		window: DefaultThrottleWindow,
		now:    time.Now,
		seen:   make(map[throttleKey]*messageHistory),
	}
	for _, opt := range opts {
		opt(state)
	}

	return &ThrottleHandler{handler: handler, state: state}
}

// Enabled reports whether the handler handles records at the given level.
// It delegates to the underlying handler.
func (h *ThrottleHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle drops the record if an identical message was emitted within
// the window, otherwise passes it through, annotated with the number
// of records dropped since the last emission.
func (h *ThrottleHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.state.window <= 0 {
		return h.handler.Handle(ctx, r)
	}

	suppressed, drop := h.state.observe(throttleKey{level: r.Level, message: r.Message})
	if drop {
		return nil
	}

	if suppressed > 0 {
		r = r.Clone()
		r.AddAttrs(slog.Int(SuppressedKey, suppressed))
	}
	return h.handler.Handle(ctx, r)
}

// WithAttrs returns a new handler with the given attributes added.
// The clone shares throttle history with its parent.
func (h *ThrottleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ThrottleHandler{handler: h.handler.WithAttrs(attrs), state: h.state}
}

// WithGroup returns a new handler with the given group name.
func (h *ThrottleHandler) WithGroup(name string) slog.Handler {
	return &ThrottleHandler{handler: h.handler.WithGroup(name), state: h.state}
}

// observe records one occurrence of key. It reports how many earlier
// occurrences were suppressed and whether this one should be dropped.
func (s *throttleState) observe(key throttleKey) (suppressed int, drop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	hist, ok := s.seen[key]
	if !ok {
		s.seen[key] = &messageHistory{lastEmitted: now}
		return 0, false
	}

	if now.Sub(hist.lastEmitted) < s.window {
		hist.suppressed++
		return 0, true
	}

	suppressed = hist.suppressed
	hist.suppressed = 0
	hist.lastEmitted = now
	return suppressed, false
}

// NewLogger creates a throttled text logger writing to w.
//
// Parameters:
//   - w: The io.Writer to write log output to (typically os.Stderr)
//   - verbose: If true, sets log level to Debug; otherwise Warn
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	textHandler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(NewThrottleHandler(textHandler))
}
