package monitor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// sessionContextKey carries the assistant session id through contexts so log
// lines produced inside an event loop can be grouped per session.
type sessionContextKey struct{}

// WithSessionID tags a context for log grouping.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sessionID)
}

// LogHandler implements slog.Handler, producing lines of the form
// [TIME] [LEVEL] [SESSION] Message k="v". The writer is shared across
// clones, so a single mutex serializes output.
type LogHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	opts   slog.HandlerOptions
	attrs  []slog.Attr
	groups []string
}

func NewLogHandler(w io.Writer, opts slog.HandlerOptions) *LogHandler {
	return &LogHandler{
		mu:   &sync.Mutex{},
		w:    w,
		opts: opts,
	}
}

func (h *LogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *LogHandler) Handle(ctx context.Context, r slog.Record) error {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(r.Time.Format("2006-01-02 15:04:05.000"))
	b.WriteString("] [")
	b.WriteString(r.Level.String())
	b.WriteByte(']')

	if ctx != nil {
		if id, ok := ctx.Value(sessionContextKey{}).(string); ok && id != "" {
			b.WriteString(" [")
			b.WriteString(id)
			b.WriteByte(']')
		}
	}

	b.WriteByte(' ')
	b.WriteString(r.Message)

	for _, a := range h.attrs {
		h.appendAttr(&b, a, "")
	}
	prefix := h.prefix()
	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&b, a, prefix)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	_, err := io.WriteString(h.w, b.String())
	h.mu.Unlock()
	return err
}

func (h *LogHandler) appendAttr(b *strings.Builder, a slog.Attr, prefix string) {
	val := a.Value.Resolve()
	if val.Kind() == slog.KindGroup {
		for _, ga := range val.Group() {
			h.appendAttr(b, ga, prefix+a.Key+".")
		}
		return
	}

	b.WriteByte(' ')
	b.WriteString(prefix)
	b.WriteString(a.Key)
	b.WriteByte('=')

	switch val.Kind() {
	case slog.KindString:
		b.WriteString(strconv.Quote(val.String()))
	case slog.KindTime:
		b.WriteString(val.Time().Format(time.RFC3339))
	case slog.KindDuration:
		b.WriteString(val.Duration().String())
	default:
		fmt.Fprintf(b, "%v", val.Any())
	}
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	qualified := append([]slog.Attr(nil), h.attrs...)
	prefix := h.prefix()
	for _, a := range attrs {
		a.Key = prefix + a.Key
		qualified = append(qualified, a)
	}
	clone.attrs = qualified
	return &clone
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func (h *LogHandler) prefix() string {
	if len(h.groups) == 0 {
		return ""
	}
	return strings.Join(h.groups, ".") + "."
}

// SetupSlog installs the global slog logger with the LogHandler.
func SetupSlog(levelStr string) {
	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := NewLogHandler(os.Stderr, slog.HandlerOptions{
		Level: level,
	})

	slog.SetDefault(slog.New(handler))
}

// PrintBanner prints the startup banner.
func PrintBanner() {
	banner := `
████████╗███████╗██╗     ███████╗ ██████╗ ██████╗ ██████╗ ███████╗██████╗
╚══██╔══╝██╔════╝██║     ██╔════╝██╔════╝██╔═══██╗██╔══██╗██╔════╝██╔══██╗
   ██║   █████╗  ██║     █████╗  ██║     ██║   ██║██║  ██║█████╗  ██████╔╝
   ██║   ██╔══╝  ██║     ██╔══╝  ██║     ██║   ██║██║  ██║██╔══╝  ██╔══██╗
   ██║   ███████╗███████╗███████╗╚██████╗╚██████╔╝██████╔╝███████╗██║  ██║
   ╚═╝   ╚══════╝╚══════╝╚══════╝ ╚═════╝ ╚═════╝ ╚═════╝ ╚══════╝╚═╝  ╚═╝
`
	fmt.Println(banner)
}
