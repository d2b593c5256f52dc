package events

import (
	"fmt"
	"log/slog"

	jsoniter "github.com/json-iterator/go"

	"telecoder/pkg/markup"
	"telecoder/pkg/opencode"
	"telecoder/pkg/render"
	"telecoder/pkg/session"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Poster delivers transient formatted notices produced by event handlers.
// The bot implements it with send-then-auto-delete semantics so event noise
// never piles up in the chat.
type Poster interface {
	PostTransient(chatID int64, html string)
}

// Env is what a handler may touch: the owning user's session and the render
// coordinator for streaming parts.
type Env struct {
	Session  *session.Session
	Renderer *render.Coordinator
}

// HandlerFunc processes one event. A non-empty return value is posted to the
// user as a transient notice; empty means the event produced no output.
type HandlerFunc func(ev opencode.Event, env *Env) (string, error)

// UnknownPolicy selects the fallback for event types with no registered
// handler. This is deployment configuration, not per-event behavior.
type UnknownPolicy int

const (
	// DropUnknown silently discards unknown event kinds.
	DropUnknown UnknownPolicy = iota
	// FormatUnknown renders type + raw properties as a generic notice.
	FormatUnknown
)

// Dispatcher routes tagged events to per-kind handlers. One failing handler
// never terminates the subscription: errors are logged per event and the
// stream continues.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	policy   UnknownPolicy
	poster   Poster
	renderer *render.Coordinator
}

// NewDispatcher builds a dispatcher with the default handler table. The
// table is validated against the known event-type set at construction, so a
// typo in a registration is caught at startup rather than by silence at
// runtime.
func NewDispatcher(renderer *render.Coordinator, poster Poster, policy UnknownPolicy) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: defaultHandlers(),
		policy:   policy,
		poster:   poster,
		renderer: renderer,
	}

	for typ := range d.handlers {
		if !knownEventTypes[typ] {
			return nil, fmt.Errorf("handler registered for unknown event type %q", typ)
		}
	}
	return d, nil
}

// Process classifies and dispatches one event on behalf of a session. A
// handler panic is contained here: logged, the event dropped, the loop kept
// alive.
func (d *Dispatcher) Process(ev opencode.Event, sess *session.Session) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Event handler panicked", "type", ev.Type, "panic", r)
		}
	}()

	handler, ok := d.handlers[ev.Type]
	if !ok {
		d.handleUnknown(ev, sess)
		return
	}

	env := &Env{Session: sess, Renderer: d.renderer}
	result, err := handler(ev, env)
	if err != nil {
		slog.Error("Event handler failed", "type", ev.Type, "error", err)
		return
	}
	if result != "" && d.poster != nil {
		d.poster.PostTransient(sess.ChatID, result)
	}
}

func (d *Dispatcher) handleUnknown(ev opencode.Event, sess *session.Session) {
	switch d.policy {
	case FormatUnknown:
		props := string(ev.Properties)
		if props == "" {
			props = "{}"
		}
		notice := fmt.Sprintf("🔔 <b>Event:</b> %s\n<pre>%s</pre>",
			markup.EscapeHTML(ev.Type), markup.EscapeHTML(props))
		if d.poster != nil {
			d.poster.PostTransient(sess.ChatID, notice)
		}
	default:
		slog.Debug("Dropping unclassified event", "type", ev.Type)
	}
}
