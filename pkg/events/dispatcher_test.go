package events

import (
	"sync"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"

	"telecoder/pkg/opencode"
	"telecoder/pkg/render"
	"telecoder/pkg/session"
)

type recordingPoster struct {
	mu      sync.Mutex
	notices []string
}

func (p *recordingPoster) PostTransient(chatID int64, html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, html)
}

func (p *recordingPoster) all() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.notices...)
}

type nullTransport struct {
	mu    sync.Mutex
	sends []string
}

func (n *nullTransport) SendHTML(chatID int64, html string) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sends = append(n.sends, html)
	return len(n.sends), nil
}
func (n *nullTransport) EditHTML(chatID int64, messageID int, html string) error { return nil }
func (n *nullTransport) Delete(chatID int64, messageID int) error                { return nil }

func event(t *testing.T, typ, props string) opencode.Event {
	t.Helper()
	return opencode.Event{Type: typ, Properties: jsoniter.RawMessage(props)}
}

func testSession() *session.Session {
	return &session.Session{UserID: 1, SessionID: "ses_1", ChatID: 100}
}

func newTestDispatcher(t *testing.T, policy UnknownPolicy) (*Dispatcher, *recordingPoster, *nullTransport) {
	t.Helper()
	tr := &nullTransport{}
	renderer := render.NewCoordinator(tr, render.Options{Throttle: 10 * time.Millisecond})
	poster := &recordingPoster{}
	d, err := NewDispatcher(renderer, poster, policy)
	require.NoError(t, err)
	return d, poster, tr
}

func TestTextPartRoutesToRenderer(t *testing.T) {
	d, poster, tr := newTestDispatcher(t, DropUnknown)

	d.Process(event(t, "message.part.updated",
		`{"part":{"type":"text","text":"hello","sessionID":"ses_1"}}`), testSession())

	tr.mu.Lock()
	defer tr.mu.Unlock()
	require.Len(t, tr.sends, 1)
	require.Equal(t, "hello", tr.sends[0])
	require.Empty(t, poster.all())
}

func TestForeignSessionPartIgnored(t *testing.T) {
	d, _, tr := newTestDispatcher(t, DropUnknown)

	d.Process(event(t, "message.part.updated",
		`{"part":{"type":"text","text":"other","sessionID":"ses_other"}}`), testSession())

	tr.mu.Lock()
	defer tr.mu.Unlock()
	require.Empty(t, tr.sends)
}

func TestToolPartRendersToolName(t *testing.T) {
	d, _, tr := newTestDispatcher(t, DropUnknown)

	d.Process(event(t, "message.part.updated",
		`{"part":{"type":"tool","tool":"bash","sessionID":"ses_1"}}`), testSession())

	tr.mu.Lock()
	defer tr.mu.Unlock()
	require.Len(t, tr.sends, 1)
	require.Contains(t, tr.sends[0], "🔧 bash")
}

func TestFormattedNoticeEvents(t *testing.T) {
	cases := []struct {
		typ   string
		props string
		want  string
	}{
		{"permission.updated", `{"id":"perm_1","title":"Run command"}`, "🔐"},
		{"installation.update-available", `{"version":"1.2.3"}`, "🔔"},
		{"vcs.branch.updated", `{"branch":"main"}`, "🌿"},
		{"vcs.branch.updated", `{}`, "(unknown)"},
		{"file.watcher.updated", `{"event":"change","file":"a.go"}`, "📂"},
		{"server.instance.disposed", `{"directory":"/work"}`, "🗑️"},
		{"pty.deleted", `{"id":"pty_1"}`, "🗑️"},
		{"tui.prompt.append", `{"text":"ls"}`, "🖊️"},
		{"session.status", `{"status":{"type":"busy"}}`, "🟢"},
	}

	for _, tc := range cases {
		d, poster, _ := newTestDispatcher(t, DropUnknown)
		d.Process(event(t, tc.typ, tc.props), testSession())
		notices := poster.all()
		require.Len(t, notices, 1, "type %s", tc.typ)
		require.Contains(t, notices[0], tc.want, "type %s", tc.typ)
	}
}

func TestLifecycleEventsStaySilent(t *testing.T) {
	d, poster, tr := newTestDispatcher(t, DropUnknown)

	for _, typ := range []string{"session.created", "session.idle", "lsp.updated", "pty.created"} {
		d.Process(event(t, typ, `{}`), testSession())
	}
	require.Empty(t, poster.all())
	tr.mu.Lock()
	defer tr.mu.Unlock()
	require.Empty(t, tr.sends)
}

func TestUnknownEventDropPolicy(t *testing.T) {
	d, poster, _ := newTestDispatcher(t, DropUnknown)
	d.Process(event(t, "totally.new.event", `{"x":1}`), testSession())
	require.Empty(t, poster.all())
}

func TestUnknownEventFormatPolicy(t *testing.T) {
	d, poster, _ := newTestDispatcher(t, FormatUnknown)
	d.Process(event(t, "totally.new.event", `{"x":1}`), testSession())

	notices := poster.all()
	require.Len(t, notices, 1)
	require.Contains(t, notices[0], "totally.new.event")
	require.Contains(t, notices[0], "<pre>")
}

func TestMalformedPayloadDoesNotPanic(t *testing.T) {
	d, poster, _ := newTestDispatcher(t, DropUnknown)

	// Undecodable payloads surface as handler errors, never as panics or
	// user notices.
	d.Process(event(t, "message.part.updated", `{"part":`), testSession())
	d.Process(event(t, "session.status", `not json`), testSession())
	require.Empty(t, poster.all())
}

func TestRegistrationValidatedAgainstKnownTypes(t *testing.T) {
	d, _, _ := newTestDispatcher(t, DropUnknown)
	for typ := range d.handlers {
		require.True(t, knownEventTypes[typ], "handler registered for unknown type %q", typ)
	}
}

func TestHandlerPanicIsContained(t *testing.T) {
	d, _, _ := newTestDispatcher(t, DropUnknown)
	d.handlers["session.idle"] = func(ev opencode.Event, env *Env) (string, error) {
		panic("handler bug")
	}

	require.NotPanics(t, func() {
		d.Process(event(t, "session.idle", `{}`), testSession())
	})
}
