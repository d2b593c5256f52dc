package render

import (
	"log/slog"
	"sync"
	"time"

	"telecoder/pkg/markup"
)

// Kind is one logical output channel within a session. The three kinds are
// independent state machines and may all be live at once, each as its own
// Telegram message.
type Kind string

const (
	KindText      Kind = "text"
	KindReasoning Kind = "reasoning"
	KindTool      Kind = "tool"
)

// Transport is the outbound messaging surface. The production implementation
// talks to Telegram; tests substitute a fake.
type Transport interface {
	// SendHTML posts a new message and returns its id.
	SendHTML(chatID int64, html string) (int, error)
	// EditHTML replaces the text of an existing message.
	EditHTML(chatID int64, messageID int, html string) error
	// Delete removes a message.
	Delete(chatID int64, messageID int) error
}

// Options carries the render policy. The windows are deployment tuning, not
// law; see config for the defaults.
type Options struct {
	// Throttle is the minimum spacing between edits of one message.
	Throttle time.Duration
	// TextDeleteAfter is the inactivity window for the text stream.
	TextDeleteAfter time.Duration
	// StatusDeleteAfter is the inactivity window for reasoning/tool streams.
	StatusDeleteAfter time.Duration
	// MaxLines caps rendered content to its last N lines. Zero disables.
	MaxLines int
}

type streamKey struct {
	SessionID string
	ChatID    int64
	Kind      Kind
}

// stream is the render state for one (session, chat, kind): the currently
// displayed message, its freshness, and the two cancellable timers that
// drive the throttle flush and the inactivity deletion. Each stream carries
// its own lock, held across its transport calls, so a slow send or edit on
// one stream never stalls the others.
type stream struct {
	mu          sync.Mutex
	gone        bool // removed from the coordinator map
	messageID   int  // 0 means no live message
	lastContent string
	lastUpdate  time.Time
	pending     string
	flushTimer  *time.Timer
	deleteTimer *time.Timer
}

// Coordinator converts rapid, irregular streams of fragments into a small
// number of visible messages. The top-level mutex guards only the stream map;
// nothing is process-global, so sessions can never leak into each other.
type Coordinator struct {
	transport Transport
	opts      Options

	mu      sync.Mutex
	streams map[streamKey]*stream
}

func NewCoordinator(transport Transport, opts Options) *Coordinator {
	return &Coordinator{
		transport: transport,
		opts:      opts,
		streams:   make(map[streamKey]*stream),
	}
}

// Update feeds one fragment into the (session, chat, kind) state machine.
// First fragment sends a message; later fragments edit it in place, throttled
// to one edit per window with the latest content guaranteed to flush; silence
// beyond the deletion window removes the message.
func (c *Coordinator) Update(sessionID string, chatID int64, kind Kind, content string) {
	key := streamKey{SessionID: sessionID, ChatID: chatID, Kind: kind}
	html := c.renderHTML(content)

	st := c.acquire(key)
	defer st.mu.Unlock()

	// A fresh fragment always postpones deletion.
	if st.deleteTimer != nil {
		st.deleteTimer.Stop()
		st.deleteTimer = nil
	}

	if st.messageID == 0 {
		c.send(key, st, html)
		c.scheduleDelete(key, st)
		return
	}

	if elapsed := time.Since(st.lastUpdate); elapsed < c.opts.Throttle {
		// Too soon to edit. Buffer the newest content and (re)schedule a
		// single delayed flush so the display converges to the latest
		// fragment even if updates never slow down.
		st.pending = html
		if st.flushTimer != nil {
			st.flushTimer.Stop()
		}
		st.flushTimer = time.AfterFunc(c.opts.Throttle-elapsed, func() {
			c.flush(key)
		})
		c.scheduleDelete(key, st)
		return
	}

	// This fragment supersedes anything still buffered for a delayed flush;
	// apply it now and disarm the flush so older content can never land on
	// top of it.
	if st.flushTimer != nil {
		st.flushTimer.Stop()
		st.flushTimer = nil
	}
	st.pending = ""

	c.edit(key, st, html)
	c.scheduleDelete(key, st)
}

// acquire returns the stream for key with st.mu held, creating it if absent.
// A stream removed between the map lookup and the lock is retried.
func (c *Coordinator) acquire(key streamKey) *stream {
	for {
		c.mu.Lock()
		st, ok := c.streams[key]
		if !ok {
			st = &stream{}
			c.streams[key] = st
		}
		c.mu.Unlock()

		st.mu.Lock()
		if !st.gone {
			return st
		}
		st.mu.Unlock()
	}
}

func (c *Coordinator) lookup(key streamKey) (*stream, bool) {
	c.mu.Lock()
	st, ok := c.streams[key]
	c.mu.Unlock()
	return st, ok
}

// Drop tears down all streams of one session: cancels outstanding timers and
// forgets the state. Messages already on screen stay; their delete timers are
// gone with the entry, and a timer that already fired finds no state and
// no-ops.
func (c *Coordinator) Drop(sessionID string) {
	c.mu.Lock()
	var dropped []*stream
	for key, st := range c.streams {
		if key.SessionID != sessionID {
			continue
		}
		delete(c.streams, key)
		dropped = append(dropped, st)
	}
	c.mu.Unlock()

	for _, st := range dropped {
		st.mu.Lock()
		if st.flushTimer != nil {
			st.flushTimer.Stop()
		}
		if st.deleteTimer != nil {
			st.deleteTimer.Stop()
		}
		st.gone = true
		st.mu.Unlock()
	}
}

// LiveMessageID reports the message id currently held for a stream, zero when
// none. Used by tests to assert the one-live-message invariant.
func (c *Coordinator) LiveMessageID(sessionID string, chatID int64, kind Kind) int {
	st, ok := c.lookup(streamKey{SessionID: sessionID, ChatID: chatID, Kind: kind})
	if !ok {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.messageID
}

func (c *Coordinator) renderHTML(content string) string {
	if c.opts.MaxLines > 0 {
		content = markup.TruncateLines(content, c.opts.MaxLines)
	}
	return markup.FormatHTML(content)
}

// send posts a new message and adopts its id. Caller holds st.mu.
func (c *Coordinator) send(key streamKey, st *stream, html string) {
	id, err := c.transport.SendHTML(key.ChatID, html)
	if err != nil {
		slog.Error("Failed to send stream message", "kind", key.Kind, "error", err)
		return
	}
	st.messageID = id
	st.lastContent = html
	st.lastUpdate = time.Now()
}

// edit edits the live message in place. An edit failure means the message
// vanished underneath us (deleted by the user or the platform), which is
// just the EMPTY state discovered late: fall back to a fresh send and adopt
// the new id. Caller holds st.mu.
func (c *Coordinator) edit(key streamKey, st *stream, html string) {
	if html == st.lastContent {
		// Nothing visible would change; refresh the clock only.
		st.lastUpdate = time.Now()
		return
	}

	if err := c.transport.EditHTML(key.ChatID, st.messageID, html); err != nil {
		slog.Debug("Edit failed, falling back to fresh send", "kind", key.Kind, "message_id", st.messageID, "error", err)
		st.messageID = 0
		c.send(key, st, html)
		return
	}
	st.lastContent = html
	st.lastUpdate = time.Now()
}

// flush applies the buffered latest content once the throttle window passes.
func (c *Coordinator) flush(key streamKey) {
	st, ok := c.lookup(key)
	if !ok {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.gone || st.pending == "" {
		return
	}

	html := st.pending
	st.pending = ""
	st.flushTimer = nil

	if st.messageID == 0 {
		c.send(key, st, html)
	} else {
		c.edit(key, st, html)
	}
	c.scheduleDelete(key, st)
}

// scheduleDelete (re)arms the inactivity deletion timer for the stream.
// Caller holds st.mu.
func (c *Coordinator) scheduleDelete(key streamKey, st *stream) {
	window := c.opts.TextDeleteAfter
	if key.Kind != KindText {
		window = c.opts.StatusDeleteAfter
	}
	if window <= 0 {
		return
	}

	if st.deleteTimer != nil {
		st.deleteTimer.Stop()
	}
	st.deleteTimer = time.AfterFunc(window, func() {
		c.expire(key)
	})
}

// expire removes a stream's message after its inactivity window. The stream
// may already be gone (session dropped) or have no message; both are no-ops.
func (c *Coordinator) expire(key streamKey) {
	st, ok := c.lookup(key)
	if !ok {
		return
	}
	st.mu.Lock()
	if st.gone || st.messageID == 0 {
		st.mu.Unlock()
		return
	}

	if err := c.transport.Delete(key.ChatID, st.messageID); err != nil {
		slog.Debug("Failed to delete expired stream message", "kind", key.Kind, "error", err)
	}
	if st.flushTimer != nil {
		st.flushTimer.Stop()
	}
	st.gone = true
	st.mu.Unlock()

	c.mu.Lock()
	if cur, ok := c.streams[key]; ok && cur == st {
		delete(c.streams, key)
	}
	c.mu.Unlock()
}
