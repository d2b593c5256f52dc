package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telecoder/pkg/markup"
	"telecoder/pkg/monitor"
	"telecoder/pkg/opencode"
	"telecoder/pkg/session"
)

const helpText = `🤖 <b>OpenCode Telegram Bot</b>

/opencode - start a new coding session
/prompt &lt;text&gt; - send a prompt (plain text works too)
/rename &lt;title&gt; - rename the current session
/agent - cycle to the next agent
/esc - abort the in-flight request
/endsession - end the current session

Mention files with @path or @"path with spaces" to inline their content.`

func (b *Coder) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	userID := msg.From.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		b.reply(chatID, helpText)
	case "opencode":
		b.cmdNewSession(ctx, chatID, userID)
	case "prompt":
		if args == "" {
			b.notice(chatID, "ℹ️ Usage: /prompt &lt;text&gt;")
			return
		}
		b.handlePrompt(ctx, chatID, userID, args)
	case "rename":
		b.cmdRename(ctx, chatID, userID, args)
	case "agent":
		b.cmdCycleAgent(ctx, chatID, userID)
	case "esc":
		b.cmdAbort(ctx, chatID, userID)
	case "endsession":
		b.cmdEndSession(ctx, chatID, userID)
	default:
		b.notice(chatID, fmt.Sprintf("❌ Unknown command: /%s", markup.EscapeHTML(msg.Command())))
	}
}

// cmdNewSession creates a fresh server session for the user, replacing any
// existing one.
func (b *Coder) cmdNewSession(ctx context.Context, chatID, userID int64) {
	if old, err := b.registry.Get(userID); err == nil {
		b.renderer.Drop(old.SessionID)
		b.registry.Remove(userID)
		if err := b.client.DeleteSession(ctx, old.SessionID); err != nil {
			slog.Warn("Failed to delete previous session", "session_id", old.SessionID, "error", err)
		}
	}

	var created *opencode.Session
	err := b.withRecovery(ctx, chatID, func() error {
		var err error
		created, err = b.client.CreateSession(ctx, "")
		return err
	})
	if err != nil {
		b.reply(chatID, renderError(err))
		return
	}

	b.registry.Put(userID, created.ID, chatID)
	slog.Info("Session created", "user_id", userID, "session_id", created.ID)
	b.reply(chatID, fmt.Sprintf(
		"✅ <b>Session started</b>\nID: <code>%s</code>\nAgent: <b>%s</b>\n\nSend a message to begin.",
		markup.EscapeHTML(created.ID), session.DefaultAgent))
}

func (b *Coder) cmdRename(ctx context.Context, chatID, userID int64, title string) {
	if title == "" {
		b.notice(chatID, "ℹ️ Usage: /rename &lt;title&gt;")
		return
	}
	sess, err := b.registry.Get(userID)
	if err != nil {
		b.notice(chatID, renderError(err))
		return
	}

	err = b.withRecovery(ctx, chatID, func() error {
		return b.client.UpdateSessionTitle(ctx, sess.SessionID, title)
	})
	if err != nil {
		b.reply(chatID, renderError(err))
		return
	}
	b.notice(chatID, fmt.Sprintf("🖊️ <b>Session renamed:</b> %s", markup.EscapeHTML(title)))
}

func (b *Coder) cmdCycleAgent(ctx context.Context, chatID, userID int64) {
	if _, err := b.registry.Get(userID); err != nil {
		b.notice(chatID, renderError(err))
		return
	}
	next, ok := b.registry.CycleAgent(ctx, userID, b.client)
	if !ok {
		b.notice(chatID, "⚠️ <b>No agents available.</b> Keeping the current one.")
		return
	}
	b.notice(chatID, fmt.Sprintf("🔄 <b>Agent:</b> %s", markup.EscapeHTML(next)))
}

// cmdAbort cancels the in-flight request but keeps the session alive.
func (b *Coder) cmdAbort(ctx context.Context, chatID, userID int64) {
	sess, err := b.registry.Get(userID)
	if err != nil {
		b.notice(chatID, renderError(err))
		return
	}

	b.registry.StopStream(userID)
	b.renderer.Drop(sess.SessionID)
	if err := b.client.AbortSession(ctx, sess.SessionID); err != nil {
		slog.Warn("Abort request failed", "session_id", sess.SessionID, "error", err)
	}
	b.notice(chatID, "🚫 <b>Request aborted.</b> The session is still active.")
}

func (b *Coder) cmdEndSession(ctx context.Context, chatID, userID int64) {
	sess, err := b.registry.Get(userID)
	if err != nil {
		b.notice(chatID, renderError(err))
		return
	}

	b.registry.StopStream(userID)
	b.renderer.Drop(sess.SessionID)
	b.registry.Remove(userID)
	if err := b.client.DeleteSession(ctx, sess.SessionID); err != nil {
		slog.Warn("Failed to delete session on server", "session_id", sess.SessionID, "error", err)
	}
	slog.Info("Session ended", "user_id", userID, "session_id", sess.SessionID)
	b.reply(chatID, "✅ <b>Session ended.</b> Use /opencode to start a new one.")
}

// renderError turns internal errors into user-facing notices. Unreachable
// errors carry remediation steps; everything else gets a generic wrapper.
func renderError(err error) string {
	var unreachable *opencode.UnreachableError
	if errors.As(err, &unreachable) {
		return fmt.Sprintf("❌ <b>Error:</b> %s", markup.EscapeHTML(unreachable.Remediation()))
	}
	var startErr *opencode.StartError
	if errors.As(err, &startErr) {
		return fmt.Sprintf("❌ <b>Error:</b> %s", markup.EscapeHTML(startErr.Message))
	}
	if errors.Is(err, session.ErrNoActiveSession) {
		return "ℹ️ <b>No active session.</b> Use /opencode to start one first."
	}
	return fmt.Sprintf("❌ <b>Error:</b> %s", markup.EscapeHTML(err.Error()))
}

// streamEvents subscribes to the server's event stream for the duration of
// one prompt and routes events through the dispatcher. Cancelled through the
// registry when the prompt finishes or the user runs /esc.
func (b *Coder) streamEvents(parent context.Context, sess *session.Session) {
	ctx, cancel := context.WithCancel(parent)
	b.registry.BindStream(sess.UserID, cancel)

	ch, err := b.client.Subscribe(ctx)
	if err != nil {
		slog.Warn("Event subscription failed", "session_id", sess.SessionID, "error", err)
		cancel()
		return
	}

	go func() {
		for ev := range ch {
			b.events.Process(ev, sess)
			b.monitors.OnMessage(monitor.Message{
				Timestamp: time.Now(),
				Direction: "EVENT",
				Bot:       b.api.Self.UserName,
				Content:   ev.Type,
			})
		}
		slog.Debug("Event stream closed", "session_id", sess.SessionID)
	}()
}
