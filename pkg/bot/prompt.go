package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"telecoder/pkg/markup"
	"telecoder/pkg/mentions"
	"telecoder/pkg/opencode"
)

// handlePrompt is the entry point for free text and /prompt. File mentions
// are resolved first; an ambiguous mention pauses the prompt behind an
// interactive pick.
func (b *Coder) handlePrompt(ctx context.Context, chatID, userID int64, text string) {
	if _, err := b.registry.Get(userID); err != nil {
		b.notice(chatID, renderError(err))
		return
	}

	var result *mentions.Result
	err := b.withRecovery(ctx, chatID, func() error {
		var err error
		result, err = b.resolver.Resolve(ctx, text)
		return err
	})
	if err != nil {
		b.reply(chatID, renderError(err))
		return
	}

	if notice := mentions.DescribeNotFound(result.NotFound); notice != "" {
		b.notice(chatID, notice)
	}

	if len(result.Ambiguous) > 0 {
		b.startPick(ctx, chatID, userID, text, result)
		return
	}
	b.deliverPrompt(ctx, chatID, userID, text, result.Resolved)
}

// deliverPrompt sends the composed prompt to the session and posts the final
// reply in line-boundary chunks. Streaming previews arrive independently
// through the event subscription opened here.
func (b *Coder) deliverPrompt(ctx context.Context, chatID, userID int64, text string, files []mentions.ResolvedFile) {
	sess, err := b.registry.Get(userID)
	if err != nil {
		b.notice(chatID, renderError(err))
		return
	}

	if line := statusLine(files); line != "" {
		b.notice(chatID, line)
	}

	composed := mentions.FormatForPrompt(text, files)
	b.streamEvents(ctx, sess)
	b.transport.SendTyping(chatID)

	var parts []opencode.Part
	err = b.withRecovery(ctx, chatID, func() error {
		var err error
		parts, err = b.client.Prompt(ctx, sess.SessionID, sess.Agent, []opencode.Part{
			{Type: "text", Text: composed},
		})
		return err
	})
	b.registry.StopStream(userID)
	if err != nil {
		slog.Error("Prompt failed", "session_id", sess.SessionID, "error", err)
		b.reply(chatID, renderError(err))
		return
	}

	reply := collectText(parts)
	if reply == "" {
		b.notice(chatID, "✅ <b>Done.</b> The assistant returned no text.")
		return
	}
	for _, chunk := range markup.SplitChunks(reply, b.cfg.MessageLimit) {
		b.reply(chatID, markup.FormatHTML(chunk))
	}
}

// collectText joins the text parts of a reply in arrival order.
func collectText(parts []opencode.Part) string {
	var b strings.Builder
	for _, p := range parts {
		if p.Type != "text" || p.Text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

// statusLine summarizes attached files for the pre-prompt notice.
func statusLine(files []mentions.ResolvedFile) string {
	if len(files) == 0 {
		return ""
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = markup.EscapeHTML(f.Path)
	}
	return fmt.Sprintf("📎 <b>Attached:</b> %s", strings.Join(names, ", "))
}
