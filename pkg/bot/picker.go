package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telecoder/pkg/markup"
	"telecoder/pkg/mentions"
)

// maxPickOptions caps the keyboard so a broad query cannot produce an
// unusable wall of buttons.
const maxPickOptions = 10

// pendingPick is one prompt paused behind interactive file disambiguation.
// The queue drains one ambiguity at a time; once empty the prompt proceeds.
type pendingPick struct {
	chatID    int64
	text      string
	resolved  []mentions.ResolvedFile
	queue     []mentions.Ambiguity
	messageID int
}

// startPick stores the paused prompt and shows the first pick keyboard. A
// new prompt from the same user replaces any pick still waiting.
func (b *Coder) startPick(ctx context.Context, chatID, userID int64, text string, result *mentions.Result) {
	pick := &pendingPick{
		chatID:   chatID,
		text:     text,
		resolved: result.Resolved,
		queue:    result.Ambiguous,
	}

	b.mu.Lock()
	if old, ok := b.picks[userID]; ok && old.messageID != 0 {
		_ = b.transport.Delete(old.chatID, old.messageID)
	}
	b.picks[userID] = pick
	b.mu.Unlock()

	b.showPick(userID, pick)
}

func (b *Coder) showPick(userID int64, pick *pendingPick) {
	current := pick.queue[0]
	candidates := current.Candidates
	if len(candidates) > maxPickOptions {
		candidates = candidates[:maxPickOptions]
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(candidates)+1)
	for i, path := range candidates {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(markup.ShortenPath(path, 48), "pick:"+strconv.Itoa(i)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "pick:cancel"),
	))

	msg := tgbotapi.NewMessage(pick.chatID, fmt.Sprintf(
		"📂 <b>Multiple files match</b> <code>%s</code>. Pick one:",
		markup.EscapeHTML(current.Mention.Query)))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)

	sent, err := b.api.Send(msg)
	if err != nil {
		slog.Error("Failed to show file picker", "error", err)
		b.mu.Lock()
		delete(b.picks, userID)
		b.mu.Unlock()
		return
	}
	pick.messageID = sent.MessageID
}

// handleCallback routes inline keyboard presses. Only the file picker uses
// callbacks today.
func (b *Coder) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	from := cq.From
	if !b.gate.Check(from.ID, from.UserName, from.FirstName, from.LastName) {
		return
	}
	// Ack first so the client stops its spinner regardless of outcome.
	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		slog.Debug("Callback ack failed", "error", err)
	}

	if !strings.HasPrefix(cq.Data, "pick:") {
		return
	}
	b.handlePickChoice(ctx, from.ID, strings.TrimPrefix(cq.Data, "pick:"))
}

func (b *Coder) handlePickChoice(ctx context.Context, userID int64, choice string) {
	b.mu.Lock()
	pick, ok := b.picks[userID]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.picks, userID)
	b.mu.Unlock()

	if pick.messageID != 0 {
		_ = b.transport.Delete(pick.chatID, pick.messageID)
		pick.messageID = 0
	}

	if choice == "cancel" {
		b.notice(pick.chatID, "🚫 <b>Prompt cancelled.</b>")
		return
	}

	idx, err := strconv.Atoi(choice)
	current := pick.queue[0]
	if err != nil || idx < 0 || idx >= len(current.Candidates) {
		b.notice(pick.chatID, "❌ <b>Invalid selection.</b> Prompt cancelled.")
		return
	}

	loaded, err := b.resolver.Load(ctx, current.Mention, current.Candidates[idx])
	if err != nil {
		b.reply(pick.chatID, renderError(err))
		return
	}
	pick.resolved = append(pick.resolved, loaded)
	pick.queue = pick.queue[1:]

	if len(pick.queue) > 0 {
		b.mu.Lock()
		b.picks[userID] = pick
		b.mu.Unlock()
		b.showPick(userID, pick)
		return
	}
	b.deliverPrompt(ctx, pick.chatID, userID, pick.text, pick.resolved)
}
