package bot

import (
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Transport wraps the Telegram SDK behind the small send/edit/delete surface
// the render coordinator and the event dispatcher talk to. All outgoing
// traffic flows through here so the monitors can mirror it.
type Transport struct {
	api           *tgbotapi.BotAPI
	deleteTimeout time.Duration
}

func NewTransport(api *tgbotapi.BotAPI, deleteTimeout time.Duration) *Transport {
	return &Transport{api: api, deleteTimeout: deleteTimeout}
}

// SendHTML posts a new HTML-formatted message and returns its id.
func (t *Transport) SendHTML(chatID int64, html string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, html)
	msg.ParseMode = tgbotapi.ModeHTML
	sent, err := t.api.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// EditHTML replaces the content of an existing message in place.
func (t *Transport) EditHTML(chatID int64, messageID int, html string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, html)
	edit.ParseMode = tgbotapi.ModeHTML
	_, err := t.api.Send(edit)
	return err
}

// Delete removes a message. A failure is not actionable for the caller.
func (t *Transport) Delete(chatID int64, messageID int) error {
	_, err := t.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return err
}

// PostTransient sends a notice that removes itself after the configured
// timeout. Used for event notices and status feedback so the chat stays
// focused on actual replies.
func (t *Transport) PostTransient(chatID int64, html string) {
	messageID, err := t.SendHTML(chatID, html)
	if err != nil {
		slog.Warn("Failed to post transient notice", "chat_id", chatID, "error", err)
		return
	}
	if t.deleteTimeout <= 0 {
		return
	}
	time.AfterFunc(t.deleteTimeout, func() {
		if err := t.Delete(chatID, messageID); err != nil {
			slog.Debug("Failed to delete transient notice", "message_id", messageID, "error", err)
		}
	})
}

// SendTyping flashes the "typing..." chat action.
func (t *Transport) SendTyping(chatID int64) {
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	if _, err := t.api.Request(action); err != nil {
		slog.Debug("Failed to send chat action", "error", err)
	}
}
