package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telecoder/pkg/config"
	"telecoder/pkg/events"
	"telecoder/pkg/mentions"
	"telecoder/pkg/monitor"
	"telecoder/pkg/opencode"
	"telecoder/pkg/render"
	"telecoder/pkg/session"
)

// Coder is the coding-assistant bot: it bridges Telegram chats to sessions
// on the local assistant server and mirrors the server's event stream back
// into the chat.
type Coder struct {
	cfg       *config.Config
	api       *tgbotapi.BotAPI
	transport *Transport
	gate      *Gate
	registry  *session.Registry
	client    *opencode.Client
	server    *opencode.ServerManager
	renderer  *render.Coordinator
	events    *events.Dispatcher
	resolver  *mentions.Resolver
	monitors  monitor.Monitor
	shutdown  context.CancelFunc

	mu    sync.Mutex
	picks map[int64]*pendingPick
}

// NewCoder wires the coder bot. shutdown is invoked on the auto-kill path.
func NewCoder(cfg *config.Config, api *tgbotapi.BotAPI, client *opencode.Client,
	server *opencode.ServerManager, registry *session.Registry,
	monitors monitor.Monitor, shutdown context.CancelFunc) (*Coder, error) {

	b := &Coder{
		cfg:      cfg,
		api:      api,
		registry: registry,
		client:   client,
		server:   server,
		monitors: monitors,
		shutdown: shutdown,
		picks:    make(map[int64]*pendingPick),
	}
	b.transport = NewTransport(api, cfg.MessageDeleteTimeout)
	b.gate = NewGate(cfg.AllowedUserIDs, cfg.AutoKill, b, b.kill)
	b.renderer = render.NewCoordinator(b.transport, render.Options{
		Throttle:          cfg.RenderThrottle,
		TextDeleteAfter:   cfg.RenderTextDeleteAfter,
		StatusDeleteAfter: cfg.RenderStatusDeleteAfter,
		MaxLines:          cfg.RenderMaxLines,
	})
	b.resolver = mentions.NewResolver(client, cfg.MentionMaxFileBytes)

	policy := events.DropUnknown
	if cfg.UnknownEventPolicy == "format" {
		policy = events.FormatUnknown
	}
	dispatcher, err := events.NewDispatcher(b.renderer, b.transport, policy)
	if err != nil {
		return nil, err
	}
	b.events = dispatcher
	return b, nil
}

// ReloadAccess refreshes the allow-list after a config file change.
func (b *Coder) ReloadAccess(allowedIDs []int64) {
	b.gate.Reload(allowedIDs)
	slog.Info("Access list reloaded", "allowed_users", len(allowedIDs))
}

// NotifyAdmin implements Notifier.
func (b *Coder) NotifyAdmin(html string) {
	admin := b.cfg.Admin()
	if admin == 0 {
		slog.Warn("No admin configured, dropping notification")
		return
	}
	if _, err := b.transport.SendHTML(admin, html); err != nil {
		slog.Error("Failed to notify admin", "error", err)
	}
}

func (b *Coder) kill() {
	slog.Warn("Auto-kill triggered, shutting down")
	if b.shutdown != nil {
		b.shutdown()
	}
}

// Run drives the long-polling update loop until ctx is cancelled.
func (b *Coder) Run(ctx context.Context) {
	slog.Info("Coder bot started", "username", b.api.Self.UserName)
	b.registerCommands()

	offset := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		req := tgbotapi.NewUpdate(offset)
		req.Timeout = 30
		updates, err := b.api.GetUpdates(req)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				slog.Debug("Failed to get updates", "error", err)
				time.Sleep(3 * time.Second)
				continue
			}
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Coder) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message == nil || update.Message.From == nil {
		return
	}

	msg := update.Message
	from := msg.From
	if !b.gate.Check(from.ID, from.UserName, from.FirstName, from.LastName) {
		slog.Warn("Rejected unauthorized message", "user_id", from.ID)
		return
	}

	b.monitors.OnMessage(monitor.Message{
		Timestamp: time.Now(),
		Direction: "USER",
		Bot:       b.api.Self.UserName,
		UserID:    from.ID,
		Username:  from.UserName,
		Content:   msg.Text,
	})

	b.registry.SetContext(from.ID, msg.Chat.ID, msg.MessageID)

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	if msg.Text != "" {
		b.handlePrompt(ctx, msg.Chat.ID, from.ID, msg.Text)
	}
}

// registerCommands publishes the command menu so clients can offer
// completion.
func (b *Coder) registerCommands() {
	cmds := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "Show welcome and usage"},
		tgbotapi.BotCommand{Command: "help", Description: "Show available commands"},
		tgbotapi.BotCommand{Command: "opencode", Description: "Start a new coding session"},
		tgbotapi.BotCommand{Command: "prompt", Description: "Send a prompt to the current session"},
		tgbotapi.BotCommand{Command: "rename", Description: "Rename the current session"},
		tgbotapi.BotCommand{Command: "agent", Description: "Cycle to the next agent"},
		tgbotapi.BotCommand{Command: "esc", Description: "Abort the in-flight request"},
		tgbotapi.BotCommand{Command: "endsession", Description: "End the current session"},
	)
	if _, err := b.api.Request(cmds); err != nil {
		slog.Warn("Failed to register command menu", "error", err)
	}
}

// reply posts a permanent HTML message and mirrors it to the monitors.
func (b *Coder) reply(chatID int64, html string) {
	if _, err := b.transport.SendHTML(chatID, html); err != nil {
		slog.Error("Failed to send reply", "chat_id", chatID, "error", err)
		return
	}
	b.monitors.OnMessage(monitor.Message{
		Timestamp: time.Now(),
		Direction: "ASSISTANT",
		Bot:       b.api.Self.UserName,
		Content:   html,
	})
}

// notice posts a self-deleting status message.
func (b *Coder) notice(chatID int64, html string) {
	b.transport.PostTransient(chatID, html)
}

// withRecovery runs op and, when the assistant server is unreachable, tries
// to start it and retries once. Any other error passes through.
func (b *Coder) withRecovery(ctx context.Context, chatID int64, op func() error) error {
	err := op()
	if err == nil || !opencode.IsUnreachable(err) {
		return err
	}

	b.notice(chatID, "🔄 <b>OpenCode server unreachable.</b> Attempting to start it...")
	if startErr := b.server.Start(ctx); startErr != nil {
		return fmt.Errorf("failed to start assistant server: %w", startErr)
	}
	b.notice(chatID, "✅ <b>OpenCode server started.</b> Retrying...")
	return op()
}
