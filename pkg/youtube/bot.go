package youtube

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telecoder/pkg/bot"
	"telecoder/pkg/config"
	"telecoder/pkg/markup"
	"telecoder/pkg/monitor"
)

const welcomeText = `👋 <b>YouTube Audio Download Bot</b>

📥 <b>Single videos:</b> send a YouTube URL and get the audio as MP3.
📋 <b>Playlists:</b> send a playlist URL to download videos sequentially.

✨ Automatic quality fallback keeps files under the size limit, progress
updates arrive per video, and failed videos never stop a playlist.

🎵 Just send a YouTube URL to get started!`

// Bot is the downloader bot: it watches chats for YouTube links and ships
// extracted audio back into the chat.
type Bot struct {
	cfg       *config.Config
	api       *tgbotapi.BotAPI
	transport *bot.Transport
	gate      *bot.Gate
	svc       *Service
	tracker   *JobTracker
	monitors  monitor.Monitor
}

func NewBot(cfg *config.Config, api *tgbotapi.BotAPI, svc *Service,
	monitors monitor.Monitor, shutdown context.CancelFunc) *Bot {

	b := &Bot{
		cfg:      cfg,
		api:      api,
		svc:      svc,
		tracker:  NewJobTracker(),
		monitors: monitors,
	}
	b.transport = bot.NewTransport(api, cfg.MessageDeleteTimeout)
	b.gate = bot.NewGate(cfg.AllowedUserIDs, cfg.AutoKill, b, func() {
		if shutdown != nil {
			shutdown()
		}
	})
	return b
}

// ReloadAccess refreshes the allow-list after a config file change.
func (b *Bot) ReloadAccess(allowedIDs []int64) {
	b.gate.Reload(allowedIDs)
}

// NotifyAdmin implements bot.Notifier.
func (b *Bot) NotifyAdmin(html string) {
	admin := b.cfg.Admin()
	if admin == 0 {
		return
	}
	if _, err := b.transport.SendHTML(admin, html); err != nil {
		slog.Error("Failed to notify admin", "error", err)
	}
}

// Run drives the long-polling loop until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	slog.Info("YouTube bot started", "username", b.api.Self.UserName)

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

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallback(update.CallbackQuery)
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

	if msg.IsCommand() {
		switch msg.Command() {
		case "start", "help":
			b.transport.PostTransient(msg.Chat.ID, welcomeText)
		}
		return
	}
	if msg.Text != "" {
		b.handleText(ctx, msg.Chat.ID, from.UserName, msg.Text)
	}
}

// handleCallback services the stop button of playlist jobs.
func (b *Bot) handleCallback(cq *tgbotapi.CallbackQuery) {
	from := cq.From
	if !b.gate.Check(from.ID, from.UserName, from.FirstName, from.LastName) {
		return
	}

	if !strings.HasPrefix(cq.Data, "stop_playlist:") {
		return
	}
	jobID := strings.TrimPrefix(cq.Data, "stop_playlist:")
	job, ok := b.tracker.Get(jobID)
	ack := "Download already finished or not found."
	if ok {
		job.Cancel()
		ack = "🛑 Stopping playlist download..."
		slog.Info("Playlist download cancelled by user", "job_id", jobID)
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, ack)); err != nil {
		slog.Debug("Callback ack failed", "error", err)
	}
}

func (b *Bot) handleText(ctx context.Context, chatID int64, username, text string) {
	urls := b.svc.ExtractURLs(text)
	if len(urls) == 0 {
		return
	}

	suffix := ""
	if len(urls) > 1 {
		suffix = "s"
	}
	b.transport.PostTransient(chatID, fmt.Sprintf(
		"✅ YouTube link%s detected! Processing %d video%s...", suffix, len(urls), suffix))

	for _, url := range urls {
		b.NotifyAdmin(fmt.Sprintf("📥 <b>Download requested</b> by @%s:\n%s",
			markup.EscapeHTML(username), markup.EscapeHTML(url)))
		if b.svc.IsPlaylistURL(url) {
			b.downloadPlaylist(ctx, chatID, url)
		} else {
			b.downloadSingle(ctx, chatID, url)
		}
	}
}

func (b *Bot) downloadSingle(ctx context.Context, chatID int64, url string) {
	info, err := b.svc.GetVideoInfo(ctx, url)
	if err != nil {
		slog.Error("Failed to get video info", "error", err)
		b.reply(chatID, "❌ Failed to get video information. Please check the URL and try again.")
		return
	}

	statusID, err := b.transport.SendHTML(chatID, fmt.Sprintf(
		"📥 Downloading audio: %s\nPlease wait...", markup.EscapeHTML(info.Title)))
	if err != nil {
		slog.Error("Failed to send status message", "error", err)
	}

	result, err := b.svc.DownloadAudio(ctx, url, func(msg string) {
		b.transport.PostTransient(chatID, markup.EscapeHTML(msg))
	})
	if statusID != 0 {
		_ = b.transport.Delete(chatID, statusID)
	}
	if err != nil {
		slog.Error("Download failed", "url", url, "error", err)
		b.reply(chatID, fmt.Sprintf("❌ Failed to download the audio.\n\nError: %s",
			markup.EscapeHTML(err.Error())))
		return
	}

	b.sendAudio(chatID, result, info.Title, "YouTube")
}

func (b *Bot) downloadPlaylist(ctx context.Context, chatID int64, url string) {
	job := NewJob(url)
	b.tracker.Add(job)
	defer b.tracker.Remove(job.ID)

	stopKeyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🛑 Stop Download", "stop_playlist:"+job.ID),
		),
	)
	status := tgbotapi.NewMessage(chatID,
		"📋 <b>Playlist detected.</b>\n⏳ This may take a while. Processing sequentially...")
	status.ParseMode = tgbotapi.ModeHTML
	status.ReplyMarkup = stopKeyboard
	statusMsg, err := b.api.Send(status)
	if err != nil {
		slog.Error("Failed to send playlist status", "error", err)
	}

	err = b.svc.DownloadPlaylist(ctx, job, PlaylistOptions{
		MaxSize: b.cfg.MaxPlaylistSize,
		Delay:   b.cfg.PlaylistDownloadDelay,
		Status: func(msg string) {
			b.transport.PostTransient(chatID, markup.EscapeHTML(msg))
		},
		VideoStatus: func(msg string) {
			b.transport.PostTransient(chatID, markup.EscapeHTML(msg))
		},
		OnResult: func(r *Result) {
			b.sendAudio(chatID, r, r.FileName, "YouTube Playlist")
		},
	})
	if statusMsg.MessageID != 0 {
		_ = b.transport.Delete(chatID, statusMsg.MessageID)
	}
	if err != nil {
		slog.Error("Playlist download failed", "job_id", job.ID, "error", err)
		b.reply(chatID, fmt.Sprintf("❌ Playlist download failed: %s", markup.EscapeHTML(err.Error())))
		return
	}

	header := "✅ <b>Playlist download complete!</b>"
	skippedLine := ""
	if job.Cancelled() {
		header = "🛑 <b>Playlist download stopped by user.</b>"
		skippedLine = fmt.Sprintf("\n   ⏹️ Skipped: %d", job.Skipped())
	}
	b.reply(chatID, fmt.Sprintf(
		"%s\n\n📊 Summary:\n   ✅ Downloaded: %d\n   ❌ Failed: %d%s\n   📝 Total: %d",
		header, job.Downloaded(), job.Failed(), skippedLine, job.Total))
}

// sendAudio ships one MP3 into the chat and removes the local file.
func (b *Bot) sendAudio(chatID int64, result *Result, title, performer string) {
	audio := tgbotapi.NewAudio(chatID, tgbotapi.FilePath(result.FilePath))
	audio.Caption = "🎧 " + title
	audio.Title = title
	audio.Performer = performer
	if _, err := b.api.Send(audio); err != nil {
		slog.Error("Failed to send audio", "file", result.FileName, "error", err)
		return
	}
	if err := os.Remove(result.FilePath); err != nil {
		slog.Warn("Failed to clean up media file", "path", result.FilePath, "error", err)
	}
	b.monitors.OnMessage(monitor.Message{
		Timestamp: time.Now(),
		Direction: "ASSISTANT",
		Bot:       b.api.Self.UserName,
		Content:   "audio: " + result.FileName,
	})
}

func (b *Bot) reply(chatID int64, html string) {
	if _, err := b.transport.SendHTML(chatID, html); err != nil {
		slog.Error("Failed to send reply", "chat_id", chatID, "error", err)
	}
}
