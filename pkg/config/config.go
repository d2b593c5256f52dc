package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every externally supplied setting. All values come from
// environment variables (optionally seeded from a .env file), which is the
// only configuration surface this process has.
type Config struct {
	// BotTokens are the Telegram bot credentials. The first token drives the
	// coder bot; an optional second token drives the YouTube downloader bot.
	BotTokens []string
	// AllowedUserIDs is the access-control list. Requests from any other
	// Telegram user id are rejected before they reach a session operation.
	AllowedUserIDs []int64
	// AdminUserID receives unauthorized-access and download notifications.
	// Falls back to the first allowed user when unset.
	AdminUserID int64
	// AutoKill shuts the process down after an unauthorized access attempt.
	AutoKill bool

	// OpenCodeURL is the assistant server base URL.
	OpenCodeURL string
	// OpenCodeStartTimeout bounds the spawn-and-await-ready recovery path.
	OpenCodeStartTimeout time.Duration

	// MessageDeleteTimeout is how long transient status messages stay on
	// screen before auto-deletion. Zero disables deletion.
	MessageDeleteTimeout time.Duration
	// MessageLimit is the chunking ceiling for a single Telegram message.
	MessageLimit int

	// RenderThrottle is the minimum spacing between edits of one displayed
	// stream message.
	RenderThrottle time.Duration
	// RenderTextDeleteAfter is the inactivity window for main text replies.
	RenderTextDeleteAfter time.Duration
	// RenderStatusDeleteAfter is the inactivity window for reasoning/tool
	// status messages. The original UX keeps these shorter than text replies.
	RenderStatusDeleteAfter time.Duration
	// RenderMaxLines caps rendered fragments to their last N lines.
	RenderMaxLines int

	// MentionMaxFileBytes is the per-file ceiling for inlining @-mentioned
	// file content into a prompt.
	MentionMaxFileBytes int
	// UnknownEventPolicy selects what the classifier does with event kinds it
	// has no handler for: "drop" or "format".
	UnknownEventPolicy string

	// YtDlpPath locates the yt-dlp executable for the downloader bot.
	YtDlpPath string
	// MediaTmpLocation is the scratch directory for downloaded media.
	MediaTmpLocation string
	// CleanUpMediaDir wipes the scratch directory at startup.
	CleanUpMediaDir bool
	// MaxPlaylistSize caps how many videos one playlist job may download.
	MaxPlaylistSize int
	// PlaylistDownloadDelay spaces out sequential playlist downloads.
	PlaylistDownloadDelay time.Duration
	// MaxFileSizeMB caps a single downloaded file.
	MaxFileSizeMB int

	// MonitorWSPort serves the live traffic mirror; zero disables it.
	MonitorWSPort int
	// LogLevel sets the minimum slog severity: debug, info, warn, error.
	LogLevel string
}

// Default returns a Config with every tunable at its documented default.
// Only credentials are absent; Validate catches those.
func Default() *Config {
	return &Config{
		OpenCodeURL:             "http://localhost:4096",
		OpenCodeStartTimeout:    30 * time.Second,
		MessageDeleteTimeout:    10 * time.Second,
		MessageLimit:            4000,
		RenderThrottle:          time.Second,
		RenderTextDeleteAfter:   5 * time.Second,
		RenderStatusDeleteAfter: 2500 * time.Millisecond,
		RenderMaxLines:          50,
		MentionMaxFileBytes:     100_000,
		UnknownEventPolicy:      "drop",
		YtDlpPath:               "/usr/local/bin/yt-dlp",
		MediaTmpLocation:        "/tmp/telecoder_media",
		MaxPlaylistSize:         50,
		PlaylistDownloadDelay:   time.Second,
		MaxFileSizeMB:           50,
		LogLevel:                "info",
	}
}

// Load reads the optional .env file and assembles a Config from the process
// environment on top of the defaults.
func Load() (*Config, error) {
	// Missing .env is fine; the environment may be populated by the host.
	_ = godotenv.Load()

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv assembles a Config from the current process environment without
// validation. The .env watcher uses it to re-read the access list.
func FromEnv() *Config {
	cfg := Default()

	cfg.BotTokens = splitList(os.Getenv("TELEGRAM_BOT_TOKENS"))
	cfg.AllowedUserIDs = parseIDList(os.Getenv("ALLOWED_USER_IDS"))
	cfg.AdminUserID, _ = strconv.ParseInt(strings.TrimSpace(os.Getenv("ADMIN_USER_ID")), 10, 64)
	cfg.AutoKill = parseBool(os.Getenv("AUTO_KILL"))

	if v := os.Getenv("OPENCODE_SERVER_URL"); v != "" {
		cfg.OpenCodeURL = strings.TrimRight(v, "/")
	}
	overrideDuration(&cfg.OpenCodeStartTimeout, "OPENCODE_START_TIMEOUT_MS")
	overrideDuration(&cfg.MessageDeleteTimeout, "MESSAGE_DELETE_TIMEOUT_MS")
	overrideInt(&cfg.MessageLimit, "TELEGRAM_MESSAGE_LIMIT")
	overrideDuration(&cfg.RenderThrottle, "RENDER_THROTTLE_MS")
	overrideDuration(&cfg.RenderTextDeleteAfter, "RENDER_TEXT_DELETE_MS")
	overrideDuration(&cfg.RenderStatusDeleteAfter, "RENDER_STATUS_DELETE_MS")
	overrideInt(&cfg.RenderMaxLines, "RENDER_MAX_LINES")
	overrideInt(&cfg.MentionMaxFileBytes, "MENTION_MAX_FILE_BYTES")

	if v := strings.ToLower(strings.TrimSpace(os.Getenv("UNKNOWN_EVENT_POLICY"))); v != "" {
		cfg.UnknownEventPolicy = v
	}

	if v := os.Getenv("YTDLP_PATH"); v != "" {
		cfg.YtDlpPath = v
	}
	if v := os.Getenv("MEDIA_TMP_LOCATION"); v != "" {
		cfg.MediaTmpLocation = v
	}
	cfg.CleanUpMediaDir = parseBool(os.Getenv("CLEAN_UP_MEDIADIR"))
	overrideInt(&cfg.MaxPlaylistSize, "MAX_PLAYLIST_SIZE")
	overrideDuration(&cfg.PlaylistDownloadDelay, "PLAYLIST_DOWNLOAD_DELAY_MS")
	overrideInt(&cfg.MaxFileSizeMB, "MAX_FILE_SIZE_MB")

	overrideInt(&cfg.MonitorWSPort, "MONITOR_WS_PORT")
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg
}

// Validate ensures the configuration can actually run a bot.
func (c *Config) Validate() error {
	if len(c.BotTokens) == 0 {
		return fmt.Errorf("no bot tokens found in TELEGRAM_BOT_TOKENS")
	}
	if c.UnknownEventPolicy != "drop" && c.UnknownEventPolicy != "format" {
		return fmt.Errorf("UNKNOWN_EVENT_POLICY must be \"drop\" or \"format\", got %q", c.UnknownEventPolicy)
	}
	return nil
}

// Admin resolves the effective admin user id, falling back to the first
// allowed user when ADMIN_USER_ID is not set.
func (c *Config) Admin() int64 {
	if c.AdminUserID != 0 {
		return c.AdminUserID
	}
	if len(c.AllowedUserIDs) > 0 {
		return c.AllowedUserIDs[0]
	}
	return 0
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseIDList(raw string) []int64 {
	var out []int64
	for _, p := range splitList(raw) {
		if id, err := strconv.ParseInt(p, 10, 64); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1":
		return true
	}
	return false
}

func overrideInt(dst *int, key string) {
	if v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil {
		*dst = v
	}
}

func overrideDuration(dst *time.Duration, key string) {
	if v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil {
		*dst = time.Duration(v) * time.Millisecond
	}
}
