package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telecoder/pkg/bot"
	"telecoder/pkg/config"
	"telecoder/pkg/monitor"
	"telecoder/pkg/opencode"
	"telecoder/pkg/session"
	"telecoder/pkg/youtube"
)

func main() {
	monitor.PrintBanner()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	monitor.SetupSlog(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Traffic monitors: always the CLI mirror, plus the WebSocket mirror
	// when a port is configured.
	monitors := monitor.Multi{monitor.NewCLIMonitor()}
	if cfg.MonitorWSPort > 0 {
		monitors = append(monitors, monitor.NewWSMonitor(cfg.MonitorWSPort))
	}
	if err := monitors.Start(); err != nil {
		slog.Error("Failed to start monitors", "error", err)
		os.Exit(1)
	}

	client := opencode.NewClient(cfg.OpenCodeURL)
	server := opencode.NewServerManager(cfg.OpenCodeURL, cfg.OpenCodeStartTimeout)
	registry := session.NewRegistry()

	coderAPI, err := tgbotapi.NewBotAPI(cfg.BotTokens[0])
	if err != nil {
		slog.Error("Failed to authorize coder bot", "error", err)
		os.Exit(1)
	}
	coder, err := bot.NewCoder(cfg, coderAPI, client, server, registry, monitors, cancel)
	if err != nil {
		slog.Error("Failed to build coder bot", "error", err)
		os.Exit(1)
	}
	go coder.Run(ctx)

	var ytBot *youtube.Bot
	if len(cfg.BotTokens) > 1 {
		if cfg.CleanUpMediaDir {
			cleanMediaDir(cfg.MediaTmpLocation)
		}
		svc, err := youtube.NewService(cfg.YtDlpPath, cfg.MediaTmpLocation, cfg.MaxFileSizeMB)
		if err != nil {
			slog.Error("Failed to init YouTube service", "error", err)
			os.Exit(1)
		}
		ytAPI, err := tgbotapi.NewBotAPI(cfg.BotTokens[1])
		if err != nil {
			slog.Error("Failed to authorize YouTube bot", "error", err)
			os.Exit(1)
		}
		ytBot = youtube.NewBot(cfg, ytAPI, svc, monitors, cancel)
		go ytBot.Run(ctx)
	}

	// Re-read the access list whenever the .env file changes so a user can
	// be granted or revoked without a restart.
	go func() {
		for range config.Watch(ctx, ".env") {
			fresh := config.FromEnv()
			coder.ReloadAccess(fresh.AllowedUserIDs)
			if ytBot != nil {
				ytBot.ReloadAccess(fresh.AllowedUserIDs)
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Shutdown requested")
	}

	cancel()
	server.Stop()
	if err := monitors.Stop(); err != nil {
		slog.Warn("Monitor shutdown failed", "error", err)
	}
	slog.Info("Bye!")
}

// cleanMediaDir wipes leftover downloads from a previous run.
func cleanMediaDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Failed to read media directory", "dir", dir, "error", err)
		}
		return
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			slog.Warn("Failed to remove leftover media file", "file", e.Name(), "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		slog.Info("Cleaned media directory", "dir", dir, "removed", removed)
	}
}
