package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"

	"index_bot/internal/bot"
	"index_bot/internal/config"
	"index_bot/internal/discord"
	"index_bot/internal/fetcher"
	"index_bot/internal/publisher"
	"index_bot/internal/scheduler"
	"index_bot/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	session, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		log.Error("create discord session", "error", err)
		os.Exit(1)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	client := discord.New(session, log)
	fetch := fetcher.New(client, log)
	pub := publisher.New(client, store, log)

	sched := scheduler.New(store, fetch, pub, log)
	sched.SetInterval(time.Duration(cfg.RefreshIntervalHours) * time.Hour)
	sched.SetMaxConcurrent(cfg.MaxConcurrentRefreshes)

	b := bot.New(session, "", store, sched, cfg, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting bot")

	go sched.Run(ctx)

	if err := b.Run(ctx); err != nil {
		log.Error("bot stopped", "error", err)
		os.Exit(1)
	}

	log.Info("bot stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
