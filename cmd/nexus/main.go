package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nexus-chat/internal/identity"
	"nexus-chat/internal/notify"
	"nexus-chat/internal/platform"
	"nexus-chat/internal/realtime"
	"nexus-chat/internal/session"
	"nexus-chat/internal/tui"
	"nexus-chat/pkg/config"
	"nexus-chat/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "nexus:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.New()

	// The terminal belongs to the UI, so logs go to a file
	logFile, err := logger.OpenFile(cfg.Logging.File)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"
	logConfig.Output = logFile
	log := logger.New(logConfig)
	logger.SetGlobal(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	httpClient := &http.Client{Timeout: cfg.Platform.RequestTimeout}
	auth := identity.New(cfg.Platform.URL, cfg.Platform.AnonKey, httpClient, log)

	sessions := session.New(auth, time.Minute, log.With("component", "session"))
	go sessions.Run(ctx)

	client := platform.New(platform.Options{
		Endpoints:  cfg.Platform.Endpoints.WithDefaults(cfg.Platform.URL),
		AnonKey:    cfg.Platform.AnonKey,
		Tokens:     sessions,
		HTTPClient: httpClient,
		Logger:     log.With("component", "platform"),
	})

	deps := tui.Deps{
		Auth:          sessions,
		Platform:      client,
		Reporter:      notify.NewReporter(log),
		Logger:        log,
		NearBottom:    cfg.Client.NearBottomThreshold,
		ChatWorkers:   cfg.Client.SummaryWorkers,
		SessionEvents: sessions.Subscribe,
	}

	if cfg.Realtime.Enabled {
		feed, err := realtime.NewFeed(realtime.Options{
			BaseURL:      cfg.Platform.URL,
			APIKey:       cfg.Platform.AnonKey,
			Tokens:       sessions,
			Heartbeat:    cfg.Realtime.HeartbeatInterval,
			ReconnectMax: cfg.Realtime.ReconnectMax,
			Logger:       log,
		})
		if err != nil {
			return fmt.Errorf("realtime: %w", err)
		}
		unsubscribe := sessions.Subscribe(func(e session.Event) {
			if e.Kind == session.TokenRefreshed && e.Session != nil {
				if err := feed.UpdateToken(e.Session.AccessToken); err != nil {
					log.Warn("Failed to push refreshed token", "error", err.Error())
				}
			}
		})
		defer unsubscribe()
		go feed.Run(ctx)
		deps.Changes = feed.Subscribe
	}

	log.Info("Starting terminal client", "platform", cfg.Platform.URL)
	return tui.Run(ctx, deps, os.Stdin, os.Stdout)
}
