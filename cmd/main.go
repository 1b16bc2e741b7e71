package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyclopcam/logs"
	"golang.org/x/sync/errgroup"

	"chip-counter/config"
	"chip-counter/internal/api/rest"
	"chip-counter/internal/api/telegram"
	"chip-counter/internal/container"
)

func main() {
	log, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Errorf("Failed to load config: %v", err)
		os.Exit(1)
	}

	c, err := container.Build(log, cfg)
	if err != nil {
		log.Errorf("Failed to start: %v", err)
		os.Exit(1)
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := rest.NewServer(log, c.CountingService, rest.Options{
		MaxUploadBytes:     cfg.MaxUploadBytes(),
		AllowedOrigins:     cfg.AllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(cfg.Addr())
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Infof("Shutting down")
		return server.Shutdown(shutdownCtx)
	})

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(log, cfg.TelegramToken, c.UserService, c.CountingService)
		if err != nil {
			log.Errorf("Failed to create Telegram bot: %v", err)
			os.Exit(1)
		}
		g.Go(func() error {
			return bot.Run(gctx)
		})
	} else {
		log.Infof("TELEGRAM_TOKEN not set, Telegram bot disabled")
	}

	if err := g.Wait(); err != nil {
		log.Errorf("%v", err)
		c.Close()
		os.Exit(1)
	}
}
