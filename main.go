package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"wacrm/internal/config"
	"wacrm/internal/engine"
	"wacrm/internal/outbound_client"
	"wacrm/internal/realtime"
	"wacrm/internal/repository"
	"wacrm/internal/server"
	"wacrm/internal/telegram_bot"
)

func main() {
	// Load configuration
	cfgPath := "configs/config.yml"
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(err)
	}

	var logger *zap.Logger
	if cfg.Log.Development {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync() // Flushes buffer, if any
	}()

	// Database connection
	db, err := repository.NewPostgresDB(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	repository.MigrateDB(db, logger)

	// Initialize repositories
	conversationRepo := repository.NewConversationRepository(db, logger)
	messageRepo := repository.NewMessageRepository(db, logger)

	// Realtime listener over the database's NOTIFY channels
	listener := realtime.NewListener(
		cfg.Database.URL,
		time.Duration(cfg.Realtime.MinReconnectSeconds)*time.Second,
		time.Duration(cfg.Realtime.MaxReconnectSeconds)*time.Second,
		logger,
	)

	// Outbound delivery webhook client
	sender := outbound_client.NewClient(
		cfg.Outbound.WebhookURL,
		time.Duration(cfg.Outbound.TimeoutSeconds)*time.Second,
		logger,
	)

	// Telegram bot for opportunity notifications (optional)
	bot, err := telegram_bot.NewBot(cfg, logger)
	if err != nil {
		logger.Warn("Failed to initialize Telegram bot, continuing without it", zap.Error(err))
		bot = nil
	}

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Sync engine
	eng := engine.New(conversationRepo, messageRepo, listener, sender, bot, logger, engine.Options{
		FetchTimeout:     time.Duration(cfg.Engine.FetchTimeoutSeconds) * time.Second,
		ClosedListLimit:  cfg.Engine.ClosedListLimit,
		MessageCacheSize: cfg.Engine.MessageCacheSize,
	})
	eng.Start(ctx)

	// Run realtime listener in a goroutine
	go func() {
		if err := listener.Run(ctx); err != nil {
			logger.Error("Realtime listener failed", zap.Error(err))
		}
	}()

	// Initialize and run the server
	srv := server.NewServer(db, eng, cfg, logger)
	srv.Run(cfg.Server.Port)

	<-ctx.Done()
	logger.Info("Application stopped.")
}
