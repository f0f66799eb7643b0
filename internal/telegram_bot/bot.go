package telegram_bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"wacrm/internal/config"
	"wacrm/internal/models"
)

// Bot pings operators on Telegram when a conversation is newly classified
// as an opportunity, so nobody has to keep the dashboard open to catch a
// hot lead.
type Bot struct {
	api            *tgbotapi.BotAPI
	operatorChatID int64
	logger         *zap.Logger
}

// NewBot creates the notifier bot. Returns (nil, nil) when disabled.
func NewBot(cfg *config.Config, logger *zap.Logger) (*Bot, error) {
	if !cfg.Notifier.Enabled || cfg.Notifier.TelegramBotToken == "" {
		logger.Info("Telegram notifier is disabled (notifier.enabled=false or token is empty)")
		return nil, nil
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Notifier.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}

	logger.Info("Telegram notifier authorized", zap.String("username", botAPI.Self.UserName))

	return &Bot{
		api:            botAPI,
		operatorChatID: cfg.Notifier.OperatorChatID,
		logger:         logger,
	}, nil
}

// NotifyOpportunity sends a one-line alert for a freshly derived
// opportunity. Failures are logged only; notification is best-effort.
func (b *Bot) NotifyOpportunity(conv *models.Conversation) {
	if b == nil {
		return
	}

	who := "unknown client"
	if conv.Client != nil {
		who = conv.Client.DisplayName()
	}
	preview := ""
	if conv.LastMessage != nil {
		preview = *conv.LastMessage
		if len(preview) > 120 {
			preview = preview[:120] + "…"
		}
	}

	text := fmt.Sprintf("💰 New opportunity: %s\n%s", who, preview)
	msg := tgbotapi.NewMessage(b.operatorChatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send opportunity notification",
			zap.String("conversation_id", conv.ID), zap.Error(err))
	}
}
