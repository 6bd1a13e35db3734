package notify

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// MessageSender is the part of *bot.Bot used for notifications.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramDispatcher messages actors that linked a Telegram chat.
type TelegramDispatcher struct {
	contacts ContactLookup
	sender   MessageSender
	logger   *zap.Logger
}

func NewTelegramDispatcher(sender MessageSender, contacts ContactLookup, logger *zap.Logger) *TelegramDispatcher {
	return &TelegramDispatcher{
		contacts: contacts,
		sender:   sender,
		logger:   logger,
	}
}

func (d *TelegramDispatcher) Send(ctx context.Context, recipient, subject, body string) error {
	contact, err := d.contacts.GetByActorID(ctx, recipient)
	if err != nil {
		return fmt.Errorf("lookup contact: %w", err)
	}
	if contact == nil || contact.TelegramChatID == 0 {
		d.logger.Debug("No telegram chat, skipping", zap.String("recipient", recipient))
		return nil
	}

	_, err = d.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: contact.TelegramChatID,
		Text:   subject + "\n\n" + body,
	})
	if err != nil {
		return fmt.Errorf("send telegram message to %s: %w", recipient, err)
	}
	return nil
}
