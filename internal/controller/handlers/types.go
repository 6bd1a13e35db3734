package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/roomslots/internal/service"
)

// Sender is the part of the Telegram client the handlers reply through
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
}

// Handlers holds the dependencies of the chat commands
type Handlers struct {
	bookingService  *service.BookingService
	scheduleService *service.ScheduleService
	accessService   *service.AccessService
	sender          Sender
	logger          *zap.Logger
}

func NewHandlers(
	bookingService *service.BookingService,
	scheduleService *service.ScheduleService,
	accessService *service.AccessService,
	sender Sender,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		bookingService:  bookingService,
		scheduleService: scheduleService,
		accessService:   accessService,
		sender:          sender,
		logger:          logger,
	}
}
