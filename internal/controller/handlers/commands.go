package handlers

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/roomslots/internal/model"
	"github.com/Freeeeeet/roomslots/internal/render"
)

type commandFunc func(ctx context.Context, update *models.Update, actorID, arg string)

// parseCommand splits "/book@roomslots_bot 2026-10-19|08|Room A|p1" into the
// command and the rest of the line.
func parseCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	cmd, arg, _ := strings.Cut(text, " ")
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd), strings.TrimSpace(arg)
}

// HandleCommand routes every "/..." message. /start and /help work for
// unlinked chats; the rest need a linked actor.
func (h *Handlers) HandleCommand(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}

	cmd, arg := parseCommand(update.Message.Text)
	switch cmd {
	case "/start":
		h.handleStart(ctx, update)
		return
	case "/help":
		h.handleHelp(ctx, update)
		return
	}

	commands := map[string]commandFunc{
		"/slots":    h.handleSlots,
		"/open":     h.handleSetAvailability(true),
		"/close":    h.handleSetAvailability(false),
		"/bookings": h.handleBookings,
		"/bookable": h.handleBookable,
		"/book":     h.handleBook,
		"/cancel":   h.handleCancel,
		"/week":     h.handleWeek,
	}
	fn, ok := commands[cmd]
	if !ok {
		h.sendMessage(ctx, update.Message.Chat.ID, "Unknown command. Use /help to see what I can do.")
		return
	}

	actorID, ok := h.requireActor(ctx, update)
	if !ok {
		return
	}
	fn(ctx, update, actorID, arg)
}

func (h *Handlers) handleStart(ctx context.Context, update *models.Update) {
	chatID := update.Message.Chat.ID

	actorID, err := h.accessService.ActorByTelegramID(ctx, chatID)
	if err != nil {
		h.sendMessage(ctx, chatID, fmt.Sprintf(
			"👋 Hi!\n\nThis chat is not linked to an account yet. "+
				"Ask an administrator to register chat id %d, then use /help.", chatID))
		return
	}

	h.sendMessage(ctx, chatID, fmt.Sprintf("👋 Hi, %s!\n\nUse /help to see the available commands.", actorID))
}

func (h *Handlers) handleHelp(ctx context.Context, update *models.Update) {
	helpText := "📚 Commands:\n\n" +
		"Instructors:\n" +
		"/slots [YYYY-MM-DD] - Your slots for a day\n" +
		"/open <slot id> - Offer a slot for booking\n" +
		"/close <slot id> - Withdraw an open slot\n" +
		"/bookings - Booked slots\n" +
		"/week [YYYY-MM-DD] - Week overview\n\n" +
		"Students:\n" +
		"/bookable [YYYY-MM-DD] - Slots you can book\n" +
		"/book <slot id> - Book a slot\n" +
		"/cancel <slot id> - Cancel a booking\n\n" +
		"Dates default to today."

	h.sendMessage(ctx, update.Message.Chat.ID, helpText)
}

func (h *Handlers) dateArg(arg string) string {
	if arg == "" {
		return h.bookingService.Today()
	}
	return arg
}

func (h *Handlers) handleSlots(ctx context.Context, update *models.Update, actorID, arg string) {
	chatID := update.Message.Chat.ID
	date := h.dateArg(arg)

	list, err := h.bookingService.ListInstances(ctx, actorID, actorID, date)
	if err != nil {
		h.replyFailure(ctx, chatID, "slots", err)
		return
	}
	h.sendMessage(ctx, chatID, formatList("🗓 Your slots on "+date, list, "No template cells on this day."))
}

func (h *Handlers) handleSetAvailability(available bool) commandFunc {
	return func(ctx context.Context, update *models.Update, actorID, arg string) {
		chatID := update.Message.Chat.ID
		if arg == "" {
			h.sendError(ctx, chatID, "❌ Pass the slot id, e.g. /open 2026-10-19|08|Room A|"+actorID)
			return
		}

		inst, err := h.bookingService.SetAvailability(ctx, actorID, arg, available)
		if err != nil {
			h.replyFailure(ctx, chatID, "set availability", err)
			return
		}
		h.sendMessage(ctx, chatID, "✅ Updated\n\n"+formatInstance(*inst))
	}
}

func (h *Handlers) handleBookings(ctx context.Context, update *models.Update, actorID, _ string) {
	chatID := update.Message.Chat.ID

	list, err := h.bookingService.ListBooked(ctx, actorID)
	if err != nil {
		h.replyFailure(ctx, chatID, "bookings", err)
		return
	}
	h.sendMessage(ctx, chatID, formatList("📅 Booked slots", list, "Nothing is booked."))
}

func (h *Handlers) handleBookable(ctx context.Context, update *models.Update, actorID, arg string) {
	chatID := update.Message.Chat.ID
	date := h.dateArg(arg)

	list, err := h.bookingService.ListBookable(ctx, actorID, date)
	if err != nil {
		h.replyFailure(ctx, chatID, "bookable", err)
		return
	}
	h.sendMessage(ctx, chatID, formatList("🟢 Open slots on "+date, list, "Nothing to book on this day."))
}

func (h *Handlers) handleBook(ctx context.Context, update *models.Update, actorID, arg string) {
	chatID := update.Message.Chat.ID
	if arg == "" {
		h.sendError(ctx, chatID, "❌ Pass the slot id from /bookable.")
		return
	}

	inst, err := h.bookingService.Book(ctx, actorID, arg)
	if err != nil {
		h.replyFailure(ctx, chatID, "book", err)
		return
	}
	h.sendMessage(ctx, chatID, "✅ Booked!\n\n"+formatInstance(*inst))
}

func (h *Handlers) handleCancel(ctx context.Context, update *models.Update, actorID, arg string) {
	chatID := update.Message.Chat.ID
	if arg == "" {
		h.sendError(ctx, chatID, "❌ Pass the slot id of the booking.")
		return
	}

	inst, err := h.bookingService.Cancel(ctx, actorID, arg)
	if err != nil {
		h.replyFailure(ctx, chatID, "cancel", err)
		return
	}
	h.sendMessage(ctx, chatID, "✅ Booking canceled\n\n"+formatInstance(*inst))
}

func (h *Handlers) handleWeek(ctx context.Context, update *models.Update, actorID, arg string) {
	chatID := update.Message.Chat.ID

	monday, list, err := h.bookingService.ListWeek(ctx, actorID, actorID, h.dateArg(arg))
	if err != nil {
		h.replyFailure(ctx, chatID, "week", err)
		return
	}

	first, last := h.scheduleService.HourRange()
	imageData, err := render.WeekPNG(monday, list, render.WeekOptions{
		Title:     "Schedule of " + actorID,
		FirstHour: first,
		LastHour:  last,
		Now:       h.bookingService.Now(),
	})
	if err != nil {
		h.replyFailure(ctx, chatID, "week", err)
		return
	}

	_, err = h.sender.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:  chatID,
		Photo:   &models.InputFileUpload{Filename: "week.png", Data: bytes.NewReader(imageData)},
		Caption: fmt.Sprintf("🗓 Week of %s", monday.Format(model.DateLayout)),
	})
	if err != nil {
		h.logger.Error("Failed to send week image", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
