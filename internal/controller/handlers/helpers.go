package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/roomslots/internal/model"
	"github.com/Freeeeeet/roomslots/internal/service"
)

// requireActor resolves the actor linked to the sender's chat.
// Returns the actor id and true if OK.
func (h *Handlers) requireActor(ctx context.Context, update *models.Update) (string, bool) {
	chatID := update.Message.Chat.ID

	actorID, err := h.accessService.ActorByTelegramID(ctx, chatID)
	if errors.Is(err, service.ErrNotFound) {
		h.sendError(ctx, chatID, fmt.Sprintf("❌ This chat is not linked to an account.\n\nAsk an administrator to register chat id %d.", chatID))
		return "", false
	}
	if err != nil {
		h.logger.Error("Failed to resolve actor", zap.Int64("chat_id", chatID), zap.Error(err))
		h.sendError(ctx, chatID, "❌ Something went wrong. Try again later.")
		return "", false
	}

	return actorID, true
}

// sendError sends an error message and logs if it could not be delivered
func (h *Handlers) sendError(ctx context.Context, chatID int64, text string) {
	_, err := h.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		h.logger.Error("Failed to send error message",
			zap.Int64("chat_id", chatID),
			zap.String("text", text),
			zap.Error(err),
		)
	}
}

// sendMessage sends a message and logs if it could not be delivered
func (h *Handlers) sendMessage(ctx context.Context, chatID int64, text string) {
	_, err := h.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		h.logger.Error("Failed to send message",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}

// replyFailure turns a service error into a user-facing message
func (h *Handlers) replyFailure(ctx context.Context, chatID int64, op string, err error) {
	var text string
	switch {
	case errors.Is(err, service.ErrSlotNoLongerAvailable):
		text = "❌ Someone else has just booked this slot."
	case errors.Is(err, service.ErrMalformedInput):
		text = "❌ Invalid input: " + err.Error()
	case errors.Is(err, service.ErrNotFound):
		text = "❌ Slot not found."
	case errors.Is(err, service.ErrForbidden):
		text = "❌ You are not allowed to do that."
	case errors.Is(err, service.ErrInvalidState):
		text = "❌ The slot is not in a state that allows this."
	case errors.Is(err, service.ErrTemporalViolation):
		text = "❌ Too late for that."
	default:
		h.logger.Error("Command failed", zap.String("op", op), zap.Int64("chat_id", chatID), zap.Error(err))
		text = "❌ Something went wrong. Try again later."
	}
	h.sendError(ctx, chatID, text)
}

var stateEmoji = map[model.SlotState]string{
	model.SlotStateOpen:   "🟢",
	model.SlotStateClosed: "⚪️",
	model.SlotStateBooked: "🔴",
}

// formatInstance renders one instance with the id the commands take
func formatInstance(inst model.Instance) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s %02d:00 %s", stateEmoji[inst.State()], inst.Date, inst.Hour, inst.Room)
	if inst.BookedBy != "" {
		fmt.Fprintf(&sb, " (booked by %s)", inst.BookedBy)
	}
	if inst.Orphaned {
		sb.WriteString(" ⚠️ no longer in the template")
	}
	fmt.Fprintf(&sb, "\n   %s", inst.ID)
	return sb.String()
}

func formatList(title string, list []model.Instance, empty string) string {
	if len(list) == 0 {
		return title + "\n\n" + empty
	}
	lines := make([]string, 0, len(list))
	for _, inst := range list {
		lines = append(lines, formatInstance(inst))
	}
	return title + "\n\n" + strings.Join(lines, "\n")
}
