package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Freeeeeet/roomslots/internal/model"
	"github.com/Freeeeeet/roomslots/internal/repository/base"
	"go.uber.org/zap"
)

const contactsDocument = "contacts"

type ContactRepository struct {
	*base.Repository
	logger *zap.Logger
}

func NewContactRepository(b *base.Repository, logger *zap.Logger) *ContactRepository {
	return &ContactRepository{Repository: b, logger: logger}
}

// GetByActorID returns the contact of an actor, or nil when none is registered
func (r *ContactRepository) GetByActorID(ctx context.Context, actorID string) (*model.Contact, error) {
	all, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	contact, ok := all[actorID]
	if !ok {
		return nil, nil
	}
	contact.ActorID = actorID
	return &contact, nil
}

// GetByTelegramID finds the actor behind a Telegram chat
func (r *ContactRepository) GetByTelegramID(ctx context.Context, chatID int64) (*model.Contact, error) {
	all, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	for actorID, contact := range all {
		if contact.TelegramChatID == chatID {
			contact.ActorID = actorID
			return &contact, nil
		}
	}
	return nil, nil
}

// Upsert stores the contact under its ActorID
func (r *ContactRepository) Upsert(ctx context.Context, contact model.Contact) error {
	return r.WithLock(ctx, contactsDocument, func(ctx context.Context) error {
		all, err := r.load(ctx)
		if err != nil {
			return err
		}

		all[contact.ActorID] = contact

		if err := r.Write(ctx, contactsDocument, all); err != nil {
			return fmt.Errorf("write contacts: %w", err)
		}
		return nil
	})
}

func (r *ContactRepository) load(ctx context.Context) (map[string]model.Contact, error) {
	raw, err := readEntries(ctx, r.Repository, r.logger, contactsDocument)
	if err != nil {
		return nil, fmt.Errorf("read contacts: %w", err)
	}

	all := make(map[string]model.Contact, len(raw))
	for actorID, value := range raw {
		var contact model.Contact
		if err := json.Unmarshal(value, &contact); err != nil {
			r.logger.Warn("Skipping malformed contact",
				zap.String("actor_id", actorID),
				zap.Error(err))
			continue
		}
		all[actorID] = contact
	}
	return all, nil
}
