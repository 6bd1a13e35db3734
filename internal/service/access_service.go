package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/roomslots/internal/model"
	"github.com/Freeeeeet/roomslots/internal/repository"
	"go.uber.org/zap"
)

// AccessService manages who may book from which instructor, and the contact
// directory notifications are delivered through.
type AccessService struct {
	accessRepo  *repository.AccessRepository
	contactRepo *repository.ContactRepository
	logger      *zap.Logger
}

func NewAccessService(accessRepo *repository.AccessRepository, contactRepo *repository.ContactRepository, logger *zap.Logger) *AccessService {
	return &AccessService{
		accessRepo:  accessRepo,
		contactRepo: contactRepo,
		logger:      logger,
	}
}

// Grant lets actorID book from instructorID
func (s *AccessService) Grant(ctx context.Context, actorID, instructorID string) error {
	if !model.ValidIDPart(actorID) || !model.ValidIDPart(instructorID) {
		return fmt.Errorf("%w: actor %q instructor %q", ErrMalformedInput, actorID, instructorID)
	}
	if actorID == instructorID {
		return fmt.Errorf("%w: an instructor cannot book their own slots", ErrMalformedInput)
	}

	if err := s.accessRepo.GrantAccess(ctx, actorID, instructorID); err != nil {
		return unavailable("grant access", err)
	}

	s.logger.Info("Access granted",
		zap.String("actor_id", actorID),
		zap.String("instructor_id", instructorID),
	)
	return nil
}

// Revoke removes a grant. Existing bookings are kept.
func (s *AccessService) Revoke(ctx context.Context, actorID, instructorID string) error {
	removed, err := s.accessRepo.RevokeAccess(ctx, actorID, instructorID)
	if err != nil {
		return unavailable("revoke access", err)
	}
	if !removed {
		return fmt.Errorf("%w: %s has no access to %s", ErrNotFound, actorID, instructorID)
	}

	s.logger.Info("Access revoked",
		zap.String("actor_id", actorID),
		zap.String("instructor_id", instructorID),
	)
	return nil
}

func (s *AccessService) InstructorsFor(ctx context.Context, actorID string) ([]string, error) {
	rel, err := s.accessRepo.GetRelation(ctx, actorID)
	if err != nil {
		return nil, unavailable("instructors for", err)
	}
	return rel.InstructorIDs, nil
}

// RegisterContact stores or replaces the delivery addresses of an actor
func (s *AccessService) RegisterContact(ctx context.Context, contact model.Contact) error {
	if !model.ValidIDPart(contact.ActorID) {
		return fmt.Errorf("%w: actor id %q", ErrMalformedInput, contact.ActorID)
	}

	if err := s.contactRepo.Upsert(ctx, contact); err != nil {
		return unavailable("register contact", err)
	}

	s.logger.Info("Contact registered",
		zap.String("actor_id", contact.ActorID),
		zap.Bool("email", contact.Email != ""),
		zap.Bool("telegram", contact.TelegramChatID != 0),
	)
	return nil
}

// ActorByTelegramID resolves the actor behind a Telegram chat
func (s *AccessService) ActorByTelegramID(ctx context.Context, chatID int64) (string, error) {
	contact, err := s.contactRepo.GetByTelegramID(ctx, chatID)
	if err != nil {
		return "", unavailable("resolve telegram user", err)
	}
	if contact == nil {
		return "", fmt.Errorf("%w: no actor linked to chat %d", ErrNotFound, chatID)
	}
	return contact.ActorID, nil
}
