// Package notify delivers booking notifications to actors over the channels
// their contact entry lists.
package notify

import (
	"context"
	"errors"

	"github.com/Freeeeeet/roomslots/internal/model"
	"go.uber.org/zap"
)

// Dispatcher sends one message to one actor.
type Dispatcher interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// ContactLookup resolves an actor id to its delivery addresses.
type ContactLookup interface {
	GetByActorID(ctx context.Context, actorID string) (*model.Contact, error)
}

// Multi fans a message out to every dispatcher and joins their errors.
type Multi []Dispatcher

func (m Multi) Send(ctx context.Context, recipient, subject, body string) error {
	var errs []error
	for _, d := range m {
		if err := d.Send(ctx, recipient, subject, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogDispatcher only writes the message to the log.
type LogDispatcher struct {
	Logger *zap.Logger
}

func (d LogDispatcher) Send(_ context.Context, recipient, subject, body string) error {
	d.Logger.Info("Notification",
		zap.String("recipient", recipient),
		zap.String("subject", subject),
		zap.String("body", body))
	return nil
}
