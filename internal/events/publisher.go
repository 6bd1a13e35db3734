package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	SubjectBookingCreated  = "booking.created"
	SubjectBookingCanceled = "booking.canceled"
)

// BookingEvent is published after a booking or a cancellation has been stored.
type BookingEvent struct {
	EventID      uuid.UUID `json:"event_id"`
	EventType    string    `json:"event_type"`
	InstanceID   string    `json:"instance_id"`
	InstructorID string    `json:"instructor_id"`
	ActorID      string    `json:"actor_id"`
	BookedBy     string    `json:"booked_by"`
	Date         string    `json:"date"`
	Hour         int       `json:"hour"`
	Room         string    `json:"room"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type EventPublisher interface {
	PublishBooking(ctx context.Context, event BookingEvent) error
}

// conn is the part of *nats.Conn the publisher needs.
type conn interface {
	Publish(subject string, data []byte) error
}

type NatsPublisher struct {
	conn   conn
	logger *zap.Logger
}

// NewNatsPublisher connects to NATS. Close the returned connection on shutdown.
func NewNatsPublisher(natsURL string, logger *zap.Logger) (*NatsPublisher, *nats.Conn, error) {
	nc, err := nats.Connect(natsURL, nats.Name("roomslots"))
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats: %w", err)
	}
	return NewPublisher(nc, logger), nc, nil
}

func NewPublisher(c conn, logger *zap.Logger) *NatsPublisher {
	return &NatsPublisher{conn: c, logger: logger}
}

func (p *NatsPublisher) PublishBooking(ctx context.Context, event BookingEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.EventID == uuid.Nil {
		event.EventID = uuid.New()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.conn.Publish(event.EventType, payload); err != nil {
		return fmt.Errorf("publish %s: %w", event.EventType, err)
	}

	p.logger.Debug("Published event",
		zap.String("subject", event.EventType),
		zap.String("event_id", event.EventID.String()),
		zap.String("instance_id", event.InstanceID))

	return nil
}

// Nop drops every event. Used when NATS_URL is not configured.
type Nop struct{}

func (Nop) PublishBooking(context.Context, BookingEvent) error { return nil }
