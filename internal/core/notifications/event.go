// Package notifications carries transfer and payment request events to
// merchants' webhooks and to Kafka.
package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	TransferCompleted      EventType = "transfer.completed"
	PaymentRequestCreated  EventType = "payment_request.created"
	PaymentRequestAccepted EventType = "payment_request.accepted"
	PaymentRequestDeclined EventType = "payment_request.declined"
)

type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`

	// Key groups events of one account, e.g. as the Kafka partition key.
	Key string `json:"-"`
}

// NewEvent stamps data with a fresh time-ordered id.
func NewEvent(typ EventType, key uuid.UUID, data any) Event {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return Event{
		ID:         id.String(),
		Type:       typ,
		OccurredAt: time.Now().UTC(),
		Data:       data,
		Key:        key.String(),
	}
}

// TransferData is the payload of TransferCompleted.
type TransferData struct {
	FromAccountID uuid.UUID `json:"from_account_id"`
	ToAccountID   uuid.UUID `json:"to_account_id"`
	Amount        int64     `json:"amount"`
	FromBalance   int64     `json:"from_balance"`
	ToBalance     int64     `json:"to_balance"`
}

// PaymentRequestData is the payload of the payment_request.* events.
type PaymentRequestData struct {
	RequestID  string    `json:"request_id"`
	MerchantID uuid.UUID `json:"merchant_account_id"`
	CustomerID uuid.UUID `json:"customer_account_id"`
	Amount     int64     `json:"amount"`
	Status     string    `json:"status"`
}

// Publisher delivers one event. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
