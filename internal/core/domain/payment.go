package domain

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentAccepted PaymentStatus = "ACCEPTED"
	PaymentDeclined PaymentStatus = "DECLINED"
)

// Terminal reports whether no further transition is possible.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentAccepted || s == PaymentDeclined
}

type PaymentAction string

const (
	ActionAccept  PaymentAction = "accept"
	ActionDecline PaymentAction = "decline"
)

// PaymentRequest is a merchant's charge waiting for a customer's answer.
// It lives in process memory only.
type PaymentRequest struct {
	ID           string        `json:"request_id"`
	MerchantID   uuid.UUID     `json:"merchant_account_id"`
	MerchantName string        `json:"merchant_name"`
	CustomerID   uuid.UUID     `json:"customer_account_id"`
	CustomerName string        `json:"customer_name"`
	Amount       int64         `json:"amount"` // minor units
	Status       PaymentStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
}
