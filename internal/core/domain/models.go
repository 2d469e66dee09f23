package domain

import (
	"time"

	"github.com/google/uuid"
)

type AccountStatus string

const (
	StatusActive    AccountStatus = "active"
	StatusSuspended AccountStatus = "suspended"
	StatusDeleted   AccountStatus = "deleted"
)

// Account represents a customer's wallet or a merchant's till
type Account struct {
	ID        uuid.UUID     `json:"id"`
	OwnerName string        `json:"owner_name"`
	Email     string        `json:"email,omitempty"`
	CardUID   string        `json:"card_uid,omitempty"`
	Balance   int64         `json:"balance"` // Stored in minor units (cents)
	Currency  Currency      `json:"currency"`
	Status    AccountStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// Active reports whether the account may take part in transfers.
func (a *Account) Active() bool {
	return a.Status == StatusActive
}

// SameCard reports whether both accounts are bound to one physical card.
func (a *Account) SameCard(other *Account) bool {
	return a.CardUID != "" && a.CardUID == other.CardUID
}

// NewAccount is what a store needs to insert an account. The caller
// assigns the ID so every backend produces the same identifiers.
type NewAccount struct {
	ID        uuid.UUID
	OwnerName string
	Email     string
	CardUID   string
	Balance   int64
	Currency  Currency
}

// Registration is the input to explicit account registration.
type Registration struct {
	OwnerName string
	Email     string
	CardUID   string
}

type RefKind int

const (
	RefByID RefKind = iota + 1
	RefByCard
	RefByEmail
)

// AccountRef names an account the way a client identified it.
type AccountRef struct {
	Kind    RefKind
	ID      uuid.UUID
	CardUID string
	Email   string
}

func ByID(id uuid.UUID) AccountRef {
	return AccountRef{Kind: RefByID, ID: id}
}

func ByCard(uid string) AccountRef {
	return AccountRef{Kind: RefByCard, CardUID: uid}
}

func ByEmail(email string) AccountRef {
	return AccountRef{Kind: RefByEmail, Email: email}
}

func (r AccountRef) String() string {
	switch r.Kind {
	case RefByID:
		return r.ID.String()
	case RefByCard:
		return "card:" + r.CardUID
	case RefByEmail:
		return "email:" + r.Email
	}
	return "unknown"
}
