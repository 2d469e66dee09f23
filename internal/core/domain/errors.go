package domain

import "errors"

// Kind classifies a domain failure. The HTTP layer maps kinds to status codes.
type Kind string

const (
	KindInvalidAmount     Kind = "INVALID_AMOUNT"
	KindAccountNotFound   Kind = "ACCOUNT_NOT_FOUND"
	KindSelfTransfer      Kind = "SELF_TRANSFER"
	KindInsufficientFunds Kind = "INSUFFICIENT_FUNDS"
	KindNoActiveRequest   Kind = "NO_ACTIVE_REQUEST"
	KindAlreadyProcessed  Kind = "ALREADY_PROCESSED"
	KindDuplicateCard     Kind = "DUPLICATE_CARD"
	KindDuplicateEmail    Kind = "DUPLICATE_EMAIL"
	KindInvalidAction     Kind = "INVALID_ACTION"
	KindInvalidCard       Kind = "INVALID_CARD"
	KindInvalidInput      Kind = "INVALID_INPUT"
)

// Error is a failure the caller can show to a user as-is.
type Error struct {
	Kind    Kind
	Message string

	// family errors match every Error of the same Kind in errors.Is.
	family bool
}

func (e *Error) Error() string {
	return e.Message
}

// Is lets a family sentinel such as ErrAccountNotFound match the more
// specific sentinels that share its kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.family && t.Kind == e.Kind
}

func family(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg, family: true}
}

func variant(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

var (
	ErrInvalidAmount  = family(KindInvalidAmount, "Amount must be positive")
	ErrAmountTooLarge = variant(KindInvalidAmount, "Amount exceeds the per-transaction limit")

	ErrAccountNotFound  = family(KindAccountNotFound, "Account not found")
	ErrSourceNotFound   = variant(KindAccountNotFound, "Customer card not found")
	ErrDestNotFound     = variant(KindAccountNotFound, "Merchant not found")
	ErrMerchantNotFound = variant(KindAccountNotFound, "Merchant account not found")
	ErrCustomerNotFound = variant(KindAccountNotFound, "Customer account not found")
	ErrCardNotFound     = variant(KindAccountNotFound, "Card is not registered")

	ErrSelfTransfer      = family(KindSelfTransfer, "You may not tap your own card")
	ErrInsufficientFunds = family(KindInsufficientFunds, "Customer has insufficient funds")
	ErrNoActiveRequest   = family(KindNoActiveRequest, "No active payment request")
	ErrAlreadyProcessed  = family(KindAlreadyProcessed, "Payment request was already processed")
	ErrDuplicateCard     = family(KindDuplicateCard, "Card UID already exists")
	ErrDuplicateEmail    = family(KindDuplicateEmail, "Email already exists")
	ErrInvalidAction     = family(KindInvalidAction, "Action must be accept or decline")
	ErrInvalidCard       = family(KindInvalidCard, "Invalid card UID")
)

// InvalidInput reports a malformed request field.
func InvalidInput(msg string) *Error {
	return variant(KindInvalidInput, msg)
}

// ErrNotFound is returned by account stores when a lookup misses. Callers
// translate it into the component-specific not-found error.
var ErrNotFound = errors.New("account not found")

// KindOf reports the kind of err, or "" when err is not a domain failure.
func KindOf(err error) Kind {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Kind
	}
	return ""
}
