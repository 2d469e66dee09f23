// Package payreq lets a merchant push a charge to a customer and poll for
// the customer's answer. Requests live in process memory, one per customer.
package payreq

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/tappay/internal/core/domain"
	"github.com/ibrahimkeyboad/tappay/internal/core/notifications"
	"github.com/ibrahimkeyboad/tappay/internal/core/transfer"
)

// DefaultMaxAmount is the per-request cap in minor units ($9,999.99).
const DefaultMaxAmount int64 = 999_999

type Broker struct {
	reg    *registry
	engine *transfer.Engine
	events notifications.Publisher
	logger *slog.Logger

	ttl       time.Duration
	maxAmount int64
	now       func() time.Time
}

type Option func(*Broker)

// WithTTL sets how long a request may stay PENDING. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(b *Broker) { b.ttl = ttl }
}

// WithMaxAmount caps request amounts, in minor units.
func WithMaxAmount(minor int64) Option {
	return func(b *Broker) { b.maxAmount = minor }
}

func WithPublisher(p notifications.Publisher) Option {
	return func(b *Broker) { b.events = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Broker) { b.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(b *Broker) { b.now = now }
}

func NewBroker(engine *transfer.Engine, opts ...Option) *Broker {
	b := &Broker{
		reg:       newRegistry(),
		engine:    engine,
		events:    notifications.Nop{},
		logger:    slog.Default(),
		maxAmount: DefaultMaxAmount,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Create validates a charge and stores it as the customer's PENDING request,
// replacing whatever request the customer had.
func (b *Broker) Create(ctx context.Context, merchantID, customerID uuid.UUID, amount decimal.Decimal) (*domain.PaymentRequest, error) {
	minor, err := domain.ToMinor(amount)
	if err != nil {
		return nil, err
	}
	if minor <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if minor > b.maxAmount {
		return nil, domain.ErrAmountTooLarge
	}

	merchant, err := b.engine.Lookup(ctx, domain.ByID(merchantID), domain.ErrMerchantNotFound)
	if err != nil {
		return nil, err
	}
	customer, err := b.engine.Lookup(ctx, domain.ByID(customerID), domain.ErrCustomerNotFound)
	if err != nil {
		return nil, err
	}
	if merchant.ID == customer.ID || merchant.SameCard(customer) {
		return nil, domain.ErrSelfTransfer
	}
	// Balances can still change before the customer answers; Respond re-checks.
	if customer.Balance < minor {
		return nil, domain.ErrInsufficientFunds
	}

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	req := &domain.PaymentRequest{
		ID:           id.String(),
		MerchantID:   merchant.ID,
		MerchantName: merchant.OwnerName,
		CustomerID:   customer.ID,
		CustomerName: customer.OwnerName,
		Amount:       minor,
		Status:       domain.PaymentPending,
		CreatedAt:    b.now().UTC(),
	}

	s := b.reg.lockOrCreate(customer.ID)
	if s.req != nil && s.req.Status == domain.PaymentPending {
		b.logger.Info("Payment request superseded", "request_id", s.req.ID, "customer_id", customer.ID)
	}
	s.req = req
	out := s.view()
	s.mu.Unlock()

	b.logger.Info("🧾 Payment request created",
		"request_id", req.ID,
		"merchant_id", merchant.ID,
		"customer_id", customer.ID,
		"amount", minor,
	)
	b.emit(ctx, notifications.PaymentRequestCreated, out)
	return out, nil
}

// Check returns the customer's request in whatever state it is in. ok is
// false when there is none or it has expired.
func (b *Broker) Check(_ context.Context, customerID uuid.UUID) (req *domain.PaymentRequest, ok bool) {
	s, found := b.reg.lock(customerID)
	if !found {
		return nil, false
	}
	defer s.mu.Unlock()

	b.expireLocked(s)
	req = s.view()
	return req, req != nil
}

// Response is the outcome of a customer's answer.
type Response struct {
	Request *domain.PaymentRequest
	// Customer is the customer's account after settlement. Nil on decline.
	Customer *domain.Account
}

// Respond applies the customer's answer to their PENDING request. A failed
// settlement, including a late shortfall, leaves the request PENDING.
func (b *Broker) Respond(ctx context.Context, customerID uuid.UUID, action domain.PaymentAction) (*Response, error) {
	if action != domain.ActionAccept && action != domain.ActionDecline {
		return nil, domain.ErrInvalidAction
	}

	// The slot stays locked through settlement so that exactly one answer
	// wins and a racing Create waits for the outcome.
	s, found := b.reg.lock(customerID)
	if !found {
		return nil, domain.ErrNoActiveRequest
	}
	defer s.mu.Unlock()

	b.expireLocked(s)
	if s.req == nil {
		return nil, domain.ErrNoActiveRequest
	}
	if s.req.Status != domain.PaymentPending {
		return nil, domain.ErrAlreadyProcessed
	}

	resp := &Response{}
	if action == domain.ActionAccept {
		res, err := b.engine.TransferMinor(ctx, domain.ByID(s.req.CustomerID), domain.ByID(s.req.MerchantID), s.req.Amount)
		if err != nil {
			b.logger.Warn("Payment request settlement failed", "request_id", s.req.ID, "error", err)
			return nil, err
		}
		resp.Customer = res.Source
		s.req.Status = domain.PaymentAccepted
	} else {
		s.req.Status = domain.PaymentDeclined
	}
	done := b.now().UTC()
	s.req.CompletedAt = &done
	resp.Request = s.view()

	b.logger.Info("Payment request answered", "request_id", s.req.ID, "status", s.req.Status)
	typ := notifications.PaymentRequestDeclined
	if resp.Request.Status == domain.PaymentAccepted {
		typ = notifications.PaymentRequestAccepted
	}
	b.emit(ctx, typ, resp.Request)
	return resp, nil
}

// Status is the merchant's poll of a customer's request. A terminal request
// is handed out once and then removed. When merchantID is non-nil, requests
// from other merchants are reported as absent.
func (b *Broker) Status(_ context.Context, customerID uuid.UUID, merchantID *uuid.UUID) (req *domain.PaymentRequest, ok bool) {
	s, found := b.reg.lock(customerID)
	if !found {
		return nil, false
	}
	defer s.mu.Unlock()

	b.expireLocked(s)
	if s.req == nil || (merchantID != nil && s.req.MerchantID != *merchantID) {
		return nil, false
	}
	req = s.view()
	if req.Status.Terminal() {
		b.reg.clear(s)
	}
	return req, true
}

// Sweep drops PENDING requests older than the TTL and terminal requests
// completed more than a TTL ago. It returns how many were dropped.
func (b *Broker) Sweep(now time.Time) int {
	if b.ttl <= 0 {
		return 0
	}
	n := 0
	for _, s := range b.reg.all() {
		s.mu.Lock()
		if !s.dead && s.req != nil && b.stale(s.req, now) {
			b.logger.Debug("payment request expired", "request_id", s.req.ID, "status", s.req.Status)
			b.reg.clear(s)
			n++
		}
		s.mu.Unlock()
	}
	return n
}

// expireLocked clears a PENDING request that outlived the TTL. Terminal
// requests are left for the merchant's poll or the janitor.
func (b *Broker) expireLocked(s *slot) {
	if s.req == nil || b.ttl <= 0 || s.req.Status != domain.PaymentPending {
		return
	}
	if b.stale(s.req, b.now()) {
		b.logger.Info("⌛ Payment request expired", "request_id", s.req.ID, "customer_id", s.req.CustomerID)
		b.reg.clear(s)
	}
}

func (b *Broker) stale(req *domain.PaymentRequest, now time.Time) bool {
	since := req.CreatedAt
	if req.Status.Terminal() && req.CompletedAt != nil {
		since = *req.CompletedAt
	}
	return now.Sub(since) >= b.ttl
}

func (b *Broker) emit(ctx context.Context, typ notifications.EventType, req *domain.PaymentRequest) {
	ev := notifications.NewEvent(typ, req.MerchantID, notifications.PaymentRequestData{
		RequestID:  req.ID,
		MerchantID: req.MerchantID,
		CustomerID: req.CustomerID,
		Amount:     req.Amount,
		Status:     string(req.Status),
	})
	if err := b.events.Publish(ctx, ev); err != nil {
		b.logger.Warn("failed to publish payment request event", "event_id", ev.ID, "error", err)
	}
}
