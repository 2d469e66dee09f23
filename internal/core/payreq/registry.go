package payreq

import (
	"sync"

	"github.com/google/uuid"

	"github.com/ibrahimkeyboad/tappay/internal/core/domain"
)

// slot holds the single request of one customer. Holding mu serialises every
// transition of that customer's request.
type slot struct {
	mu       sync.Mutex
	customer uuid.UUID
	req      *domain.PaymentRequest
	// dead is set, under mu, once the slot has left the registry.
	dead bool
}

// view returns a copy of the request, or nil.
func (s *slot) view() *domain.PaymentRequest {
	if s.req == nil {
		return nil
	}
	cp := *s.req
	if s.req.CompletedAt != nil {
		t := *s.req.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// registry maps customers to their slot. A slot is created by the first
// request for a customer and removed as soon as it is emptied.
// Lock order is slot.mu before registry.mu.
type registry struct {
	mu    sync.RWMutex
	slots map[uuid.UUID]*slot
}

func newRegistry() *registry {
	return &registry{slots: make(map[uuid.UUID]*slot)}
}

// lock returns the customer's live slot, locked. ok is false when the
// customer has no slot.
func (r *registry) lock(customerID uuid.UUID) (*slot, bool) {
	for {
		r.mu.RLock()
		s, ok := r.slots[customerID]
		r.mu.RUnlock()
		if !ok {
			return nil, false
		}
		s.mu.Lock()
		if !s.dead {
			return s, true
		}
		s.mu.Unlock()
	}
}

// lockOrCreate returns the customer's live slot, locked, creating it if
// needed.
func (r *registry) lockOrCreate(customerID uuid.UUID) *slot {
	for {
		if s, ok := r.lock(customerID); ok {
			return s
		}
		r.mu.Lock()
		if _, ok := r.slots[customerID]; ok {
			r.mu.Unlock()
			continue
		}
		s := &slot{customer: customerID}
		s.mu.Lock()
		r.slots[customerID] = s
		r.mu.Unlock()
		return s
	}
}

// clear empties a locked slot and removes it from the registry.
func (r *registry) clear(s *slot) {
	s.req = nil
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.slots[s.customer] == s {
		delete(r.slots, s.customer)
	}
	s.dead = true
}

func (r *registry) all() []*slot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*slot, 0, len(r.slots))
	for _, s := range r.slots {
		out = append(out, s)
	}
	return out
}

func (r *registry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.slots)
}
