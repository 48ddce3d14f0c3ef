// Package reservation stores short-lived claims on pending items so two
// reviewers are not shown the same item at once. Claims expire on their own,
// which returns abandoned items to the pool. An owner holds at most one claim:
// claiming a new item gives up the previous one.
package reservation

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrInvalidClaim is returned for an empty item id or owner.
var ErrInvalidClaim = errors.New("claim needs an item id and an owner")

// DefaultTTL is how long a claim lasts without a decision.
const DefaultTTL = 5 * time.Minute

type claim struct {
	owner   string
	expires time.Time
}

// MemoryStore keeps claims in process. It suits a single instance.
type MemoryStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	claims map[string]claim
	// owners maps an owner to the item it currently holds.
	owners map[string]string
	now    func() time.Time
}

// NewMemoryStore creates a MemoryStore. A non-positive ttl selects DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:    ttl,
		claims: make(map[string]claim),
		owners: make(map[string]string),
		now:    time.Now,
	}
}

// Claim implements review.Claims.
func (s *MemoryStore) Claim(_ context.Context, itemID, owner string) (bool, error) {
	if itemID == "" || owner == "" {
		return false, ErrInvalidClaim
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)
	if c, ok := s.claims[itemID]; ok && c.owner != owner {
		return false, nil
	}
	if prev, ok := s.owners[owner]; ok && prev != itemID {
		s.drop(prev, owner)
	}
	s.claims[itemID] = claim{owner: owner, expires: now.Add(s.ttl)}
	s.owners[owner] = itemID
	return true, nil
}

// Release implements review.Claims.
func (s *MemoryStore) Release(_ context.Context, itemID, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drop(itemID, owner)
	return nil
}

// drop removes owner's claim on itemID. Claims of other owners are kept.
func (s *MemoryStore) drop(itemID, owner string) {
	if c, ok := s.claims[itemID]; ok && c.owner == owner {
		delete(s.claims, itemID)
	}
	if s.owners[owner] == itemID {
		delete(s.owners, owner)
	}
}

func (s *MemoryStore) sweep(now time.Time) {
	for id, c := range s.claims {
		if !now.Before(c.expires) {
			s.drop(id, c.owner)
		}
	}
}
