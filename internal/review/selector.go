package review

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"image-review/backend/internal/backend"
)

// Claims reserves pending items for a reviewer so concurrent reviewers are not
// shown the same item. Implementations expire claims on their own.
type Claims interface {
	// Claim reserves itemID for owner. It reports false when another owner
	// holds the item; claiming an item already held by owner refreshes it.
	// An owner holds at most one item, so a granted claim releases whatever
	// owner held before.
	Claim(ctx context.Context, itemID, owner string) (bool, error)
	// Release drops owner's claim on itemID, if any.
	Release(ctx context.Context, itemID, owner string) error
}

// Selector picks the next pending item to present.
type Selector struct {
	client  backend.Client
	folders Folders
	intn    func(n int) int
	claims  Claims
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithRandom replaces the random source. intn must return a value in [0, n).
func WithRandom(intn func(n int) int) SelectorOption {
	return func(s *Selector) {
		s.intn = intn
	}
}

// WithClaims enables reservations.
func WithClaims(c Claims) SelectorOption {
	return func(s *Selector) {
		s.claims = c
	}
}

// NewSelector creates a Selector over the pending folder.
func NewSelector(client backend.Client, folders Folders, opts ...SelectorOption) *Selector {
	s := &Selector{
		client:  client,
		folders: folders,
		intn:    rand.IntN,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SelectPending returns a uniformly random file from the pending folder, or
// ErrEmptyQueue when there is none. With reservations enabled, items claimed
// by other reviewers are skipped and the returned item is claimed for
// reviewer; ErrAllReserved is returned when nothing is left to claim.
func (s *Selector) SelectPending(ctx context.Context, reviewer string) (backend.Item, error) {
	dir := s.folders.Dir(Pending)
	entries, err := s.client.ListFolder(ctx, dir)
	if err != nil {
		return backend.Item{}, fmt.Errorf("%w: list %s: %w", ErrBackendUnavailable, dir, err)
	}

	candidates := backend.Files(entries)
	if len(candidates) == 0 {
		return backend.Item{}, ErrEmptyQueue
	}

	if s.claims == nil {
		return candidates[s.intn(len(candidates))], nil
	}

	for len(candidates) > 0 {
		i := s.intn(len(candidates))
		item := candidates[i]
		ok, err := s.claims.Claim(ctx, item.ID, reviewer)
		if err != nil {
			return backend.Item{}, fmt.Errorf("%w: claim %s: %w", ErrBackendUnavailable, item.ID, err)
		}
		if ok {
			return item, nil
		}
		candidates = append(candidates[:i], candidates[i+1:]...)
	}
	return backend.Item{}, ErrAllReserved
}

// release drops a claim, if reservations are enabled.
func (s *Selector) release(ctx context.Context, itemID, reviewer string) error {
	if s.claims == nil {
		return nil
	}
	return s.claims.Release(ctx, itemID, reviewer)
}

// IsEmpty reports whether err means there is nothing to review right now.
func IsEmpty(err error) bool {
	return errors.Is(err, ErrEmptyQueue) || errors.Is(err, ErrAllReserved)
}
