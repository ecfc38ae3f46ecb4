// Package memory is an in-memory Repository for tests and one-shot CLI runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cleared-dev/recon/internal/model"
	"github.com/cleared-dev/recon/internal/reconcile"
)

var _ reconcile.Repository = (*Store)(nil)

type key struct {
	userID   string
	merchant string
}

// Store keeps one subscription and one bill per (user, merchant).
// It is safe for concurrent use.
type Store struct {
	mu            sync.RWMutex
	subscriptions map[key]model.SubscriptionRecord
	bills         map[key]model.BillRecord
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		subscriptions: make(map[key]model.SubscriptionRecord),
		bills:         make(map[key]model.BillRecord),
	}
}

// UpsertSubscription inserts rec or refines the stored record for its merchant.
func (s *Store) UpsertSubscription(ctx context.Context, rec model.SubscriptionRecord) error {
	if rec.UserID == "" || rec.Merchant == "" {
		return fmt.Errorf("subscription requires user and merchant")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{rec.UserID, rec.Merchant}
	if cur, ok := s.subscriptions[k]; ok {
		rec = cur.Refine(rec)
	}
	s.subscriptions[k] = rec
	return nil
}

// UpsertBill inserts rec or refines the stored record for its merchant.
func (s *Store) UpsertBill(ctx context.Context, rec model.BillRecord) error {
	if rec.UserID == "" || rec.Merchant == "" {
		return fmt.Errorf("bill requires user and merchant")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{rec.UserID, rec.Merchant}
	if cur, ok := s.bills[k]; ok {
		rec = cur.Refine(rec)
	}
	s.bills[k] = rec
	return nil
}

// ListSubscriptions returns the user's subscriptions ordered by merchant.
func (s *Store) ListSubscriptions(ctx context.Context, userID string) ([]model.SubscriptionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.SubscriptionRecord
	for k, rec := range s.subscriptions {
		if k.userID == userID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Merchant < out[j].Merchant })
	return out, nil
}

// ListBills returns the user's bills ordered by merchant.
func (s *Store) ListBills(ctx context.Context, userID string) ([]model.BillRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.BillRecord
	for k, rec := range s.bills {
		if k.userID == userID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Merchant < out[j].Merchant })
	return out, nil
}
