package billing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory implementation of Repo keyed by customer id.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Subscription
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Subscription)}
}

func (r *MemoryRepo) UpsertByCustomer(ctx context.Context, sub Subscription) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return Subscription{}, storeErr("billing.upsert", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.data[sub.CustomerID]
	if !ok {
		if sub.ID == "" {
			sub.ID = uuid.NewString()
		}
		r.data[sub.CustomerID] = sub
		return sub, nil
	}

	existing.SubscriptionID = sub.SubscriptionID
	existing.Status = sub.Status
	existing.Plan = sub.Plan
	if sub.UserID != "" {
		existing.UserID = sub.UserID
	}
	if sub.PriceID != "" {
		existing.PriceID = sub.PriceID
	}
	if sub.CurrentPeriodStart != nil {
		existing.CurrentPeriodStart = sub.CurrentPeriodStart
	}
	if sub.CurrentPeriodEnd != nil {
		existing.CurrentPeriodEnd = sub.CurrentPeriodEnd
	}
	existing.UpdatedAt = sub.UpdatedAt
	r.data[sub.CustomerID] = existing
	return existing, nil
}

func (r *MemoryRepo) UpdateStatusBySubscription(ctx context.Context, subscriptionID, status string, plan Plan, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, storeErr("billing.update_status", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for key, sub := range r.data {
		if sub.SubscriptionID != subscriptionID {
			continue
		}
		sub.Status = status
		if plan != "" {
			sub.Plan = plan
		}
		sub.UpdatedAt = now
		r.data[key] = sub
		n++
	}
	return n, nil
}

func (r *MemoryRepo) GetByUserID(ctx context.Context, userID string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return Subscription{}, storeErr("billing.get", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		found Subscription
		ok    bool
	)
	for _, sub := range r.data {
		if sub.UserID != userID {
			continue
		}
		if !ok || sub.UpdatedAt.After(found.UpdatedAt) {
			found, ok = sub, true
		}
	}
	if !ok {
		return Subscription{}, notFound("billing.get", userID)
	}
	return found, nil
}

var _ Repo = (*MemoryRepo)(nil)
