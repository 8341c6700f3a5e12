package billing

import (
	"context"
	"time"
)

// Repo persists subscriptions.
type Repo interface {
	// UpsertByCustomer inserts or updates the row keyed by CustomerID.
	// Empty UserID and PriceID never overwrite stored values.
	UpsertByCustomer(ctx context.Context, sub Subscription) (Subscription, error)
	// UpdateStatusBySubscription sets status, and plan when non-empty, on matching rows.
	UpdateStatusBySubscription(ctx context.Context, subscriptionID, status string, plan Plan, now time.Time) (int64, error)
	GetByUserID(ctx context.Context, userID string) (Subscription, error)
}
