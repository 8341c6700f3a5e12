package billing

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const subscriptionColumns = `id, user_id, customer_id, subscription_id, price_id, status, plan, current_period_start, current_period_end, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (Subscription, error) {
	var (
		sub            Subscription
		userID         sql.NullString
		subscriptionID sql.NullString
		priceID        sql.NullString
		plan           string
		periodStart    sql.NullTime
		periodEnd      sql.NullTime
	)
	if err := row.Scan(
		&sub.ID,
		&userID,
		&sub.CustomerID,
		&subscriptionID,
		&priceID,
		&sub.Status,
		&plan,
		&periodStart,
		&periodEnd,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	); err != nil {
		return Subscription{}, err
	}
	sub.UserID = userID.String
	sub.SubscriptionID = subscriptionID.String
	sub.PriceID = priceID.String
	sub.Plan = Plan(plan)
	if periodStart.Valid {
		t := periodStart.Time.UTC()
		sub.CurrentPeriodStart = &t
	}
	if periodEnd.Valid {
		t := periodEnd.Time.UTC()
		sub.CurrentPeriodEnd = &t
	}
	return sub, nil
}

// UpsertByCustomer inserts or updates the subscription for a customer.
func (r *PGRepo) UpsertByCustomer(ctx context.Context, sub Subscription) (Subscription, error) {
	query := `
INSERT INTO subscriptions (
    id,
    user_id,
    customer_id,
    subscription_id,
    price_id,
    status,
    plan,
    current_period_start,
    current_period_end,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (customer_id) DO UPDATE SET
    user_id = COALESCE(EXCLUDED.user_id, subscriptions.user_id),
    subscription_id = EXCLUDED.subscription_id,
    price_id = COALESCE(EXCLUDED.price_id, subscriptions.price_id),
    status = EXCLUDED.status,
    plan = EXCLUDED.plan,
    current_period_start = COALESCE(EXCLUDED.current_period_start, subscriptions.current_period_start),
    current_period_end = COALESCE(EXCLUDED.current_period_end, subscriptions.current_period_end),
    updated_at = EXCLUDED.updated_at
RETURNING ` + subscriptionColumns

	out, err := scanSubscription(r.DB.QueryRowContext(
		ctx,
		query,
		sub.ID,
		nullString(sub.UserID),
		sub.CustomerID,
		nullString(sub.SubscriptionID),
		nullString(sub.PriceID),
		sub.Status,
		string(sub.Plan),
		nullTime(sub.CurrentPeriodStart),
		nullTime(sub.CurrentPeriodEnd),
		sub.CreatedAt,
		sub.UpdatedAt,
	))
	if err != nil {
		return Subscription{}, storeErr("billing.upsert", err)
	}
	return out, nil
}

// UpdateStatusBySubscription updates every row carrying the subscription id.
func (r *PGRepo) UpdateStatusBySubscription(ctx context.Context, subscriptionID, status string, plan Plan, now time.Time) (int64, error) {
	const query = `
UPDATE subscriptions
SET status = $2, plan = COALESCE(NULLIF($3::text, ''), plan), updated_at = $4
WHERE subscription_id = $1`

	res, err := r.DB.ExecContext(ctx, query, subscriptionID, status, string(plan), now)
	if err != nil {
		return 0, storeErr("billing.update_status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr("billing.update_status", err)
	}
	return n, nil
}

// GetByUserID returns the most recently updated subscription for a user.
func (r *PGRepo) GetByUserID(ctx context.Context, userID string) (Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1 ORDER BY updated_at DESC LIMIT 1`
	sub, err := scanSubscription(r.DB.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return Subscription{}, notFound("billing.get", userID)
	}
	if err != nil {
		return Subscription{}, storeErr("billing.get", err)
	}
	return sub, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

var _ Repo = (*PGRepo)(nil)
