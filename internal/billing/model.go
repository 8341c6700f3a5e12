package billing

import "time"

// Plan is the product tier attached to a customer.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// Subscription statuses written by webhook events.
const (
	StatusActive   = "active"
	StatusPastDue  = "past_due"
	StatusCanceled = "canceled"
)

// Subscription mirrors the payment provider's subscription for one customer.
// CustomerID is unique.
type Subscription struct {
	ID                 string
	UserID             string
	CustomerID         string
	SubscriptionID     string
	PriceID            string
	Status             string
	Plan               Plan
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// EffectivePlan reports the plan a subscription currently grants.
func (s Subscription) EffectivePlan() Plan {
	if s.Plan == PlanPro && (s.Status == StatusActive || s.Status == "trialing") {
		return PlanPro
	}
	return PlanFree
}
