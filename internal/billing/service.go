package billing

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"invoice-backend/internal/shared/apperr"
	"invoice-backend/internal/shared/metrics"
	"invoice-backend/internal/shared/telemetry"
)

// Service applies payment-provider webhook events to subscriptions.
type Service struct {
	Repo      Repo
	Secret    string
	Tolerance time.Duration
	Now       func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repo, secret string) *Service {
	return &Service{Repo: repo, Secret: secret, Tolerance: DefaultTolerance, Now: time.Now}
}

// HandleWebhook verifies and applies one event. Unverified payloads are
// rejected as validation errors before any decoding.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (string, error) {
	const op = "billing.webhook"
	now := s.now()

	if err := VerifySignature(payload, signature, s.Secret, now, s.Tolerance); err != nil {
		metrics.IncWebhookEvent("unknown", "rejected")
		telemetry.Warn("billing.webhook_rejected", map[string]any{"error": err.Error()})
		return "", apperr.WrapError(apperr.ErrValidation, op, err)
	}

	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		metrics.IncWebhookEvent("unknown", "rejected")
		return "", apperr.WrapError(apperr.ErrValidation, op, err)
	}

	handled, err := s.apply(ctx, evt, now)
	outcome := "ignored"
	switch {
	case err != nil:
		outcome = "error"
	case handled:
		outcome = "processed"
	}
	metrics.IncWebhookEvent(evt.Type, outcome)
	fields := map[string]any{"event_id": evt.ID, "event_type": evt.Type, "outcome": outcome}
	if err != nil {
		fields["error"] = err.Error()
		telemetry.Error("billing.webhook", fields)
		return evt.Type, err
	}
	telemetry.Info("billing.webhook", fields)
	return evt.Type, nil
}

func (s *Service) apply(ctx context.Context, evt Event, now time.Time) (bool, error) {
	const op = "billing.apply"
	switch evt.Type {
	case EventCheckoutCompleted:
		var session checkoutSession
		if err := json.Unmarshal(evt.Data.Object, &session); err != nil {
			return false, apperr.WrapError(apperr.ErrValidation, op, err)
		}
		if session.Subscription == "" {
			return false, nil
		}
		if session.Customer == "" {
			return false, apperr.New(apperr.ErrValidation, op, "checkout session has no customer")
		}
		_, err := s.Repo.UpsertByCustomer(ctx, Subscription{
			ID:             uuid.NewString(),
			UserID:         strings.TrimSpace(session.Metadata["userId"]),
			CustomerID:     string(session.Customer),
			SubscriptionID: string(session.Subscription),
			PriceID:        strings.TrimSpace(session.Metadata["priceId"]),
			Status:         StatusActive,
			Plan:           PlanPro,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		return err == nil, err

	case EventPaymentFailed:
		var inv invoiceObject
		if err := json.Unmarshal(evt.Data.Object, &inv); err != nil {
			return false, apperr.WrapError(apperr.ErrValidation, op, err)
		}
		if inv.Subscription == "" {
			return false, nil
		}
		_, err := s.Repo.UpdateStatusBySubscription(ctx, string(inv.Subscription), StatusPastDue, "", now)
		return err == nil, err

	case EventSubscriptionDeleted:
		var sub subscriptionObject
		if err := json.Unmarshal(evt.Data.Object, &sub); err != nil {
			return false, apperr.WrapError(apperr.ErrValidation, op, err)
		}
		if sub.ID == "" {
			return false, nil
		}
		_, err := s.Repo.UpdateStatusBySubscription(ctx, sub.ID, StatusCanceled, PlanFree, now)
		return err == nil, err
	}
	return false, nil
}

// PlanFor returns the plan currently granted to a user.
func (s *Service) PlanFor(ctx context.Context, userID string) (Plan, error) {
	if userID == "" {
		return PlanFree, nil
	}
	sub, err := s.Repo.GetByUserID(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return PlanFree, nil
	}
	if err != nil {
		return PlanFree, err
	}
	return sub.EffectivePlan(), nil
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}
