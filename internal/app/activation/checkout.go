package activation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"membergate/internal/domain/access"
	"membergate/internal/domain/billing"
	"membergate/internal/domain/users"
	"membergate/internal/infra/identity"
	"membergate/internal/observability/logger"
)

// Purchase is a paid checkout as reported by the payment webhook.
type Purchase struct {
	Email           string
	PlanKey         string
	SessionID       string
	PaymentIntentID string
	AmountTotal     int64
	Currency        string
	PaymentStatus   string
}

// Activate extends the subscription window by the purchased plan and marks
// the account active. The returned user is the stored record after the write.
func (s *Service) Activate(ctx context.Context, p Purchase) (*users.User, time.Time, error) {
	plan, err := s.Catalog.Ensure(p.PlanKey)
	if err != nil {
		return nil, time.Time{}, err
	}
	p.PlanKey = plan.Key
	u, err := s.Accounts.FindByEmail(ctx, p.Email)
	if err != nil {
		return nil, time.Time{}, err
	}

	var expiresAt time.Time
	updated, err := s.mutate(ctx, *u, "activate", func(cur users.User) (*identity.Patch, error) {
		now := s.now().UTC()
		exp, err := s.Catalog.CalculateExpiry(p.PlanKey, now, cur.SubscriptionExpiry())
		if err != nil {
			return nil, err
		}
		expiresAt = exp

		sub := cur.Subscription()
		sub["status"] = "active"
		sub["plan_key"] = p.PlanKey
		sub["expires_at"] = exp.UTC().Format(access.TimestampLayout)
		sub["activated_at"] = now.Format(access.TimestampLayout)
		sub["last_session_id"] = p.SessionID
		if p.PaymentIntentID != "" {
			sub["last_payment_intent"] = p.PaymentIntentID
		} else {
			sub["last_payment_intent"] = nil
		}

		userMeta := users.CloneMeta(cur.UserMetadata)
		userMeta["subscription"] = sub
		userMeta["status"] = "active"

		appMeta := users.CloneMeta(cur.AppMetadata)
		appMeta["roles"] = withRole(cur.Roles(), access.RoleActive)
		appMeta["status"] = "active"

		return &identity.Patch{AppMetadata: appMeta, UserMetadata: userMeta}, nil
	})
	if err != nil {
		return nil, time.Time{}, err
	}

	s.recordPayment(ctx, updated, p, expiresAt)
	logger.From(ctx).Info("subscription activated",
		logger.Email(p.Email), logger.PlanKey(p.PlanKey), zap.Time("expires_at", expiresAt))
	return updated, expiresAt, nil
}

// ExpireCheckout deactivates the account when the expired checkout session is
// the one that last activated it. It reports whether a write happened.
func (s *Service) ExpireCheckout(ctx context.Context, email, sessionID string) (bool, error) {
	u, err := s.Accounts.FindByEmail(ctx, email)
	if err != nil {
		return false, err
	}

	wrote := false
	_, err = s.mutate(ctx, *u, "deactivate", func(cur users.User) (*identity.Patch, error) {
		sub := cur.Subscription()
		if users.StringField(sub, "last_session_id") != sessionID {
			wrote = false
			return nil, nil
		}
		sub["status"] = "inactive"

		userMeta := users.CloneMeta(cur.UserMetadata)
		userMeta["subscription"] = sub
		if users.StringField(userMeta, "status") == "active" {
			userMeta["status"] = "inactive"
		}

		appMeta := users.CloneMeta(cur.AppMetadata)
		if _, ok := appMeta["roles"].([]any); ok {
			appMeta["roles"] = withoutRole(cur.Roles(), access.RoleActive)
		}
		if users.StringField(appMeta, "status") == "active" {
			appMeta["status"] = "inactive"
		}
		wrote = true
		return &identity.Patch{AppMetadata: appMeta, UserMetadata: userMeta}, nil
	})
	if err != nil {
		return false, err
	}
	return wrote, nil
}

func (s *Service) recordPayment(ctx context.Context, u *users.User, p Purchase, expiresAt time.Time) {
	if s.Ledger == nil || p.SessionID == "" {
		return
	}
	row := &billing.Payment{
		UserID:          u.ID,
		Email:           identity.NormalizeEmail(p.Email),
		PlanKey:         p.PlanKey,
		StripeSessionID: p.SessionID,
		AmountTotal:     p.AmountTotal,
		Currency:        p.Currency,
		Status:          p.PaymentStatus,
		ExpiresAt:       expiresAt,
	}
	if p.PaymentIntentID != "" {
		pi := p.PaymentIntentID
		row.PaymentIntentID = &pi
	}
	// The account is already active; a missing audit row must not fail the webhook.
	if err := s.Ledger.RecordPayment(ctx, row); err != nil {
		logger.From(ctx).Error("record payment failed", logger.SessionID(p.SessionID), zap.Error(err))
	}
}
