package activation

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"

	"membergate/internal/domain/access"
	"membergate/internal/domain/billing"
	"membergate/internal/domain/users"
	"membergate/internal/infra/identity"
	"membergate/internal/observability/logger"
)

// StatusView is the activation page's view of one account.
type StatusView struct {
	Found            bool     `json:"found"`
	Email            string   `json:"email"`
	Status           string   `json:"status"`
	ExpiresAt        *string  `json:"expiresAt"`
	Plan             *string  `json:"plan"`
	PlanLabel        *string  `json:"planLabel"`
	SecondsRemaining int64    `json:"secondsRemaining"`
	DaysRemaining    int64    `json:"daysRemaining"`
	Roles            []string `json:"roles"`
	LastSession      *string  `json:"lastSession"`
	Message          string   `json:"message"`

	Active bool `json:"-"`
	// Unexpired reports a subscription expiry that is still in the future.
	Unexpired bool `json:"-"`
}

// Check computes the account's billing status. A lapsed subscription on an
// account that still carries an active status is deactivated on the way.
func (s *Service) Check(ctx context.Context, u users.User) (StatusView, error) {
	now := s.now()
	view := s.view(u, now)

	left := billing.CalculateTimeLeft(now, u.SubscriptionExpiry())
	if left != nil && left.Expired && u.Status() != "" {
		if _, err := s.Deactivate(ctx, u, "expired"); err != nil {
			return view, err
		}
	}
	return view, nil
}

// View computes the status without writing anything.
func (s *Service) View(u users.User) StatusView {
	return s.view(u, s.now())
}

func (s *Service) view(u users.User, now time.Time) StatusView {
	sub := u.Subscription()
	left := billing.CalculateTimeLeft(now, u.SubscriptionExpiry())
	active := access.IsActiveStatus(u.Status()) && (left == nil || !left.Expired)

	v := StatusView{
		Found:   true,
		Email:   identity.NormalizeEmail(u.Email),
		Status:  "inactive",
		Roles:   u.Roles(),
		Message: billing.StatusMessage(active, left),
		Active:  active,
	}
	if active {
		v.Status = "active"
	}
	if raw := users.StringField(sub, "expires_at"); raw != "" {
		v.ExpiresAt = &raw
	}
	if key := users.StringField(sub, "plan_key"); key != "" {
		v.Plan = &key
		if p, ok := s.Catalog.Get(key); ok {
			label := p.Label
			v.PlanLabel = &label
		}
	}
	if last := users.StringField(sub, "last_session_id"); last != "" {
		v.LastSession = &last
	}
	if left != nil && !left.Expired {
		v.SecondsRemaining = left.Seconds
		v.DaysRemaining = left.Days
		v.Unexpired = true
	}
	return v
}

// Deactivate marks the subscription inactive and removes the active role.
// Nothing is written when the fresh record no longer has a lapsed expiry.
func (s *Service) Deactivate(ctx context.Context, u users.User, reason string) (*users.User, error) {
	wrote := false
	updated, err := s.mutate(ctx, u, "expire", func(cur users.User) (*identity.Patch, error) {
		wrote = false
		left := billing.CalculateTimeLeft(s.now(), cur.SubscriptionExpiry())
		if left == nil || !left.Expired || cur.Status() == "" {
			return nil, nil
		}
		sub := cur.Subscription()
		if users.StringField(sub, "status") == "inactive" && !slices.Contains(cur.Roles(), access.RoleActive) &&
			access.NormalizeStatus(cur.Status()) == "inactive" {
			return nil, nil
		}
		wrote = true
		sub["status"] = "inactive"
		if reason != "" {
			sub["last_inactive_reason"] = reason
		}

		userMeta := users.CloneMeta(cur.UserMetadata)
		userMeta["subscription"] = sub
		userMeta["status"] = "inactive"

		appMeta := users.CloneMeta(cur.AppMetadata)
		appMeta["roles"] = withoutRole(cur.Roles(), access.RoleActive)
		appMeta["status"] = "inactive"

		return &identity.Patch{AppMetadata: appMeta, UserMetadata: userMeta}, nil
	})
	if err != nil {
		return nil, err
	}
	if wrote {
		logger.From(ctx).Info("subscription deactivated", logger.UserID(u.ID), zap.String("reason", reason))
	}
	return updated, nil
}
