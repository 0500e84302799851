package stripewebhooks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v75"

	"membergate/internal/app/activation"
	"membergate/internal/infra/identity"
	stripeinfra "membergate/internal/infra/stripe"
	"membergate/internal/observability/logger"
)

// dispatch applies a checkout event and returns the metrics outcome label.
// Events that can never succeed on retry are acknowledged, not failed.
func (h *Handler) dispatch(ctx context.Context, event stripe.Event) (string, error) {
	session, err := stripeinfra.CheckoutSession(event)
	if err != nil {
		return "", err
	}
	switch string(event.Type) {
	case stripeinfra.EventCheckoutExpired:
		return h.handleCheckoutExpired(ctx, session)
	default:
		return h.handleCheckoutPaid(ctx, session)
	}
}

func (h *Handler) handleCheckoutPaid(ctx context.Context, session *stripe.CheckoutSession) (string, error) {
	log := logger.From(ctx).With(logger.SessionID(session.ID))

	email := stripeinfra.SessionEmail(session)
	planKey := strings.TrimSpace(session.Metadata["plan_key"])
	if email == "" || planKey == "" {
		log.Warn("checkout session missing email or plan metadata", logger.Email(email), logger.PlanKey(planKey))
		return "skipped", nil
	}

	_, _, err := h.Service.Activate(ctx, activation.Purchase{
		Email:           email,
		PlanKey:         planKey,
		SessionID:       session.ID,
		PaymentIntentID: stripeinfra.PaymentIntentID(session),
		AmountTotal:     session.AmountTotal,
		Currency:        string(session.Currency),
		PaymentStatus:   stripeinfra.NormalizePaymentStatus(session.PaymentStatus),
	})
	if errors.Is(err, identity.ErrNotFound) {
		log.Warn("webhook: user not found for email", logger.Email(email))
		return "skipped", nil
	}
	if err != nil {
		return "", fmt.Errorf("activate %s: %w", email, err)
	}
	return "activated", nil
}

func (h *Handler) handleCheckoutExpired(ctx context.Context, session *stripe.CheckoutSession) (string, error) {
	email := stripeinfra.SessionEmail(session)
	if email == "" {
		return "skipped", nil
	}

	wrote, err := h.Service.ExpireCheckout(ctx, email, session.ID)
	if errors.Is(err, identity.ErrNotFound) {
		return "skipped", nil
	}
	if err != nil {
		return "", fmt.Errorf("expire checkout for %s: %w", email, err)
	}
	if !wrote {
		logger.From(ctx).Debug("expired session is not the activating one", logger.SessionID(session.ID), logger.Email(email))
		return "skipped", nil
	}
	return "deactivated", nil
}
