package stripe

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"
)

const (
	EventCheckoutCompleted     = "checkout.session.completed"
	EventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventCheckoutExpired       = "checkout.session.expired"
)

// ParseEvent verifies the Stripe-Signature header and decodes the event.
// API version mismatches are accepted since only checkout fields are read.
func ParseEvent(payload []byte, signature, secret string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(
		payload,
		signature,
		secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
}

func CheckoutSession(event stripe.Event) (*stripe.CheckoutSession, error) {
	if event.Data == nil {
		return nil, fmt.Errorf("event %s has no data", event.ID)
	}
	var s stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	return &s, nil
}

// SessionEmail prefers metadata.email, then customer_details.email, then
// customer_email. The result is lowercased.
func SessionEmail(s *stripe.CheckoutSession) string {
	if s == nil {
		return ""
	}
	candidates := []string{s.Metadata["email"]}
	if s.CustomerDetails != nil {
		candidates = append(candidates, s.CustomerDetails.Email)
	}
	candidates = append(candidates, s.CustomerEmail)
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return strings.ToLower(c)
		}
	}
	return ""
}

func PaymentIntentID(s *stripe.CheckoutSession) string {
	if s == nil || s.PaymentIntent == nil {
		return ""
	}
	return s.PaymentIntent.ID
}
