package stripe

import (
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"
)

func sign(payload []byte, secret string) string {
	now := time.Now()
	sig := webhook.ComputeSignature(now, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig))
}

func TestParseEvent(t *testing.T) {
	payload := []byte(`{"id":"evt_1","object":"event","type":"checkout.session.completed","api_version":"2020-08-27","data":{"object":{"id":"cs_1","object":"checkout.session","metadata":{"email":"A@Example.com","plan_key":"month"},"customer_email":"other@example.com","payment_intent":"pi_1","payment_status":"paid"}}}`)

	ev, err := ParseEvent(payload, sign(payload, "whsec_test"), "whsec_test")
	require.NoError(t, err)
	assert.Equal(t, EventCheckoutCompleted, string(ev.Type))

	s, err := CheckoutSession(ev)
	require.NoError(t, err)
	assert.Equal(t, "cs_1", s.ID)
	assert.Equal(t, "a@example.com", SessionEmail(s))
	assert.Equal(t, "pi_1", PaymentIntentID(s))
	assert.Equal(t, "paid", NormalizePaymentStatus(s.PaymentStatus))
}

func TestParseEvent_BadSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","object":"event","type":"checkout.session.completed"}`)
	_, err := ParseEvent(payload, sign(payload, "whsec_other"), "whsec_test")
	assert.Error(t, err)
}

func TestSessionEmail_Fallbacks(t *testing.T) {
	assert.Equal(t, "", SessionEmail(nil))
	assert.Equal(t, "b@example.com", SessionEmail(&stripe.CheckoutSession{
		CustomerDetails: &stripe.CheckoutSessionCustomerDetails{Email: "B@example.com"},
		CustomerEmail:   "c@example.com",
	}))
	assert.Equal(t, "c@example.com", SessionEmail(&stripe.CheckoutSession{CustomerEmail: " c@example.com "}))
}

func TestNormalizePaymentStatus(t *testing.T) {
	assert.Equal(t, "pending", NormalizePaymentStatus(stripe.CheckoutSessionPaymentStatusUnpaid))
	assert.Equal(t, "paid", NormalizePaymentStatus(stripe.CheckoutSessionPaymentStatusNoPaymentRequired))
	assert.Equal(t, "unknown", NormalizePaymentStatus(""))
}

func TestNewGateway_RequiresKey(t *testing.T) {
	_, err := NewGateway(" ")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
