package stripe

import (
	"strings"

	"github.com/stripe/stripe-go/v75"
)

// NormalizePaymentStatus maps a checkout session payment_status onto the
// values stored on payment rows.
func NormalizePaymentStatus(s stripe.CheckoutSessionPaymentStatus) string {
	switch strings.TrimSpace(string(s)) {
	case "":
		return "unknown"
	case string(stripe.CheckoutSessionPaymentStatusPaid), string(stripe.CheckoutSessionPaymentStatusNoPaymentRequired):
		return "paid"
	case string(stripe.CheckoutSessionPaymentStatusUnpaid):
		return "pending"
	default:
		return strings.TrimSpace(string(s))
	}
}
