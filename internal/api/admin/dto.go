package admin

import (
	"time"

	"membergate/internal/domain/access"
	"membergate/internal/domain/billing"
)

type AccessPreview struct {
	Status      string          `json:"status"`
	Roles       []string        `json:"roles"`
	TimedAccess map[string]any  `json:"timed_access,omitempty"`
	Decision    access.Decision `json:"decision"`
}

type AccountAccess struct {
	ID       string          `json:"id"`
	Email    string          `json:"email"`
	Status   string          `json:"status"`
	Roles    []string        `json:"roles"`
	Decision access.Decision `json:"decision"`
	// NextLogin is what the login resolver would write right now.
	NextLogin AccessPreview `json:"next_login"`
}

type AdminPayment struct {
	ID              uint    `json:"id"`
	Email           string  `json:"email"`
	PlanKey         string  `json:"plan_key"`
	AmountTotal     int64   `json:"amount_total"`
	Currency        string  `json:"currency"`
	Status          string  `json:"status"`
	SessionID       string  `json:"session_id"`
	PaymentIntentID *string `json:"payment_intent_id,omitempty"`
	ExpiresAt       string  `json:"expires_at"`
	CreatedAt       string  `json:"created_at"`
}

func toAdminPayment(p billing.Payment) AdminPayment {
	return AdminPayment{
		ID:              p.ID,
		Email:           p.Email,
		PlanKey:         p.PlanKey,
		AmountTotal:     p.AmountTotal,
		Currency:        p.Currency,
		Status:          p.Status,
		SessionID:       p.StripeSessionID,
		PaymentIntentID: p.PaymentIntentID,
		ExpiresAt:       p.ExpiresAt.UTC().Format(time.RFC3339),
		CreatedAt:       p.CreatedAt.Format("2006-01-02 15:04"),
	}
}
