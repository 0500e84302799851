package billing

import "time"

// Payment is an audit row written for every activated checkout.
type Payment struct {
	ID              uint   `gorm:"primaryKey"`
	UserID          string `gorm:"index"`
	Email           string `gorm:"index"`
	PlanKey         string
	StripeSessionID string `gorm:"uniqueIndex"`
	PaymentIntentID *string
	AmountTotal     int64
	Currency        string
	Status          string
	ExpiresAt       time.Time
	CreatedAt       time.Time
}

// ProcessedEvent records a Stripe event id once it has been applied.
type ProcessedEvent struct {
	EventID   string `gorm:"primaryKey"`
	Type      string
	CreatedAt time.Time
}
