package session

import "time"

// TimedDTO is the countdown shown on the access-time page.
type TimedDTO struct {
	Permanent        bool       `json:"permanent"`
	Role             string     `json:"role,omitempty"`
	Label            string     `json:"label,omitempty"`
	Active           bool       `json:"active"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	RemainingSeconds int64      `json:"remaining_seconds"`
	Remaining        string     `json:"remaining,omitempty"`
	Message          string     `json:"message,omitempty"`
}
