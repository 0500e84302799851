package billing

import (
	"fmt"
	"time"
)

// TimeLeft is the remaining subscription time, floored per unit.
type TimeLeft struct {
	Expired bool
	Total   time.Duration
	Seconds int64
	Minutes int64
	Hours   int64
	Days    int64
}

// CalculateTimeLeft returns nil when there is no expiry.
func CalculateTimeLeft(now, expiresAt time.Time) *TimeLeft {
	if expiresAt.IsZero() {
		return nil
	}
	diff := expiresAt.Sub(now)
	if diff <= 0 {
		return &TimeLeft{Expired: true, Total: diff}
	}
	seconds := int64(diff / time.Second)
	return &TimeLeft{
		Total:   diff,
		Seconds: seconds,
		Minutes: seconds / 60,
		Hours:   seconds / 3600,
		Days:    seconds / 86400,
	}
}

// StatusMessage renders the status line shown on the activation page.
func StatusMessage(active bool, left *TimeLeft) string {
	if !active {
		if left != nil && left.Expired {
			return "Subscription expired."
		}
		return "Account is not active."
	}
	switch {
	case left == nil:
		return "Account active."
	case left.Days >= 1:
		return fmt.Sprintf("%d days of subscription remaining.", left.Days)
	case left.Hours >= 1:
		return fmt.Sprintf("%d hours of subscription remaining.", left.Hours)
	default:
		return fmt.Sprintf("%d minutes of subscription remaining.", left.Minutes)
	}
}

// FormatDuration renders a duration as "2 days 3 hours 5 minutes 10 seconds",
// skipping leading zero units.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "0 seconds"
	}
	total := int64(d / time.Second)
	units := []struct {
		value    int64
		one, many string
		optional bool
	}{
		{total / 86400, "day", "days", true},
		{total % 86400 / 3600, "hour", "hours", true},
		{total % 3600 / 60, "minute", "minutes", true},
		{total % 60, "second", "seconds", false},
	}
	out := ""
	for _, u := range units {
		if u.optional && u.value == 0 {
			continue
		}
		if !u.optional && u.value == 0 && out != "" {
			continue
		}
		name := u.many
		if u.value == 1 {
			name = u.one
		}
		if out != "" {
			out += " "
		}
		out += fmt.Sprintf("%d %s", u.value, name)
	}
	return out
}
