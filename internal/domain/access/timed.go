package access

import (
	"math"
	"strings"
	"time"
)

// TimestampLayout matches the ISO-8601 form written by browsers (toISOString).
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// TimedAccess is the stored app_metadata.timed_access window.
type TimedAccess struct {
	Role           string
	AssignedAt     time.Time
	ExpiresAt      time.Time
	Active         bool
	InjectedActive bool
}

// ParseTimedAccess reads a decoded timed_access value. Anything that is not
// an object yields the empty window.
func ParseTimedAccess(raw any) TimedAccess {
	m, ok := raw.(map[string]any)
	if !ok {
		return TimedAccess{}
	}
	role, _ := m["role"].(string)
	active, _ := m["active"].(bool)
	injected, _ := m["injected_active"].(bool)
	return TimedAccess{
		Role:           strings.TrimSpace(role),
		AssignedAt:     parseTimestamp(m["assigned_at"]),
		ExpiresAt:      parseTimestamp(m["expires_at"]),
		Active:         active,
		InjectedActive: injected,
	}
}

// LiveAt reports whether the window has a role and has not expired.
func (t TimedAccess) LiveAt(now time.Time) bool {
	return t.Role != "" && !t.ExpiresAt.IsZero() && t.ExpiresAt.After(now)
}

// Map renders the window in its stored JSON shape.
func (t TimedAccess) Map() map[string]any {
	return map[string]any{
		"role":            t.Role,
		"assigned_at":     formatTimestamp(t.AssignedAt),
		"expires_at":      formatTimestamp(t.ExpiresAt),
		"active":          t.Active,
		"injected_active": t.InjectedActive,
	}
}

// parseTimestamp accepts RFC 3339 strings and epoch milliseconds.
func parseTimestamp(v any) time.Time {
	switch x := v.(type) {
	case float64:
		if x == 0 || math.IsNaN(x) || math.IsInf(x, 0) {
			return time.Time{}
		}
		return time.UnixMilli(int64(x)).UTC()
	case int64:
		if x == 0 {
			return time.Time{}
		}
		return time.UnixMilli(x).UTC()
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}
		}
		for _, layout := range []string{time.RFC3339Nano, TimestampLayout, "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}

func formatTimestamp(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(TimestampLayout)
}
