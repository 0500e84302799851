package users

import (
	"strings"
	"time"
)

// User is the identity provider's account record. Only the fields this
// service reads or writes are decoded; metadata maps are kept as-is so that
// unknown keys pass through a read-modify-write untouched.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Role         string         `json:"role,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata"`
	UserMetadata map[string]any `json:"user_metadata"`
	CreatedAt    string         `json:"created_at,omitempty"`
	UpdatedAt    string         `json:"updated_at,omitempty"`
}

// Version identifies the stored revision of the record for optimistic writes.
func (u User) Version() string {
	return u.UpdatedAt
}

// Roles returns app_metadata.roles as a deduplicated list of trimmed,
// non-empty strings in first-seen order.
func (u User) Roles() []string {
	if u.AppMetadata == nil {
		return []string{}
	}
	return UniqueStrings(u.AppMetadata["roles"])
}

// Status returns the first non-blank status string, user_metadata first.
func (u User) Status() string {
	for _, meta := range []map[string]any{u.UserMetadata, u.AppMetadata} {
		if s := StringField(meta, "status"); strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// Subscription returns a copy of user_metadata.subscription.
func (u User) Subscription() map[string]any {
	if u.UserMetadata == nil {
		return map[string]any{}
	}
	sub, _ := u.UserMetadata["subscription"].(map[string]any)
	return CloneMeta(sub)
}

// SubscriptionExpiry parses subscription.expires_at. The zero time means unset
// or unparsable.
func (u User) SubscriptionExpiry() time.Time {
	raw := StringField(u.Subscription(), "expires_at")
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// UniqueStrings accepts []any (as decoded from JSON) or []string.
func UniqueStrings(v any) []string {
	var in []string
	switch vals := v.(type) {
	case []string:
		in = vals
	case []any:
		for _, item := range vals {
			if s, ok := item.(string); ok {
				in = append(in, s)
			}
		}
	default:
		return []string{}
	}

	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func StringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// CloneMeta makes a shallow copy; nil becomes an empty map.
func CloneMeta(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
