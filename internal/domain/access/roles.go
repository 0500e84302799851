package access

import (
	"slices"
	"strings"
	"time"
)

// Nominal durations of timed roles. These are fixed lengths, unlike the
// calendar arithmetic used for purchased plans.
var timedRoleDurations = map[string]time.Duration{
	RoleHour:     time.Hour,
	RoleDay:      24 * time.Hour,
	RoleWeek:     7 * 24 * time.Hour,
	RoleMonth:    30 * 24 * time.Hour,
	RoleHalfYear: 182 * 24 * time.Hour,
	RoleYear:     365 * 24 * time.Hour,
}

var timedRoleLabels = map[string]string{
	RoleHour:     "1 hour access",
	RoleDay:      "1 day access",
	RoleWeek:     "7 days access",
	RoleMonth:    "1 month access",
	RoleHalfYear: "6 months access",
	RoleYear:     "12 months access",
}

var activeStatuses = map[string]struct{}{
	"active":   {},
	"aktywny":  {},
	"approved": {},
	"enabled":  {},
	"admin":    {},
}

func IsTimedRole(role string) bool {
	_, ok := timedRoleDurations[role]
	return ok
}

// TimedRoleDuration returns the nominal length of a timed role.
func TimedRoleDuration(role string) (time.Duration, bool) {
	d, ok := timedRoleDurations[role]
	return d, ok
}

// TimedRoleLabel is the display name of a timed role; unknown roles are
// returned as is.
func TimedRoleLabel(role string) string {
	if l, ok := timedRoleLabels[role]; ok {
		return l
	}
	return role
}

func NormalizeStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsActiveStatus reports whether a free-text status is one of the active synonyms.
func IsActiveStatus(s string) bool {
	_, ok := activeStatuses[NormalizeStatus(s)]
	return ok
}

// TimedRoles returns the timed-role tags present in roles, in order.
func TimedRoles(roles []string) []string {
	out := []string{}
	for _, r := range roles {
		if IsTimedRole(r) {
			out = append(out, r)
		}
	}
	return out
}

// SelectTimedRole picks the timed role with the longest nominal duration.
// Duration, not position, decides.
func SelectTimedRole(roles []string) string {
	selected := ""
	for _, r := range TimedRoles(roles) {
		if selected == "" || timedRoleDurations[r] >= timedRoleDurations[selected] {
			selected = r
		}
	}
	return selected
}

func hasRole(roles []string, role string) bool {
	return slices.Contains(roles, role)
}

func uniqueOrdered(roles []string) []string {
	seen := make(map[string]struct{}, len(roles))
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
