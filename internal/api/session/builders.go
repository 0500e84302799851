package session

import (
	"slices"
	"time"

	"membergate/internal/domain/access"
	"membergate/internal/domain/billing"
	"membergate/internal/domain/users"
)

const (
	msgPermanent = "This account has permanent access."
	msgNoTimed   = "No active timed role on this account."
)

// BuildTimedDTO reads the stored window only; it never mints one.
func BuildTimedDTO(u users.User, now time.Time) TimedDTO {
	roles := u.Roles()
	timed := access.ParseTimedAccess(u.AppMetadata["timed_access"])
	if !access.IsTimedRole(timed.Role) {
		if slices.Contains(roles, access.RoleAdmin) || slices.Contains(roles, access.RoleActive) || access.IsActiveStatus(u.Status()) {
			return TimedDTO{Permanent: true, Active: true, Message: msgPermanent}
		}
		return TimedDTO{Message: msgNoTimed}
	}
	if !slices.Contains(roles, timed.Role) {
		return TimedDTO{Message: msgNoTimed}
	}

	dto := TimedDTO{Role: timed.Role, Label: access.TimedRoleLabel(timed.Role)}
	if timed.ExpiresAt.IsZero() {
		return dto
	}
	exp := timed.ExpiresAt
	dto.ExpiresAt = &exp

	left := billing.CalculateTimeLeft(now, exp)
	if left.Expired {
		dto.Remaining = billing.FormatDuration(0)
		return dto
	}
	dto.Active = true
	dto.RemainingSeconds = left.Seconds
	dto.Remaining = billing.FormatDuration(left.Total)
	return dto
}
