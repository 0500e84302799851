package access

import (
	"time"

	"membergate/internal/domain/users"
)

// Evaluate is the read-only counterpart of Resolve used while a session is
// alive: it never mints a window or rotates the session id. Precedence is
// admin > status > live timed role > surviving manual active.
func Evaluate(u users.User, now time.Time) Decision {
	roles := u.Roles()
	d := Decision{}

	if hasRole(roles, RoleAdmin) {
		d.Grants = append(d.Grants, Grant{Provenance: ProvenanceAdmin})
		d.Active = true
		return d
	}
	if hasRole(roles, RoleBlocked) || hasRole(roles, RoleInactive) {
		d.Blocked = true
		return d
	}

	if IsActiveStatus(u.Status()) {
		d.Grants = append(d.Grants, Grant{Provenance: ProvenanceStatus})
	}

	timed := ParseTimedAccess(u.AppMetadata["timed_access"])
	if IsTimedRole(timed.Role) && hasRole(roles, timed.Role) && timed.LiveAt(now) {
		d.Grants = append(d.Grants, Grant{Provenance: ProvenanceTimed, Role: timed.Role, ExpiresAt: timed.ExpiresAt})
	}

	if hasRole(roles, RoleActive) && !timed.InjectedActive {
		d.Grants = append(d.Grants, Grant{Provenance: ProvenanceManual})
	}

	d.Active = len(d.Grants) > 0
	return d
}

// SessionSuperseded reports whether the server's session id proves that a
// newer login replaced the locally cached one. Missing ids prove nothing.
func SessionSuperseded(serverID, localID string) bool {
	return serverID != "" && localID != "" && serverID != localID
}
