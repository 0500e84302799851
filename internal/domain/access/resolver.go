package access

import (
	"time"

	"membergate/internal/domain/users"

	"github.com/google/uuid"
)

// Resolution is the outcome of a login-time resolution.
type Resolution struct {
	// AppMetadata is the full replacement app_metadata: every key of the
	// input is carried over, and status, roles, session_id and (when
	// relevant) timed_access are overwritten.
	AppMetadata map[string]any
	Status      string
	Roles       []string
	SessionID   string
	// Timed is nil when no timed role is selected.
	Timed    *TimedAccess
	Decision Decision
}

// Resolver derives the effective roles of an account at login.
type Resolver struct {
	Now          func() time.Time
	NewSessionID func() string
}

func NewResolver() *Resolver {
	return &Resolver{
		Now:          time.Now,
		NewSessionID: uuid.NewString,
	}
}

// Resolve computes the next app_metadata for u. It performs no I/O; the
// caller persists the returned metadata.
func (r *Resolver) Resolve(u users.User) Resolution {
	now := r.Now().UTC()
	appMeta := users.CloneMeta(u.AppMetadata)

	roles := u.Roles()
	statusRaw := u.Status()
	isAdmin := hasRole(roles, RoleAdmin)
	statusActive := isAdmin || IsActiveStatus(statusRaw)

	existing := ParseTimedAccess(appMeta["timed_access"])

	// An existing active tag is manual unless the stored window says a timed
	// grant put it there.
	manualActiveBefore := hasRole(roles, RoleActive) && !existing.InjectedActive

	selected := SelectTimedRole(roles)
	window := TimedAccess{}
	if selected != "" {
		window = existing
		window.Role = selected
		reusable := existing.Role == selected &&
			!existing.AssignedAt.IsZero() &&
			!existing.ExpiresAt.IsZero() &&
			existing.ExpiresAt.After(now)
		if !reusable {
			d, _ := TimedRoleDuration(selected)
			window.AssignedAt = now
			window.ExpiresAt = now.Add(d)
		}
	}
	timedActive := selected != "" && window.ExpiresAt.After(now)

	decision := Decision{}
	if isAdmin {
		decision.Grants = append(decision.Grants, Grant{Provenance: ProvenanceAdmin})
	}
	if statusActive && !isAdmin {
		decision.Grants = append(decision.Grants, Grant{Provenance: ProvenanceStatus})
	}
	if timedActive {
		decision.Grants = append(decision.Grants, Grant{Provenance: ProvenanceTimed, Role: selected, ExpiresAt: window.ExpiresAt})
	}
	if manualActiveBefore {
		decision.Grants = append(decision.Grants, Grant{Provenance: ProvenanceManual})
	}
	decision.Active = len(decision.Grants) > 0

	next := make([]string, 0, len(roles)+2)
	for _, role := range roles {
		if IsTimedRole(role) || role == RoleActive {
			continue
		}
		next = append(next, role)
	}
	if timedActive {
		next = append(next, selected)
	}
	if decision.Active {
		next = append(next, RoleActive)
	}
	next = uniqueOrdered(next)

	sessionID := r.NewSessionID()
	previous := users.StringField(u.AppMetadata, "session_id")
	for sessionID == previous {
		sessionID = r.NewSessionID()
	}

	status := statusRaw
	if status == "" {
		status = users.StringField(appMeta, "status")
	}

	appMeta["status"] = status
	appMeta["roles"] = next
	appMeta["session_id"] = sessionID

	res := Resolution{
		AppMetadata: appMeta,
		Status:      status,
		Roles:       next,
		SessionID:   sessionID,
		Decision:    decision,
	}

	if selected != "" {
		window.Active = timedActive
		window.InjectedActive = decision.Injected()
		res.Timed = &window
		appMeta["timed_access"] = window.Map()
	} else if _, had := u.AppMetadata["timed_access"]; had {
		appMeta["timed_access"] = nil
	}

	return res
}
