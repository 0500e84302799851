package access

import "time"

// Role tags recognized in app_metadata.roles.
const (
	RoleAdmin    = "admin"
	RoleActive   = "active"
	RoleMember   = "member"
	RolePending  = "pending"
	RoleBlocked  = "blocked"
	RoleInactive = "inactive"

	RoleHour     = "hour"
	RoleDay      = "day"
	RoleWeek     = "week"
	RoleMonth    = "month"
	RoleHalfYear = "halfyear"
	RoleYear     = "year"
)

// Provenance names where an account's active status comes from.
type Provenance string

const (
	ProvenanceAdmin  Provenance = "admin"
	ProvenanceStatus Provenance = "status"
	ProvenanceTimed  Provenance = "timed"
	ProvenanceManual Provenance = "manual"
)

// rank orders provenances from strongest to weakest.
var rank = map[Provenance]int{
	ProvenanceAdmin:  0,
	ProvenanceStatus: 1,
	ProvenanceTimed:  2,
	ProvenanceManual: 3,
}

// Grant is one reason an account is allowed in.
type Grant struct {
	Provenance Provenance `json:"provenance"`
	// Role and ExpiresAt are set for timed grants only.
	Role      string    `json:"role,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Decision is the resolved access state of an account at a point in time.
type Decision struct {
	Active  bool    `json:"active"`
	Blocked bool    `json:"blocked,omitempty"`
	Grants  []Grant `json:"grants"`
}

// Strongest returns the highest-precedence grant:
// admin > status > timed > manual.
func (d Decision) Strongest() (Grant, bool) {
	if len(d.Grants) == 0 {
		return Grant{}, false
	}
	best := d.Grants[0]
	for _, g := range d.Grants[1:] {
		if rank[g.Provenance] < rank[best.Provenance] {
			best = g
		}
	}
	return best, true
}

// Injected reports whether the account is active only because of a timed
// grant. Such an active tag is revoked when the timed grant lapses.
func (d Decision) Injected() bool {
	if !d.Active || len(d.Grants) == 0 {
		return false
	}
	for _, g := range d.Grants {
		if g.Provenance != ProvenanceTimed {
			return false
		}
	}
	return true
}
