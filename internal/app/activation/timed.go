package activation

import (
	"context"
	"errors"
	"fmt"

	"membergate/internal/domain/access"
	"membergate/internal/domain/users"
	"membergate/internal/infra/identity"
)

var ErrNotTimedRole = errors.New("not a timed role")

// AssignTimedRole replaces the account's timed-role tags with role and drops
// the stored window, so the next login mints a fresh one. An active tag the
// old window injected goes with it.
func (s *Service) AssignTimedRole(ctx context.Context, email, role string) (*users.User, error) {
	if !access.IsTimedRole(role) {
		return nil, fmt.Errorf("%w: %q", ErrNotTimedRole, role)
	}
	u, err := s.Accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, *u, "timed_role", func(cur users.User) (*identity.Patch, error) {
		injected := access.ParseTimedAccess(cur.AppMetadata["timed_access"]).InjectedActive
		roles := make([]any, 0, len(cur.Roles())+1)
		for _, r := range cur.Roles() {
			if access.IsTimedRole(r) || (injected && r == access.RoleActive) {
				continue
			}
			roles = append(roles, r)
		}
		roles = append(roles, role)

		appMeta := users.CloneMeta(cur.AppMetadata)
		appMeta["roles"] = roles
		appMeta["timed_access"] = nil
		return &identity.Patch{AppMetadata: appMeta}, nil
	})
}
