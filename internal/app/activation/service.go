// Package activation owns every write this service makes to an account
// record outside the login transaction. Writes run under a per-account lock
// and are re-validated against the stored version before they land.
package activation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"membergate/internal/domain/billing"
	"membergate/internal/domain/plans"
	"membergate/internal/domain/users"
	"membergate/internal/infra/accountlock"
	"membergate/internal/infra/identity"
	"membergate/internal/metrics"
	"membergate/internal/observability/logger"
)

// ErrStaleRecord means the record kept changing under us for every attempt.
var ErrStaleRecord = errors.New("account record changed during update")

const maxAttempts = 3

// Accounts is the part of the identity client the service writes through.
type Accounts interface {
	FindByEmail(ctx context.Context, email string) (*users.User, error)
	GetByID(ctx context.Context, id string) (*users.User, error)
	UpdateIfUnchanged(ctx context.Context, base users.User, patch identity.Patch) (*users.User, error)
}

type Service struct {
	Accounts Accounts
	Locks    accountlock.Locker
	Catalog  *plans.Catalog
	// Ledger is optional; without it payments are not recorded.
	Ledger billing.Ledger
	Now    func() time.Time
}

func New(accounts Accounts, locks accountlock.Locker, catalog *plans.Catalog, ledger billing.Ledger) *Service {
	if locks == nil {
		locks = accountlock.NewMemory()
	}
	if catalog == nil {
		catalog = plans.DefaultCatalog()
	}
	return &Service{
		Accounts: accounts,
		Locks:    locks,
		Catalog:  catalog,
		Ledger:   ledger,
		Now:      time.Now,
	}
}

// change computes the patch for a fresh copy of the record. A nil patch means
// the record already needs nothing.
type change func(u users.User) (*identity.Patch, error)

func (s *Service) mutate(ctx context.Context, u users.User, action string, fn change) (*users.User, error) {
	release, err := s.Locks.Lock(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	current := u
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			fresh, err := s.Accounts.GetByID(ctx, u.ID)
			if err != nil {
				return nil, fmt.Errorf("reload account %s: %w", u.ID, err)
			}
			current = *fresh
		}

		patch, err := fn(current)
		if err != nil {
			return nil, err
		}
		if patch == nil {
			return &current, nil
		}

		updated, err := s.Accounts.UpdateIfUnchanged(ctx, current, *patch)
		if errors.Is(err, identity.ErrConflict) {
			logger.From(ctx).Debug("account changed concurrently, retrying",
				logger.UserID(u.ID), zap.String("action", action), zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update account %s: %w", u.ID, err)
		}
		metrics.Transitions.WithLabelValues(action).Inc()
		return updated, nil
	}
	return nil, fmt.Errorf("%w: %s after %d attempts", ErrStaleRecord, u.ID, maxAttempts)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func withoutRole(roles []string, role string) []any {
	out := make([]any, 0, len(roles))
	for _, r := range roles {
		if r != role {
			out = append(out, r)
		}
	}
	return out
}

func withRole(roles []string, role string) []any {
	out := withoutRole(roles, role)
	return append(out, role)
}
