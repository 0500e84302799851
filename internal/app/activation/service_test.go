package activation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"membergate/internal/domain/access"
	"membergate/internal/domain/billing"
	"membergate/internal/domain/plans"
	"membergate/internal/domain/users"
	"membergate/internal/infra/accountlock"
	"membergate/internal/infra/identity"
)

var t0 = time.Date(2024, 2, 20, 10, 0, 0, 0, time.UTC)

func newService(t *testing.T, accounts Accounts) (*Service, *billing.MemoryLedger) {
	t.Helper()
	catalog := plans.DefaultCatalog()
	catalog.Lookup = func(env string) string { return "price_" + env }
	ledger := billing.NewMemoryLedger()
	s := New(accounts, accountlock.NewMemory(), catalog, ledger)
	s.Now = func() time.Time { return t0 }
	return s, ledger
}

func seed(store *identity.Memory, appMeta, userMeta map[string]any) users.User {
	return store.Put(users.User{ID: "u1", Email: "a@example.com", AppMetadata: appMeta, UserMetadata: userMeta})
}

func stored(t *testing.T, store *identity.Memory) *users.User {
	t.Helper()
	u, err := store.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	return u
}

func TestActivate_FreshAccount(t *testing.T) {
	store := identity.NewMemory()
	seed(store, map[string]any{"roles": []any{"member"}, "custom": "kept"}, nil)
	s, ledger := newService(t, store)

	_, exp, err := s.Activate(context.Background(), Purchase{
		Email: "A@example.com", PlanKey: " Month ", SessionID: "cs_1", PaymentIntentID: "pi_1",
		AmountTotal: 1500, Currency: "pln", PaymentStatus: "paid",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC), exp)

	u := stored(t, store)
	assert.Equal(t, []string{"member", "active"}, u.Roles())
	assert.Equal(t, "kept", u.AppMetadata["custom"])
	assert.Equal(t, "active", u.AppMetadata["status"])
	assert.Equal(t, "active", u.UserMetadata["status"])

	sub := u.Subscription()
	assert.Equal(t, "month", sub["plan_key"])
	assert.Equal(t, "2024-03-20T10:00:00.000Z", sub["expires_at"])
	assert.Equal(t, "2024-02-20T10:00:00.000Z", sub["activated_at"])
	assert.Equal(t, "cs_1", sub["last_session_id"])
	assert.Equal(t, "pi_1", sub["last_payment_intent"])

	require.Len(t, ledger.Payments, 1)
	assert.Equal(t, "u1", ledger.Payments[0].UserID)
	assert.Equal(t, "month", ledger.Payments[0].PlanKey)
	assert.Equal(t, exp, ledger.Payments[0].ExpiresAt)
}

func TestActivate_ExtendsUnexpiredSubscription(t *testing.T) {
	store := identity.NewMemory()
	seed(store, map[string]any{"roles": []any{"member", "active"}}, map[string]any{
		"subscription": map[string]any{"status": "active", "expires_at": "2024-03-01T00:00:00.000Z"},
	})
	s, _ := newService(t, store)

	_, exp, err := s.Activate(context.Background(), Purchase{Email: "a@example.com", PlanKey: "month", SessionID: "cs_2"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), exp)
	assert.Equal(t, []string{"member", "active"}, stored(t, store).Roles())
}

func TestActivate_Errors(t *testing.T) {
	store := identity.NewMemory()
	s, _ := newService(t, store)

	_, _, err := s.Activate(context.Background(), Purchase{Email: "nobody@example.com", PlanKey: "day"})
	assert.ErrorIs(t, err, identity.ErrNotFound)

	_, _, err = s.Activate(context.Background(), Purchase{Email: "a@example.com", PlanKey: "week"})
	assert.ErrorIs(t, err, plans.ErrUnknownPlan)
}

func TestExpireCheckout(t *testing.T) {
	store := identity.NewMemory()
	seed(store, map[string]any{"roles": []any{"member", "active"}, "status": "active"}, map[string]any{
		"status":       "active",
		"subscription": map[string]any{"status": "active", "last_session_id": "cs_1"},
	})
	s, _ := newService(t, store)

	wrote, err := s.ExpireCheckout(context.Background(), "a@example.com", "cs_other")
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.Equal(t, 0, store.Writes)

	wrote, err = s.ExpireCheckout(context.Background(), "a@example.com", "cs_1")
	require.NoError(t, err)
	assert.True(t, wrote)

	u := stored(t, store)
	assert.Equal(t, []string{"member"}, u.Roles())
	assert.Equal(t, "inactive", u.AppMetadata["status"])
	assert.Equal(t, "inactive", u.UserMetadata["status"])
	assert.Equal(t, "inactive", u.Subscription()["status"])
}

func TestCheck_ActiveAccount(t *testing.T) {
	store := identity.NewMemory()
	u := seed(store, map[string]any{"roles": []any{"member", "active"}}, map[string]any{
		"status": "active",
		"subscription": map[string]any{
			"plan_key": "month", "expires_at": "2024-02-23T10:00:00.000Z", "last_session_id": "cs_1",
		},
	})
	s, _ := newService(t, store)

	view, err := s.Check(context.Background(), u)
	require.NoError(t, err)
	assert.True(t, view.Active)
	assert.True(t, view.Unexpired)
	assert.Equal(t, "active", view.Status)
	assert.Equal(t, int64(3), view.DaysRemaining)
	assert.Equal(t, int64(3*86400), view.SecondsRemaining)
	require.NotNil(t, view.PlanLabel)
	assert.Equal(t, "1 month", *view.PlanLabel)
	assert.Equal(t, "3 days of subscription remaining.", view.Message)
	assert.Equal(t, 0, store.Writes)
}

func TestCheck_LapsedAccountIsDeactivated(t *testing.T) {
	store := identity.NewMemory()
	u := seed(store, map[string]any{"roles": []any{"member", "active"}, "status": "active"}, map[string]any{
		"status":       "active",
		"subscription": map[string]any{"status": "active", "expires_at": "2024-02-19T10:00:00.000Z"},
	})
	s, _ := newService(t, store)

	view, err := s.Check(context.Background(), u)
	require.NoError(t, err)
	assert.False(t, view.Active)
	assert.Equal(t, "inactive", view.Status)
	assert.Equal(t, "Subscription expired.", view.Message)

	fresh := stored(t, store)
	assert.Equal(t, []string{"member"}, fresh.Roles())
	assert.Equal(t, "expired", fresh.Subscription()["last_inactive_reason"])
	assert.Equal(t, 1, store.Writes)

	// A second check finds nothing left to change.
	_, err = s.Check(context.Background(), *fresh)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Writes)
}

func TestAssignTimedRole(t *testing.T) {
	store := identity.NewMemory()
	seed(store, map[string]any{
		"roles":        []any{"member", "day", "active"},
		"timed_access": map[string]any{"role": "day", "expires_at": "2024-02-21T10:00:00.000Z"},
	}, nil)
	s, _ := newService(t, store)

	_, err := s.AssignTimedRole(context.Background(), "a@example.com", "month")
	require.NoError(t, err)

	u := stored(t, store)
	assert.Equal(t, []string{"member", "active", "month"}, u.Roles())
	assert.NotContains(t, u.AppMetadata, "timed_access")

	_, err = s.AssignTimedRole(context.Background(), "a@example.com", "forever")
	assert.ErrorIs(t, err, ErrNotTimedRole)
}

func TestAssignTimedRole_DropsInjectedActive(t *testing.T) {
	store := identity.NewMemory()
	seed(store, map[string]any{"roles": []any{"member", "week"}}, nil)
	s, _ := newService(t, store)
	resolver := &access.Resolver{Now: func() time.Time { return t0 }, NewSessionID: func() string { return "sess" }}

	login := func() {
		t.Helper()
		u := stored(t, store)
		res := resolver.Resolve(*u)
		u.AppMetadata = res.AppMetadata
		store.Put(*u)
	}

	login()
	require.Equal(t, []string{"member", "week", "active"}, stored(t, store).Roles())

	_, err := s.AssignTimedRole(context.Background(), "a@example.com", "day")
	require.NoError(t, err)
	assert.Equal(t, []string{"member", "day"}, stored(t, store).Roles())

	login()
	u := stored(t, store)
	assert.Equal(t, []string{"member", "day", "active"}, u.Roles())
	assert.True(t, access.ParseTimedAccess(u.AppMetadata["timed_access"]).InjectedActive)

	// The admin revokes the timed tag; the grant's active must not outlive it.
	meta := users.CloneMeta(u.AppMetadata)
	meta["roles"] = []any{"member"}
	u.AppMetadata = meta
	store.Put(*u)
	login()

	u = stored(t, store)
	assert.NotContains(t, u.Roles(), "active")
	assert.False(t, access.Evaluate(*u, t0).Active)
}

// racingAccounts lets another writer touch the record right before each of
// the first n conditional updates.
type racingAccounts struct {
	*identity.Memory
	n int
}

func (r *racingAccounts) UpdateIfUnchanged(ctx context.Context, base users.User, patch identity.Patch) (*users.User, error) {
	if r.n > 0 {
		r.n--
		if _, err := r.Memory.Update(ctx, base.ID, identity.Patch{UserMetadata: map[string]any{"touched": r.n}}); err != nil {
			return nil, err
		}
	}
	return r.Memory.UpdateIfUnchanged(ctx, base, patch)
}

func TestMutate_RetriesOnConcurrentWrite(t *testing.T) {
	store := identity.NewMemory()
	seed(store, map[string]any{"roles": []any{"member"}}, nil)
	s, _ := newService(t, &racingAccounts{Memory: store, n: 2})

	_, _, err := s.Activate(context.Background(), Purchase{Email: "a@example.com", PlanKey: "day", SessionID: "cs_1"})
	require.NoError(t, err)

	u := stored(t, store)
	assert.Contains(t, u.Roles(), "active")
	assert.Contains(t, u.UserMetadata, "touched")
}

func TestMutate_GivesUpAfterMaxAttempts(t *testing.T) {
	store := identity.NewMemory()
	seed(store, map[string]any{"roles": []any{"member"}}, nil)
	s, _ := newService(t, &racingAccounts{Memory: store, n: maxAttempts})

	_, _, err := s.Activate(context.Background(), Purchase{Email: "a@example.com", PlanKey: "day", SessionID: "cs_1"})
	assert.ErrorIs(t, err, ErrStaleRecord)
	assert.NotContains(t, stored(t, store).Roles(), "active")
}
