package access

import (
	"fmt"
	"testing"
	"time"

	"membergate/internal/domain/users"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

func fixedResolver(now time.Time) *Resolver {
	n := 0
	return &Resolver{
		Now: func() time.Time { return now },
		NewSessionID: func() string {
			n++
			return fmt.Sprintf("sess-%d", n)
		},
	}
}

func userWith(app map[string]any, userMeta map[string]any) users.User {
	return users.User{ID: "u1", Email: "a@example.com", AppMetadata: app, UserMetadata: userMeta}
}

func iso(t time.Time) string { return t.UTC().Format(TimestampLayout) }

func TestResolve_MemberWithoutGrants(t *testing.T) {
	u := userWith(map[string]any{"roles": []any{"member"}, "status": ""}, nil)

	res := fixedResolver(t0).Resolve(u)

	assert.Equal(t, []string{"member"}, res.Roles)
	assert.NotEmpty(t, res.SessionID)
	assert.Nil(t, res.Timed)
	_, hasTimed := res.AppMetadata["timed_access"]
	assert.False(t, hasTimed, "timed_access must stay unset")
	assert.False(t, res.Decision.Active)
}

func TestResolve_FreshWeekGrant(t *testing.T) {
	u := userWith(map[string]any{"roles": []any{"week"}}, nil)

	res := fixedResolver(t0).Resolve(u)

	assert.Equal(t, []string{"week", "active"}, res.Roles)
	require.NotNil(t, res.Timed)
	assert.Equal(t, "week", res.Timed.Role)
	assert.Equal(t, t0, res.Timed.AssignedAt)
	assert.Equal(t, t0.Add(7*24*time.Hour), res.Timed.ExpiresAt)
	assert.True(t, res.Timed.Active)
	assert.True(t, res.Timed.InjectedActive)

	stored := res.AppMetadata["timed_access"].(map[string]any)
	assert.Equal(t, iso(t0), stored["assigned_at"])
	assert.Equal(t, iso(t0.Add(7*24*time.Hour)), stored["expires_at"])
	assert.Equal(t, true, stored["injected_active"])
}

func TestResolve_AdminAlwaysActive(t *testing.T) {
	cases := []map[string]any{
		{"roles": []any{"admin"}},
		{"roles": []any{"admin", "blocked"}, "status": "inactive"},
		{"roles": []any{"admin", "day"}, "timed_access": map[string]any{
			"role": "day", "assigned_at": iso(t0.Add(-48 * time.Hour)), "expires_at": iso(t0.Add(-24 * time.Hour)), "injected_active": true,
		}},
	}
	for i, app := range cases {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			res := fixedResolver(t0).Resolve(userWith(app, nil))
			assert.Contains(t, res.Roles, RoleActive)
			if res.Timed != nil {
				assert.False(t, res.Timed.InjectedActive)
			}
		})
	}
}

func TestResolve_ReusesLiveWindow(t *testing.T) {
	assigned := t0.Add(-2 * time.Hour)
	expires := t0.Add(22 * time.Hour)
	u := userWith(map[string]any{
		"roles": []any{"day", "active"},
		"timed_access": map[string]any{
			"role": "day", "assigned_at": iso(assigned), "expires_at": iso(expires),
			"active": true, "injected_active": true,
		},
	}, nil)

	res := fixedResolver(t0).Resolve(u)

	require.NotNil(t, res.Timed)
	assert.Equal(t, assigned, res.Timed.AssignedAt)
	assert.Equal(t, expires, res.Timed.ExpiresAt)
	assert.Equal(t, []string{"day", "active"}, res.Roles)
	assert.True(t, res.Timed.InjectedActive)
}

func TestResolve_ReusesWindowStoredAsEpochMillis(t *testing.T) {
	assigned := t0.Add(-time.Minute)
	expires := t0.Add(59 * time.Minute)
	u := userWith(map[string]any{
		"roles": []any{"hour"},
		"timed_access": map[string]any{
			"role": "hour", "assigned_at": float64(assigned.UnixMilli()), "expires_at": float64(expires.UnixMilli()),
		},
	}, nil)

	res := fixedResolver(t0).Resolve(u)

	require.NotNil(t, res.Timed)
	assert.True(t, res.Timed.ExpiresAt.Equal(expires))
}

func TestResolve_MintsAfterExpiredWindow(t *testing.T) {
	u := userWith(map[string]any{
		"roles": []any{"week"},
		"timed_access": map[string]any{
			"role": "week", "assigned_at": iso(t0.Add(-10 * 24 * time.Hour)), "expires_at": iso(t0.Add(-3 * 24 * time.Hour)),
		},
	}, nil)

	res := fixedResolver(t0).Resolve(u)

	require.NotNil(t, res.Timed)
	assert.Equal(t, t0, res.Timed.AssignedAt)
	assert.Equal(t, t0.Add(7*24*time.Hour), res.Timed.ExpiresAt)
}

func TestResolve_MintsWhenStoredRoleDiffers(t *testing.T) {
	u := userWith(map[string]any{
		"roles": []any{"month"},
		"timed_access": map[string]any{
			"role": "day", "assigned_at": iso(t0.Add(-time.Hour)), "expires_at": iso(t0.Add(time.Hour)),
		},
	}, nil)

	res := fixedResolver(t0).Resolve(u)

	require.NotNil(t, res.Timed)
	assert.Equal(t, "month", res.Timed.Role)
	assert.Equal(t, t0.Add(30*24*time.Hour), res.Timed.ExpiresAt)
}

func TestResolve_LongestTimedRoleWins(t *testing.T) {
	cases := []struct {
		roles []any
		want  string
		drop  string
	}{
		{[]any{"year", "hour"}, "year", "hour"},
		{[]any{"hour", "year"}, "year", "hour"},
		{[]any{"day", "week"}, "week", "day"},
		{[]any{"halfyear", "month"}, "halfyear", "month"},
		{[]any{"week", "month"}, "month", "week"},
	}
	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			res := fixedResolver(t0).Resolve(userWith(map[string]any{"roles": tc.roles}, nil))
			require.NotNil(t, res.Timed)
			assert.Equal(t, tc.want, res.Timed.Role)
			assert.Contains(t, res.Roles, tc.want)
			assert.NotContains(t, res.Roles, tc.drop)
		})
	}
}

func TestResolve_InjectedActiveDoesNotSurviveLapsedGrant(t *testing.T) {
	u := userWith(map[string]any{
		"roles": []any{"member", "active"},
		"timed_access": map[string]any{
			"role": "week", "assigned_at": iso(t0.Add(-8 * 24 * time.Hour)), "expires_at": iso(t0.Add(-24 * time.Hour)),
			"active": true, "injected_active": true,
		},
	}, nil)

	res := fixedResolver(t0).Resolve(u)

	assert.Equal(t, []string{"member"}, res.Roles)
	assert.Nil(t, res.Timed)
	v, ok := res.AppMetadata["timed_access"]
	assert.True(t, ok)
	assert.Nil(t, v, "stale window is cleared with an explicit null")
}

func TestResolve_ManualActiveSurvivesLapsedGrant(t *testing.T) {
	for _, injected := range []any{false, nil} {
		window := map[string]any{
			"role": "week", "assigned_at": iso(t0.Add(-8 * 24 * time.Hour)), "expires_at": iso(t0.Add(-24 * time.Hour)),
		}
		if injected != nil {
			window["injected_active"] = injected
		}
		u := userWith(map[string]any{"roles": []any{"member", "active"}, "timed_access": window}, nil)

		res := fixedResolver(t0).Resolve(u)

		assert.Contains(t, res.Roles, RoleActive)
		assert.False(t, res.Decision.Injected())
	}
}

func TestResolve_ManualActiveWithLiveTimedRoleIsNotInjected(t *testing.T) {
	u := userWith(map[string]any{"roles": []any{"active", "day"}}, nil)

	res := fixedResolver(t0).Resolve(u)

	assert.Equal(t, []string{"day", "active"}, res.Roles)
	require.NotNil(t, res.Timed)
	assert.False(t, res.Timed.InjectedActive)
}

func TestResolve_StatusActivates(t *testing.T) {
	for _, status := range []string{"active", " Aktywny ", "APPROVED", "enabled", "admin"} {
		res := fixedResolver(t0).Resolve(userWith(map[string]any{"roles": []any{"member"}}, map[string]any{"status": status}))
		assert.Equal(t, []string{"member", "active"}, res.Roles, status)
		assert.Equal(t, users.User{UserMetadata: map[string]any{"status": status}}.Status(), res.Status)
	}
}

func TestResolve_StatusPrefersUserMetadata(t *testing.T) {
	u := userWith(map[string]any{"status": "inactive"}, map[string]any{"status": "active"})

	res := fixedResolver(t0).Resolve(u)

	assert.Equal(t, "active", res.Status)
	assert.Contains(t, res.Roles, RoleActive)
}

func TestResolve_RotatesSessionID(t *testing.T) {
	u := userWith(map[string]any{"roles": []any{"member"}, "session_id": "sess-1"}, nil)

	res := fixedResolver(t0).Resolve(u)

	assert.NotEqual(t, "sess-1", res.SessionID)
	assert.Equal(t, res.SessionID, res.AppMetadata["session_id"])

	real := NewResolver()
	a := real.Resolve(u)
	b := real.Resolve(userWith(a.AppMetadata, nil))
	assert.NotEqual(t, a.SessionID, b.SessionID)
}

func TestResolve_PassesThroughUnknownKeys(t *testing.T) {
	u := userWith(map[string]any{
		"roles":    []any{" member ", "member", "", 7},
		"provider": "email",
		"plan":     map[string]any{"key": "year"},
	}, nil)

	res := fixedResolver(t0).Resolve(u)

	assert.Equal(t, "email", res.AppMetadata["provider"])
	assert.Equal(t, map[string]any{"key": "year"}, res.AppMetadata["plan"])
	assert.Equal(t, []string{"member"}, res.Roles)
	_, touched := u.AppMetadata["session_id"]
	assert.False(t, touched, "input metadata must not be mutated")
}

func TestResolve_MalformedTimedAccessIsEmpty(t *testing.T) {
	u := userWith(map[string]any{"roles": []any{"day"}, "timed_access": "garbage"}, nil)

	res := fixedResolver(t0).Resolve(u)

	require.NotNil(t, res.Timed)
	assert.Equal(t, t0, res.Timed.AssignedAt)
	assert.True(t, res.Timed.InjectedActive)
}
