package sessionguard

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"membergate/internal/domain/access"
	"membergate/internal/domain/users"
	"membergate/internal/infra/identity"
	"membergate/internal/observability/logger"
)

// Logout reasons. The landing page tells them apart by the redirect.
const (
	ReasonNoUser          = "no_user"
	ReasonSessionMismatch = "session_mismatch"
	ReasonInactive        = "inactive"

	RedirectLoggedOut    = "/login/?loggedout=1"
	RedirectUnauthorized = "/login/?unauthorized=1"
)

// Result is the outcome of one session check.
type Result struct {
	OK        bool   `json:"ok"`
	Reason    string `json:"reason"`
	Redirect  string `json:"redirect,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// CurrentUserFetcher resolves the account behind a browser access token.
type CurrentUserFetcher interface {
	CurrentUser(ctx context.Context, accessToken string) (*users.User, error)
}

// Verify re-reads the account and decides whether the local session may
// continue. Fetch failures other than a rejected token keep the session.
func Verify(ctx context.Context, fetcher CurrentUserFetcher, token, localSessionID string, now time.Time) Result {
	u, err := fetcher.CurrentUser(ctx, token)
	if err != nil {
		if errors.Is(err, identity.ErrUnauthorized) || errors.Is(err, identity.ErrNotFound) {
			return Result{Reason: ReasonNoUser, Redirect: RedirectLoggedOut}
		}
		logger.From(ctx).Warn("session check fetch failed, keeping session", zap.Error(err))
		return Result{OK: true}
	}

	serverID := users.StringField(u.AppMetadata, "session_id")
	if access.SessionSuperseded(serverID, localSessionID) {
		return Result{Reason: ReasonSessionMismatch, Redirect: RedirectLoggedOut, SessionID: serverID}
	}
	if !access.Evaluate(*u, now).Active {
		return Result{Reason: ReasonInactive, Redirect: RedirectUnauthorized, SessionID: serverID}
	}
	return Result{OK: true, SessionID: serverID}
}
