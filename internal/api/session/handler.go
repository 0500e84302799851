package session

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"membergate/internal/app/http/middleware"
	"membergate/internal/app/sessionguard"
	"membergate/internal/infra/identity"
	"membergate/internal/observability/logger"
)

// HeaderSessionID carries the session id the browser cached at login.
const HeaderSessionID = "X-Session-Id"

type Handler struct {
	Accounts sessionguard.CurrentUserFetcher
	Now      func() time.Time
}

func New(accounts sessionguard.CurrentUserFetcher) *Handler {
	return &Handler{Accounts: accounts, Now: time.Now}
}

// Check is the server side of the browser's single-session loop.
func (h *Handler) Check(c *gin.Context) {
	token := c.GetString(middleware.CtxAccessToken)
	local := strings.TrimSpace(c.GetHeader(HeaderSessionID))

	res := sessionguard.Verify(c.Request.Context(), h.Accounts, token, local, h.Now())
	if !res.OK {
		logger.From(c.Request.Context()).Info("session check failed",
			zap.String("reason", res.Reason), logger.SessionID(res.SessionID))
	}
	c.JSON(http.StatusOK, res)
}

// Timed returns the countdown of the caller's timed role.
func (h *Handler) Timed(c *gin.Context) {
	ctx := c.Request.Context()
	u, err := h.Accounts.CurrentUser(ctx, c.GetString(middleware.CtxAccessToken))
	if errors.Is(err, identity.ErrUnauthorized) || errors.Is(err, identity.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	if err != nil {
		logger.From(ctx).Error("timed access lookup failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Identity service unavailable"})
		return
	}
	c.JSON(http.StatusOK, BuildTimedDTO(*u, h.Now()))
}
