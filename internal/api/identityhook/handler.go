package identityhook

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"membergate/internal/domain/access"
	"membergate/internal/domain/users"
	"membergate/internal/metrics"
	"membergate/internal/observability/logger"
)

const maxBody = 1 << 20

// Handler answers the identity provider's synchronous lifecycle webhooks.
// The response body's app_metadata replaces the stored one.
type Handler struct {
	Resolver          *access.Resolver
	EnforceLoginBlock bool
	DefaultRole       string
}

func New(resolver *access.Resolver, enforceLoginBlock bool, defaultRole string) *Handler {
	if resolver == nil {
		resolver = access.NewResolver()
	}
	if defaultRole == "" {
		defaultRole = access.RoleMember
	}
	return &Handler{Resolver: resolver, EnforceLoginBlock: enforceLoginBlock, DefaultRole: defaultRole}
}

type webhookPayload struct {
	Event string     `json:"event"`
	User  users.User `json:"user"`
}

func readPayload(c *gin.Context) (webhookPayload, error) {
	var p webhookPayload
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBody))
	if err != nil {
		return p, err
	}
	if len(raw) == 0 {
		return p, nil
	}
	err = json.Unmarshal(raw, &p)
	return p, err
}

// Login rotates the session id and recomputes roles and the timed window.
// Failures answer a generic 500 and never a partial app_metadata.
func (h *Handler) Login(c *gin.Context) {
	log := logger.From(c.Request.Context())
	defer func() {
		if r := recover(); r != nil {
			log.Error("login webhook panicked", zap.Any("panic", r))
			metrics.Logins.WithLabelValues("failed").Inc()
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Login failed."})
		}
	}()

	p, err := readPayload(c)
	if err != nil {
		log.Warn("login webhook payload rejected", zap.Error(err))
		metrics.Logins.WithLabelValues("failed").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed."})
		return
	}

	res := h.Resolver.Resolve(p.User)
	log = log.With(logger.UserID(p.User.ID), logger.SessionID(res.SessionID))

	if h.EnforceLoginBlock {
		resolved := users.User{AppMetadata: res.AppMetadata, UserMetadata: p.User.UserMetadata}
		if !access.Evaluate(resolved, h.Resolver.Now()).Active {
			log.Info("login blocked for inactive account")
			metrics.Logins.WithLabelValues("blocked").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": "account inactive"})
			return
		}
	}

	strongest, _ := res.Decision.Strongest()
	log.Info("login resolved",
		zap.Bool("active", res.Decision.Active),
		zap.String("provenance", string(strongest.Provenance)),
		zap.Strings("roles", res.Roles))
	metrics.Logins.WithLabelValues("resolved").Inc()

	c.JSON(http.StatusOK, gin.H{"app_metadata": res.AppMetadata})
}

// Signup adds the default role to new accounts. It never blocks a signup:
// any failure answers 200 with an empty body so invited users still get in.
func (h *Handler) Signup(c *gin.Context) {
	p, err := readPayload(c)
	if err != nil {
		logger.From(c.Request.Context()).Warn("signup webhook payload rejected", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{})
		return
	}

	appMeta := users.CloneMeta(p.User.AppMetadata)
	roles := users.UniqueStrings(appMeta["roles"])
	roles = users.UniqueStrings(append(roles, h.DefaultRole))
	appMeta["roles"] = roles

	logger.From(c.Request.Context()).Info("signup roles assigned", logger.UserID(p.User.ID), zap.Strings("roles", roles))
	c.JSON(http.StatusOK, gin.H{"app_metadata": appMeta})
}
