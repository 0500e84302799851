package admin

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"membergate/internal/app/activation"
	"membergate/internal/app/http/middleware"
	"membergate/internal/domain/access"
	"membergate/internal/domain/billing"
	"membergate/internal/infra/identity"
	"membergate/internal/observability/logger"
)

type Handler struct {
	Service  *activation.Service
	Resolver *access.Resolver
	// Ledger is nil when no database is configured.
	Ledger billing.Ledger
	Now    func() time.Time
}

func New(svc *activation.Service, resolver *access.Resolver, ledger billing.Ledger) *Handler {
	return &Handler{Service: svc, Resolver: resolver, Ledger: ledger, Now: time.Now}
}

func (h *Handler) Dashboard(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Welcome to the admin dashboard",
		"email":   c.GetString(middleware.CtxEmail),
	})
}

// AccountAccess shows the evaluated decision and a dry run of the login
// resolver. Nothing is written.
func (h *Handler) AccountAccess(c *gin.Context) {
	email := identity.NormalizeEmail(c.Param("email"))
	u, err := h.Service.Accounts.FindByEmail(c.Request.Context(), email)
	if err != nil {
		h.lookupFailed(c, err)
		return
	}

	res := h.Resolver.Resolve(*u)
	preview := AccessPreview{Status: res.Status, Roles: res.Roles, Decision: res.Decision}
	if res.Timed != nil {
		preview.TimedAccess = res.Timed.Map()
	}

	c.JSON(http.StatusOK, AccountAccess{
		ID:        u.ID,
		Email:     email,
		Status:    u.Status(),
		Roles:     u.Roles(),
		Decision:  access.Evaluate(*u, h.Now()),
		NextLogin: preview,
	})
}

type timedRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (h *Handler) AssignTimedRole(c *gin.Context) {
	var req timedRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role is required"})
		return
	}

	email := identity.NormalizeEmail(c.Param("email"))
	u, err := h.Service.AssignTimedRole(c.Request.Context(), email, req.Role)
	if errors.Is(err, activation.ErrNotTimedRole) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.lookupFailed(c, err)
		return
	}

	logger.From(c.Request.Context()).Info("timed role assigned",
		logger.Email(email), zap.String("role", req.Role), zap.String("by", c.GetString(middleware.CtxEmail)))
	c.JSON(http.StatusOK, gin.H{"email": email, "roles": u.Roles()})
}

func (h *Handler) AccountPayments(c *gin.Context) {
	if h.Ledger == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payment ledger not configured"})
		return
	}
	email := identity.NormalizeEmail(c.Param("email"))
	payments, err := h.Ledger.PaymentsFor(c.Request.Context(), email)
	if err != nil {
		logger.From(c.Request.Context()).Error("load payments failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load payments"})
		return
	}

	result := make([]AdminPayment, 0, len(payments))
	for _, p := range payments {
		result = append(result, toAdminPayment(p))
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) lookupFailed(c *gin.Context, err error) {
	if errors.Is(err, identity.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		return
	}
	if errors.Is(err, activation.ErrStaleRecord) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	logger.From(c.Request.Context()).Error("admin account operation failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}
