package billing

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"membergate/internal/domain/plans"
	"membergate/internal/infra/identity"
	stripeinfra "membergate/internal/infra/stripe"
	"membergate/internal/metrics"
	"membergate/internal/observability/logger"
)

const (
	defaultSuccessPath = "/activation/?success=1&session_id={CHECKOUT_SESSION_ID}"
	defaultCancelPath  = "/activation/?cancelled=1"
)

func (h *Handler) checkout(c *gin.Context, req request) {
	if h.Gateway == nil {
		metrics.Checkouts.WithLabelValues("not_configured").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Stripe is not configured. Set STRIPE_SECRET_KEY."})
		return
	}

	email, msg := validateEmail(req.Email)
	if msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	plan, err := h.Service.Catalog.Ensure(req.Plan)
	if err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, plans.ErrPriceNotConfigured) {
			code = http.StatusInternalServerError
		}
		c.JSON(code, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	u, err := h.Service.Accounts.FindByEmail(ctx, email)
	if errors.Is(err, identity.ErrNotFound) {
		metrics.Checkouts.WithLabelValues("account_missing").Inc()
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Account missing",
			"code":    "ACCOUNT_MISSING",
			"message": "No account found for this email address. Contact the administrator.",
		})
		return
	}
	if err != nil {
		internalError(c, "checkout lookup failed", err)
		return
	}

	view := h.Service.View(*u)
	if view.Active && view.Unexpired {
		view.Email = email
		metrics.Checkouts.WithLabelValues("account_active").Inc()
		c.JSON(http.StatusConflict, gin.H{
			"error":  "Account is already active.",
			"code":   "ACCOUNT_ACTIVE",
			"status": statusResponse{StatusView: view, AvailablePlans: h.availablePlans(ctx)},
		})
		return
	}

	base, err := h.BaseURL()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	successPath := strings.TrimSpace(req.SuccessPath)
	if successPath == "" {
		successPath = defaultSuccessPath
	}
	cancelPath := strings.TrimSpace(req.CancelPath)
	if cancelPath == "" {
		cancelPath = defaultCancelPath
	}

	session, err := h.Gateway.CreateCheckout(ctx, stripeinfra.CheckoutRequest{
		Email:      email,
		UserID:     u.ID,
		PlanKey:    plan.Key,
		PriceID:    plan.PriceID,
		SuccessURL: joinURL(base, successPath),
		CancelURL:  joinURL(base, cancelPath),
	})
	if err != nil {
		metrics.Checkouts.WithLabelValues("failed").Inc()
		internalError(c, "checkout session creation failed", err)
		return
	}

	metrics.Checkouts.WithLabelValues("created").Inc()
	logger.From(ctx).Info("checkout session created", logger.Email(email), logger.PlanKey(plan.Key), logger.SessionID(session.ID))
	c.JSON(http.StatusOK, gin.H{"checkoutUrl": session.URL, "sessionId": session.ID})
}

// joinURL keeps absolute URLs and otherwise appends path to base.
func joinURL(base, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
