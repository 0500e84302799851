package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	adminapi "membergate/internal/api/admin"
	"membergate/internal/api/billing"
	"membergate/internal/api/identityhook"
	plansapi "membergate/internal/api/plans"
	"membergate/internal/api/session"
	stripewebhooks "membergate/internal/api/stripewebhook"
	"membergate/internal/app/http/middleware"
	"membergate/internal/domain/access"
	"membergate/internal/metrics"
)

// Deps are the handlers and secrets the router mounts.
type Deps struct {
	Identity *identityhook.Handler
	Billing  *billing.Handler
	Stripe   *stripewebhooks.Handler
	Session  *session.Handler
	Admin    *adminapi.Handler
	Plans    *plansapi.Handler

	IdentityWebhookSecret string
	IdentityJWTSecret     string
	BillingRatePerSecond  float64
	BillingRateBurst      int
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Stripe needs the raw body for signature verification.
	r.POST("/stripe/webhook", d.Stripe.StripeWebhook)

	hooks := r.Group("/identity")
	if d.IdentityWebhookSecret != "" {
		hooks.Use(middleware.IdentityWebhookSignature(d.IdentityWebhookSecret))
	}
	hooks.POST("/login", d.Identity.Login)
	hooks.POST("/signup", d.Identity.Signup)

	public := r.Group("/billing")
	public.Use(
		middleware.RateLimit(d.BillingRatePerSecond, d.BillingRateBurst),
		middleware.SanitizeAndCleanInputMiddleware(),
	)
	public.Any("/activation", d.Billing.Activation)

	sess := r.Group("/session")
	sess.Use(middleware.BearerToken())
	sess.GET("/check", d.Session.Check)
	sess.GET("/timed", d.Session.Timed)

	admin := r.Group("/admin")
	admin.Use(middleware.IdentityAuth(d.IdentityJWTSecret), middleware.RequireRole(access.RoleAdmin))
	admin.GET("/dashboard", d.Admin.Dashboard)
	admin.GET("/accounts/:email/access", d.Admin.AccountAccess)
	admin.POST("/accounts/:email/timed-role", d.Admin.AssignTimedRole)
	admin.GET("/accounts/:email/payments", d.Admin.AccountPayments)
	admin.GET("/plans", d.Plans.CheckCatalog)
}
