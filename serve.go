package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"membergate/config"
	"membergate/database"
	adminapi "membergate/internal/api/admin"
	"membergate/internal/api/billing"
	"membergate/internal/api/identityhook"
	plansapi "membergate/internal/api/plans"
	"membergate/internal/api/session"
	stripewebhooks "membergate/internal/api/stripewebhook"
	"membergate/internal/app/activation"
	routes "membergate/internal/app/http"
	"membergate/internal/app/http/middleware"
	"membergate/internal/domain/access"
	"membergate/internal/domain/plans"
	"membergate/internal/infra/accountlock"
	"membergate/internal/infra/identity"
	stripeinfra "membergate/internal/infra/stripe"
	"membergate/internal/metrics"
	"membergate/internal/observability/logger"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	log := logger.Named("serve")
	if config.APP_ENV == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	metrics.Init()

	catalog, err := loadCatalog(config.PLANS_FILE)
	if err != nil {
		return err
	}
	ledger, err := database.NewLedger(config.DB_URL)
	if err != nil {
		return err
	}
	locks, err := newLocker(ctx, config.REDIS_URL)
	if err != nil {
		return err
	}

	identityURL, adminToken, err := config.IdentityAdmin()
	if err != nil {
		// Identity-backed endpoints answer 500 until this is fixed.
		log.Warn("identity admin API not configured", zap.Error(err))
	}
	accounts := identity.New(identityURL, adminToken)

	var gateway billing.Gateway
	if gw, err := stripeinfra.NewGateway(config.STRIPE_SECRET_KEY); err == nil {
		gateway = gw
	} else {
		log.Warn("stripe checkout disabled", zap.Error(err))
	}

	svc := activation.New(accounts, locks, catalog, ledger)
	resolver := access.NewResolver()

	r := gin.New()
	r.Use(gin.Recovery(), cors.New(corsConfig(config.CORS_ORIGIN)), middleware.RequestLogger(), metrics.Instrument())
	routes.RegisterRoutes(r, routes.Deps{
		Identity: identityhook.New(resolver, config.ENFORCE_LOGIN_BLOCK, config.SIGNUP_DEFAULT_ROLE),
		Billing:  billing.New(svc, gateway, config.ActivationBaseURL),
		Stripe:   stripewebhooks.New(svc, ledger, config.STRIPE_SECRET_KEY, config.STRIPE_WEBHOOK_SECRET),
		Session:  session.New(accounts),
		Admin:    adminapi.New(svc, resolver, ledger),
		Plans:    plansapi.New(catalog, gateway),

		IdentityWebhookSecret: config.IDENTITY_WEBHOOK_SECRET,
		IdentityJWTSecret:     config.IDENTITY_JWT_SECRET,
		BillingRatePerSecond:  config.BILLING_RATE_PER_SECOND,
		BillingRateBurst:      config.BILLING_RATE_BURST,
	})

	srv := &http.Server{
		Addr:              ":" + config.PORT,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loadCatalog(path string) (*plans.Catalog, error) {
	if path == "" {
		return plans.DefaultCatalog(), nil
	}
	return plans.LoadCatalog(path)
}

func newLocker(ctx context.Context, redisURL string) (accountlock.Locker, error) {
	if redisURL == "" {
		return accountlock.NewMemory(), nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return accountlock.NewRedis(client), nil
}

func corsConfig(origin string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", session.HeaderSessionID, middleware.HeaderRequestID},
		ExposeHeaders: []string{"Content-Length", middleware.HeaderRequestID},
		MaxAge:        12 * time.Hour,
	}
	if origin == "" || origin == "*" {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = []string{origin}
	cfg.AllowCredentials = true
	return cfg
}
