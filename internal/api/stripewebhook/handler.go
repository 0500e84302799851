package stripewebhooks

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"membergate/internal/app/activation"
	"membergate/internal/domain/billing"
	stripeinfra "membergate/internal/infra/stripe"
	"membergate/internal/metrics"
	"membergate/internal/observability/logger"
)

const maxBodyBytes = 65536

type Handler struct {
	Service *activation.Service
	// Ledger deduplicates event ids; nil disables deduplication.
	Ledger        billing.Ledger
	SecretKey     string
	WebhookSecret string
}

func New(svc *activation.Service, ledger billing.Ledger, secretKey, webhookSecret string) *Handler {
	return &Handler{Service: svc, Ledger: ledger, SecretKey: secretKey, WebhookSecret: webhookSecret}
}

func (h *Handler) StripeWebhook(c *gin.Context) {
	if h.SecretKey == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "STRIPE_SECRET_KEY not configured"})
		return
	}
	if h.WebhookSecret == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "STRIPE_WEBHOOK_SECRET not configured"})
		return
	}

	signature := strings.TrimSpace(c.GetHeader("Stripe-Signature"))
	if signature == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing Stripe-Signature header"})
		return
	}

	payload, err := readStripeBody(c, maxBodyBytes)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
		return
	}

	ctx := c.Request.Context()
	log := logger.From(ctx)

	event, err := stripeinfra.ParseEvent(payload, signature, h.WebhookSecret)
	if err != nil {
		log.Warn("stripe signature verification failed", zap.Error(err))
		metrics.StripeEvents.WithLabelValues("unknown", "bad_signature").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signature verification failed"})
		return
	}
	eventType := string(event.Type)
	log = log.With(logger.EventID(event.ID), zap.String("event_type", eventType))
	ctx = logger.ToContext(ctx, log)

	if !handled(eventType) {
		metrics.StripeEvents.WithLabelValues(eventType, "ignored").Inc()
		c.JSON(http.StatusOK, gin.H{"received": true, "status": "ignored"})
		return
	}

	if h.Ledger != nil {
		first, err := h.Ledger.MarkProcessed(ctx, event.ID, eventType)
		if err != nil {
			log.Error("event dedup failed", zap.Error(err))
			metrics.StripeEvents.WithLabelValues(eventType, "failed").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook handler failed"})
			return
		}
		if !first {
			log.Info("stripe event replayed, skipping")
			metrics.StripeEvents.WithLabelValues(eventType, "duplicate").Inc()
			c.JSON(http.StatusOK, gin.H{"received": true, "status": "duplicate"})
			return
		}
	}

	outcome, err := h.dispatch(ctx, event)
	if err != nil {
		log.Error("stripe webhook handler failed", zap.Error(err))
		if h.Ledger != nil {
			if ferr := h.Ledger.Forget(ctx, event.ID); ferr != nil {
				log.Error("forget failed event", zap.Error(ferr))
			}
		}
		metrics.StripeEvents.WithLabelValues(eventType, "failed").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook handler failed"})
		return
	}

	metrics.StripeEvents.WithLabelValues(eventType, outcome).Inc()
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func handled(eventType string) bool {
	switch eventType {
	case stripeinfra.EventCheckoutCompleted, stripeinfra.EventAsyncPaymentSucceeded, stripeinfra.EventCheckoutExpired:
		return true
	}
	return false
}

func readStripeBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	return io.ReadAll(c.Request.Body)
}
