package billing

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"membergate/internal/app/activation"
	"membergate/internal/infra/identity"
	stripeinfra "membergate/internal/infra/stripe"
	"membergate/internal/observability/logger"
)

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// Gateway is the payment provider surface the endpoint needs.
type Gateway interface {
	CreateCheckout(ctx context.Context, req stripeinfra.CheckoutRequest) (stripeinfra.CheckoutResult, error)
	PriceInfo(ctx context.Context, priceID string) (stripeinfra.PriceInfo, error)
}

// Handler serves the activation page: status lookups and checkout creation.
type Handler struct {
	Service *activation.Service
	// Gateway is nil when Stripe is not configured.
	Gateway Gateway
	BaseURL func() (string, error)
}

func New(svc *activation.Service, gateway Gateway, baseURL func() (string, error)) *Handler {
	return &Handler{Service: svc, Gateway: gateway, BaseURL: baseURL}
}

type request struct {
	Action      string `json:"action"`
	Email       any    `json:"email"`
	Plan        string `json:"plan"`
	SuccessPath string `json:"successPath"`
	CancelPath  string `json:"cancelPath"`
}

// Activation dispatches on the body's action field.
func (h *Handler) Activation(c *gin.Context) {
	if c.Request.Method == http.MethodOptions {
		c.Status(http.StatusNoContent)
		return
	}
	if c.Request.Method != http.MethodPost {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Use POST"})
		return
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	var req request
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
			return
		}
	}

	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "status":
		h.status(c, req)
	case "checkout":
		h.checkout(c, req)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown action", "details": "Use action=status or action=checkout"})
	}
}

// validateEmail returns the normalized address or a message for the client.
func validateEmail(v any) (string, string) {
	s, ok := v.(string)
	if !ok {
		return "", "Email must be a string."
	}
	normalized := identity.NormalizeEmail(s)
	if !emailPattern.MatchString(normalized) {
		return "", "Enter a valid email address."
	}
	return normalized, ""
}

func internalError(c *gin.Context, msg string, err error) {
	logger.From(c.Request.Context()).Error(msg, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "details": err.Error()})
}

type planOption struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Amount   *int64 `json:"amount,omitempty"`
	Currency string `json:"currency,omitempty"`
}

type statusResponse struct {
	activation.StatusView
	AvailablePlans []planOption `json:"availablePlans"`
}

func (h *Handler) availablePlans(ctx context.Context) []planOption {
	out := []planOption{}
	for _, p := range h.Service.Catalog.List() {
		opt := planOption{Key: p.Key, Label: p.Label}
		if h.Gateway != nil && p.PriceID != "" {
			if info, err := h.Gateway.PriceInfo(ctx, p.PriceID); err == nil {
				amount := info.Amount
				opt.Amount = &amount
				opt.Currency = info.Currency
			} else {
				logger.From(ctx).Debug("price lookup failed", logger.PlanKey(p.Key), zap.Error(err))
			}
		}
		out = append(out, opt)
	}
	return out
}
