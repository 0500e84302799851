package plans

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"membergate/internal/domain/plans"
	stripeinfra "membergate/internal/infra/stripe"
	"membergate/internal/observability/logger"
)

// Plan check outcomes.
const (
	StatusOK           = "ok"
	StatusMissingPrice = "missing_price"
	StatusLookupFailed = "lookup_failed"
	StatusInactive     = "inactive"
	StatusRecurring    = "recurring"
)

type PriceLookup interface {
	PriceInfo(ctx context.Context, priceID string) (stripeinfra.PriceInfo, error)
}

type Handler struct {
	Catalog *plans.Catalog
	// Prices is nil when Stripe is not configured.
	Prices PriceLookup
}

func New(catalog *plans.Catalog, prices PriceLookup) *Handler {
	return &Handler{Catalog: catalog, Prices: prices}
}

type PlanCheck struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	PriceEnv string `json:"price_env"`
	PriceID  string `json:"price_id,omitempty"`
	Status   string `json:"status"`
	Amount   *int64 `json:"amount,omitempty"`
	Currency string `json:"currency,omitempty"`
	Error    string `json:"error,omitempty"`
}

// CheckCatalog verifies that every plan can be sold: a price id is set and,
// when Stripe is reachable, the price is active and one-time.
func (h *Handler) CheckCatalog(c *gin.Context) {
	if h.Prices == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Stripe key not configured"})
		return
	}

	ctx := c.Request.Context()
	checks := make([]PlanCheck, 0)
	ok, problems := 0, 0

	for _, p := range h.Catalog.List() {
		check := PlanCheck{Key: p.Key, Label: p.Label, PriceEnv: p.PriceEnv, PriceID: p.PriceID}
		switch info, err := h.lookup(ctx, p.PriceID); {
		case p.PriceID == "":
			check.Status = StatusMissingPrice
		case err != nil:
			check.Status = StatusLookupFailed
			check.Error = err.Error()
			logger.From(ctx).Warn("plan price lookup failed", logger.PlanKey(p.Key), zap.Error(err))
		default:
			amount := info.Amount
			check.Amount = &amount
			check.Currency = info.Currency
			switch {
			case !info.Active:
				check.Status = StatusInactive
			case info.Recurring:
				check.Status = StatusRecurring
			default:
				check.Status = StatusOK
			}
		}

		if check.Status == StatusOK {
			ok++
		} else {
			problems++
		}
		checks = append(checks, check)
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":       ok,
		"problems": problems,
		"plans":    checks,
	})
}

func (h *Handler) lookup(ctx context.Context, priceID string) (stripeinfra.PriceInfo, error) {
	if priceID == "" {
		return stripeinfra.PriceInfo{}, nil
	}
	return h.Prices.PriceInfo(ctx, priceID)
}
