package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/stripe/stripe-go/v75"
	checkoutsession "github.com/stripe/stripe-go/v75/checkout/session"
	"github.com/stripe/stripe-go/v75/price"
)

var ErrNotConfigured = errors.New("stripe secret key not configured")

// CheckoutRequest describes a one-time payment checkout for a plan.
type CheckoutRequest struct {
	Email      string
	UserID     string
	PlanKey    string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

type CheckoutResult struct {
	ID  string
	URL string
}

// PriceInfo is the display amount of a price in minor units.
type PriceInfo struct {
	Amount   int64
	Currency string
	Active   bool
	// Recurring prices cannot be sold through a payment-mode checkout.
	Recurring bool
}

// Gateway wraps the Stripe API calls this service makes. Prices change rarely
// and are cached for the status endpoint.
type Gateway struct {
	sessions checkoutsession.Client
	prices   price.Client
	cache    *gocache.Cache
}

func NewGateway(secretKey string) (*Gateway, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, ErrNotConfigured
	}
	backend := stripe.GetBackend(stripe.APIBackend)
	return &Gateway{
		sessions: checkoutsession.Client{B: backend, Key: secretKey},
		prices:   price.Client{B: backend, Key: secretKey},
		cache:    gocache.New(10*time.Minute, 20*time.Minute),
	}, nil
}

func (g *Gateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutResult, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:                stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail:       stripe.String(req.Email),
		ClientReferenceID:   stripe.String(req.UserID),
		AllowPromotionCodes: stripe.Bool(true),
		SuccessURL:          stripe.String(req.SuccessURL),
		CancelURL:           stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(req.PriceID), Quantity: stripe.Int64(1)},
		},
		Metadata: map[string]string{
			"email":    req.Email,
			"plan_key": req.PlanKey,
		},
	}
	params.Context = ctx

	s, err := g.sessions.New(params)
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("create checkout session: %w", err)
	}
	return CheckoutResult{ID: s.ID, URL: s.URL}, nil
}

func (g *Gateway) PriceInfo(ctx context.Context, priceID string) (PriceInfo, error) {
	if v, ok := g.cache.Get(priceID); ok {
		return v.(PriceInfo), nil
	}
	params := &stripe.PriceParams{}
	params.Context = ctx
	p, err := g.prices.Get(priceID, params)
	if err != nil {
		return PriceInfo{}, fmt.Errorf("get price %s: %w", priceID, err)
	}
	info := PriceInfo{
		Amount:    p.UnitAmount,
		Currency:  string(p.Currency),
		Active:    p.Active,
		Recurring: p.Recurring != nil,
	}
	g.cache.SetDefault(priceID, info)
	return info, nil
}
