package plans

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownPlan        = errors.New("unknown plan")
	ErrPriceNotConfigured = errors.New("plan price id not configured")
)

// Plan keys of the built-in catalog.
const (
	KeyDay      = "day"
	KeyMonth    = "month"
	KeyHalfYear = "halfyear"
	KeyYear     = "year"
)

var defaultPlans = []Plan{
	{Key: KeyDay, Label: "1 day", PriceEnv: "STRIPE_PRICE_1DAY", Duration: Duration{Days: 1}},
	{Key: KeyMonth, Label: "1 month", PriceEnv: "STRIPE_PRICE_1MONTH", Duration: Duration{Months: 1}},
	{Key: KeyHalfYear, Label: "6 months", PriceEnv: "STRIPE_PRICE_6MONTHS", Duration: Duration{Months: 6}},
	{Key: KeyYear, Label: "1 year", PriceEnv: "STRIPE_PRICE_1YEAR", Duration: Duration{Years: 1}},
}

// Catalog is the fixed set of purchasable plans. Price ids are looked up
// lazily so that a missing one only fails the request that needs it.
type Catalog struct {
	plans  []Plan
	Lookup func(string) string
}

func DefaultCatalog() *Catalog {
	return NewCatalog(defaultPlans)
}

func NewCatalog(plans []Plan) *Catalog {
	cp := make([]Plan, len(plans))
	copy(cp, plans)
	return &Catalog{plans: cp, Lookup: os.Getenv}
}

type catalogFile struct {
	Plans []Plan `yaml:"plans"`
}

// LoadCatalog reads a YAML catalog of the form
//
//	plans:
//	  - key: day
//	    label: 1 day
//	    price_env: STRIPE_PRICE_1DAY
//	    duration: {days: 1}
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan catalog: %w", err)
	}
	return ParseCatalog(raw)
}

func ParseCatalog(raw []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse plan catalog: %w", err)
	}
	if len(f.Plans) == 0 {
		return nil, errors.New("plan catalog is empty")
	}
	seen := map[string]bool{}
	for i := range f.Plans {
		p := &f.Plans[i]
		p.Key = normalizeKey(p.Key)
		if p.Key == "" {
			return nil, fmt.Errorf("plan #%d has no key", i)
		}
		if seen[p.Key] {
			return nil, fmt.Errorf("duplicate plan key %q", p.Key)
		}
		if p.Duration.IsZero() {
			return nil, fmt.Errorf("plan %q has no duration", p.Key)
		}
		seen[p.Key] = true
	}
	return NewCatalog(f.Plans), nil
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Get returns the plan with its price id resolved, if configured.
func (c *Catalog) Get(key string) (Plan, bool) {
	key = normalizeKey(key)
	if key == "" {
		return Plan{}, false
	}
	for _, p := range c.plans {
		if p.Key == key {
			if p.PriceID == "" && p.PriceEnv != "" && c.Lookup != nil {
				p.PriceID = strings.TrimSpace(c.Lookup(p.PriceEnv))
			}
			return p, true
		}
	}
	return Plan{}, false
}

// List returns every plan in catalog order.
func (c *Catalog) List() []Plan {
	out := make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		resolved, _ := c.Get(p.Key)
		out = append(out, resolved)
	}
	return out
}

// Ensure returns a plan that can be sold: known and with a price id.
func (c *Catalog) Ensure(key string) (Plan, error) {
	p, ok := c.Get(key)
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownPlan, key)
	}
	if p.PriceID == "" {
		return Plan{}, fmt.Errorf("%w: plan %s (%s)", ErrPriceNotConfigured, p.Key, p.PriceEnv)
	}
	return p, nil
}

// ExtendFrom picks the base an extension starts from: the current expiry
// while it is still in the future, otherwise now. Sequential purchases
// therefore add up instead of truncating remaining time.
func ExtendFrom(now, currentExpiry time.Time) time.Time {
	if !currentExpiry.IsZero() && currentExpiry.After(now) {
		return currentExpiry
	}
	return now
}

// CalculateExpiry computes the expiry a purchase of key produces.
func (c *Catalog) CalculateExpiry(key string, now, currentExpiry time.Time) (time.Time, error) {
	p, err := c.Ensure(key)
	if err != nil {
		return time.Time{}, err
	}
	return p.Duration.AddTo(ExtendFrom(now, currentExpiry)), nil
}
