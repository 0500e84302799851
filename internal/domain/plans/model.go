package plans

import "time"

// Duration is a calendar span applied years first, then months, then days.
type Duration struct {
	Years  int `yaml:"years" json:"years,omitempty"`
	Months int `yaml:"months" json:"months,omitempty"`
	Days   int `yaml:"days" json:"days,omitempty"`
}

// AddTo applies the span with calendar arithmetic. Each step normalizes the
// way time.AddDate does, so Jan 31 + 1 month lands on Mar 2 (Mar 3 outside
// leap years) rather than being clamped to the end of February.
func (d Duration) AddTo(t time.Time) time.Time {
	if d.Years != 0 {
		t = t.AddDate(d.Years, 0, 0)
	}
	if d.Months != 0 {
		t = t.AddDate(0, d.Months, 0)
	}
	if d.Days != 0 {
		t = t.AddDate(0, 0, d.Days)
	}
	return t
}

func (d Duration) IsZero() bool {
	return d.Years == 0 && d.Months == 0 && d.Days == 0
}

// Plan is a purchasable access plan.
type Plan struct {
	Key      string   `yaml:"key" json:"key"`
	Label    string   `yaml:"label" json:"label"`
	PriceEnv string   `yaml:"price_env" json:"-"`
	PriceID  string   `yaml:"price_id" json:"-"`
	Duration Duration `yaml:"duration" json:"duration"`
}
