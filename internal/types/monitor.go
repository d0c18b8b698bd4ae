package types

import (
	"fmt"
	"time"
)

// SLO is a service level objective: a target ratio computed from a PromQL
// query over a rolling window. The monitor evaluates burn rates against it.
type SLO struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Target      float64   `json:"target"`      // e.g. 0.999 for 99.9%
	WindowDays  int       `json:"window_days"` // rolling window, default 30
	MetricQuery string    `json:"metric_query"`
	FastBurn    float64   `json:"fast_burn"` // burn-rate multiplier, default 14.4
	SlowBurn    float64   `json:"slow_burn"` // burn-rate multiplier, default 6.0
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks SLO field values.
func (s *SLO) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Target <= 0 || s.Target >= 1 {
		return fmt.Errorf("target must be in (0, 1), got %v", s.Target)
	}
	if s.WindowDays <= 0 {
		return fmt.Errorf("window_days must be positive (got %d)", s.WindowDays)
	}
	if s.MetricQuery == "" {
		return fmt.Errorf("metric_query is required")
	}
	return nil
}

// Invariant is an operational condition that must always hold, expressed as
// a query plus a comparison like "> 20" or "== 0".
type Invariant struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Query       string    `json:"query"`
	Condition   string    `json:"condition"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks invariant field values.
func (i *Invariant) Validate() error {
	if i.Name == "" {
		return fmt.Errorf("name is required")
	}
	if i.Query == "" {
		return fmt.Errorf("query is required")
	}
	if i.Condition == "" {
		return fmt.Errorf("condition is required")
	}
	return nil
}
