package ledger

import (
	"fmt"
	"strings"
	"time"
)

// PeriodFunc maps a timestamp to the key of the dedup period containing it.
type PeriodFunc func(ts time.Time) string

const (
	dayLayout    = "2006-01-02"
	windowLayout = "2006-01-02T15:04"
)

// Daily returns a PeriodFunc keyed by calendar day in loc ("2006-01-02").
func Daily(loc *time.Location) PeriodFunc {
	if loc == nil {
		loc = time.Local
	}
	return func(ts time.Time) string {
		return ts.In(loc).Format(dayLayout)
	}
}

// Window returns a PeriodFunc of fixed windows of length d, aligned to midnight in loc.
// The key is the window start ("2006-01-02T15:04"). The last window of a day may be shorter than d.
func Window(loc *time.Location, d time.Duration) PeriodFunc {
	if loc == nil {
		loc = time.Local
	}
	return func(ts time.Time) string {
		local := ts.In(loc)
		midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		n := local.Sub(midnight) / d
		return midnight.Add(n * d).Format(windowLayout)
	}
}

// ParsePeriod returns the PeriodFunc for spec: "daily" (or empty) or a Go duration that divides
// into a day, such as "8h" or "30m".
func ParsePeriod(spec string, loc *time.Location) (PeriodFunc, error) {
	switch strings.ToLower(strings.TrimSpace(spec)) {
	case "", "daily", "day":
		return Daily(loc), nil
	}

	d, err := time.ParseDuration(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger period %q: %w", spec, err)
	}
	if d < time.Minute || d > 24*time.Hour {
		return nil, fmt.Errorf("invalid ledger period %q: must be between 1m and 24h", spec)
	}
	if d == 24*time.Hour {
		return Daily(loc), nil
	}
	return Window(loc, d), nil
}
