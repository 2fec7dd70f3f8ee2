package async

import (
	"time"

	"github.com/matheusluizig/imovelguide-integracao-sub000/am"
)

// RetryPolicy decides what happens to a job after a failed run.
type RetryPolicy struct {
	MaxRetries int             // retries after the first run
	Schedule   []time.Duration // delay before retry n is Schedule[n-1]; the last entry repeats
}

// DefaultRetryPolicy is 60s, 5m, 15m, 1h, 2h across five retries.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 5,
		Schedule: []time.Duration{
			60 * time.Second,
			5 * time.Minute,
			15 * time.Minute,
			time.Hour,
			2 * time.Hour,
		},
	}
}

// PolicyFromConfig builds the policy from pulse configuration.
func PolicyFromConfig(cfg am.PulseConfig) RetryPolicy {
	return RetryPolicy{MaxRetries: cfg.MaxRetries, Schedule: cfg.RetrySchedule()}
}

// After returns the delay before the next run once run number attempt
// (1-based) has failed. final is true when no retry remains.
func (p RetryPolicy) After(attempt int) (delay time.Duration, final bool) {
	retry := attempt - 1
	if retry < 0 {
		retry = 0
	}
	if retry >= p.MaxRetries || len(p.Schedule) == 0 {
		return 0, true
	}
	if retry >= len(p.Schedule) {
		retry = len(p.Schedule) - 1
	}
	return p.Schedule[retry], false
}
