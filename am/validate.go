package am

import (
	"slices"

	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
)

var queueClasses = []string{"plan", "level", "normal"}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Pulse workers: 0 = no background workers, negative = invalid
	if c.Pulse.Workers < 0 {
		return errors.Newf("pulse.workers must be >= 0, got %d", c.Pulse.Workers)
	}
	for _, q := range c.Pulse.Queues {
		if !slices.Contains(queueClasses, q) {
			return errors.Newf("pulse.queues: unknown queue class %q (allowed: %v)", q, queueClasses)
		}
	}
	if c.Pulse.MaxRetries < 0 {
		return errors.Newf("pulse.max_retries must be >= 0, got %d", c.Pulse.MaxRetries)
	}
	if c.Pulse.MaxRetries > 0 && len(c.Pulse.RetryBackoffSeconds) == 0 {
		return errors.New("pulse.retry_backoff_seconds cannot be empty when max_retries > 0")
	}
	for i, s := range c.Pulse.RetryBackoffSeconds {
		if s <= 0 {
			return errors.Newf("pulse.retry_backoff_seconds[%d] must be > 0, got %d", i, s)
		}
	}
	if c.Pulse.StuckThresholdMin <= 0 {
		return errors.Newf("pulse.stuck_threshold_minutes must be > 0, got %d", c.Pulse.StuckThresholdMin)
	}
	if c.Pulse.LockTTLMinutes < c.Pulse.StuckThresholdMin {
		return errors.WithHint(
			errors.Newf("pulse.lock_ttl_minutes (%d) is shorter than stuck_threshold_minutes (%d)",
				c.Pulse.LockTTLMinutes, c.Pulse.StuckThresholdMin),
			"a lock that expires before a run is declared stuck lets two workers run one integration")
	}
	if c.Pulse.GlobalSlots < 0 {
		return errors.Newf("pulse.global_slots must be >= 0, got %d", c.Pulse.GlobalSlots)
	}
	if c.Pulse.StopTimeoutMinutes < 0 {
		return errors.Newf("pulse.stop_timeout_minutes must be >= 0, got %d", c.Pulse.StopTimeoutMinutes)
	}

	if c.Schedule.Enabled && c.Schedule.TickSeconds <= 0 {
		return errors.Newf("schedule.tick_seconds must be > 0 when enabled, got %d", c.Schedule.TickSeconds)
	}

	if c.Images.MaxPerListing <= 0 {
		return errors.Newf("images.max_per_listing must be > 0, got %d", c.Images.MaxPerListing)
	}
	if c.Images.Quality < 1 || c.Images.Quality > 100 {
		return errors.Newf("images.quality must be within 1..100, got %d", c.Images.Quality)
	}
	if c.Images.SmallSize <= 0 || c.Images.MediumSize <= c.Images.SmallSize || c.Images.BaseMaxSize < c.Images.MediumSize {
		return errors.Newf("images sizes must satisfy 0 < small (%d) < medium (%d) <= base (%d)",
			c.Images.SmallSize, c.Images.MediumSize, c.Images.BaseMaxSize)
	}

	switch c.Storage.Driver {
	case "memory":
	case "minio":
		if c.Storage.Endpoint == "" || c.Storage.Bucket == "" {
			return errors.New("storage.endpoint and storage.bucket are required for the minio driver")
		}
	default:
		return errors.Newf("storage.driver must be minio or memory, got %q", c.Storage.Driver)
	}

	return nil
}
