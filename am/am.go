// Package am holds the runtime configuration of the integration workers.
//
// Configuration is read with viper from TOML files (system, user, project) and
// IMOVELGUIDE_* environment variables, in increasing precedence. Business
// tuning values such as the stuck-run threshold and the retry schedule live
// here rather than in the packages that use them.
package am

import "time"

// Config represents the integration pipeline configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Pulse     PulseConfig     `mapstructure:"pulse"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Images    ImagesConfig    `mapstructure:"images"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Normalize NormalizeConfig `mapstructure:"normalize"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// DatabaseConfig configures the SQLite database shared by all workers
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// PulseConfig configures job orchestration: workers, coordination and retries
type PulseConfig struct {
	Workers              int      `mapstructure:"workers"`                 // concurrent runs per process (0 = no workers)
	Queues               []string `mapstructure:"queues"`                  // queue classes this process serves, in priority order
	PollIntervalMS       int      `mapstructure:"poll_interval_ms"`        // idle poll interval
	ClaimLeaseSeconds    int      `mapstructure:"claim_lease_seconds"`     // how long a dequeued job is hidden from other workers
	MaxRetries           int      `mapstructure:"max_retries"`             // retries after the first run before a job is marked error
	RetryBackoffSeconds  []int    `mapstructure:"retry_backoff_seconds"`   // delay before retry n is schedule[n-1]
	DeferSeconds         int      `mapstructure:"defer_seconds"`           // delay when slot or lock is held elsewhere
	StuckThresholdMin    int      `mapstructure:"stuck_threshold_minutes"` // in_process longer than this is presumed crashed
	LockTTLMinutes       int      `mapstructure:"lock_ttl_minutes"`        // must cover the slowest image-heavy run
	GlobalSlots          int      `mapstructure:"global_slots"`            // concurrent runs across the fleet (0 = unbounded)
	MinAvailableMemoryMB int      `mapstructure:"min_available_memory_mb"` // pause dequeue below this (0 = disabled)
	StopTimeoutMinutes   int      `mapstructure:"stop_timeout_minutes"`    // how long shutdown waits for runs in flight
}

// ScheduleConfig configures the ticker that re-enqueues integrations
type ScheduleConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	TickSeconds     int  `mapstructure:"tick_seconds"`
	IntervalMinutes int  `mapstructure:"interval_minutes"` // minimum time between two runs of one integration
}

// FeedConfig configures feed downloads
type FeedConfig struct {
	TimeoutSeconds int  `mapstructure:"timeout_seconds"`
	AllowPrivate   bool `mapstructure:"allow_private"` // allow feeds on private addresses (local testing)
}

// ImagesConfig configures image ingestion
type ImagesConfig struct {
	MaxPerListing     int     `mapstructure:"max_per_listing"`
	Concurrency       int     `mapstructure:"concurrency"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	MaxBytes          int64   `mapstructure:"max_bytes"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"` // per source host
	Burst             int     `mapstructure:"burst"`
	Quality           int     `mapstructure:"quality"`
	BaseMaxSize       int     `mapstructure:"base_max_size"` // longest side of the base variant
	MediumSize        int     `mapstructure:"medium_size"`
	SmallSize         int     `mapstructure:"small_size"`
	FailureThreshold  int     `mapstructure:"failure_threshold"` // per-run failures before a report warning
	AllowPrivate      bool    `mapstructure:"allow_private"`
}

// StorageConfig configures object storage for image variants
type StorageConfig struct {
	Driver    string `mapstructure:"driver"` // minio or memory
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// NormalizeConfig configures the normalization lookup tables
type NormalizeConfig struct {
	LookupPath   string `mapstructure:"lookup_path"`   // optional YAML overriding the embedded tables
	WatchLookups bool   `mapstructure:"watch_lookups"` // reload lookup_path on change
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// RetrySchedule returns the backoff schedule as durations.
func (p PulseConfig) RetrySchedule() []time.Duration {
	out := make([]time.Duration, len(p.RetryBackoffSeconds))
	for i, s := range p.RetryBackoffSeconds {
		out[i] = time.Duration(s) * time.Second
	}
	return out
}

// StuckThreshold returns the stuck-run threshold.
func (p PulseConfig) StuckThreshold() time.Duration {
	return time.Duration(p.StuckThresholdMin) * time.Minute
}

// LockTTL returns the distributed lock expiry.
func (p PulseConfig) LockTTL() time.Duration {
	return time.Duration(p.LockTTLMinutes) * time.Minute
}

// DeferDelay returns the delay applied when coordination is unavailable.
func (p PulseConfig) DeferDelay() time.Duration {
	return time.Duration(p.DeferSeconds) * time.Second
}

// ClaimLease returns how long a dequeued job stays hidden.
func (p PulseConfig) ClaimLease() time.Duration {
	return time.Duration(p.ClaimLeaseSeconds) * time.Second
}

// StopTimeout returns how long a stopping worker pool waits for its runs.
func (p PulseConfig) StopTimeout() time.Duration {
	return time.Duration(p.StopTimeoutMinutes) * time.Minute
}

// PollInterval returns the idle poll interval.
func (p PulseConfig) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalMS) * time.Millisecond
}
