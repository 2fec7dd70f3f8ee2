package am

import "github.com/spf13/viper"

// Default directory permissions for ~/.imovelguide
const DefaultDirPermissions = 0750

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "imovelguide.db")

	v.SetDefault("pulse.workers", 2)
	v.SetDefault("pulse.queues", []string{"plan", "level", "normal"})
	v.SetDefault("pulse.poll_interval_ms", 1000)
	v.SetDefault("pulse.claim_lease_seconds", 300)
	v.SetDefault("pulse.max_retries", 5)
	v.SetDefault("pulse.retry_backoff_seconds", []int{60, 300, 900, 3600, 7200})
	v.SetDefault("pulse.defer_seconds", 60)
	v.SetDefault("pulse.stuck_threshold_minutes", 120)
	v.SetDefault("pulse.lock_ttl_minutes", 360) // image-heavy feeds have taken hours
	v.SetDefault("pulse.global_slots", 0)
	v.SetDefault("pulse.min_available_memory_mb", 256)
	v.SetDefault("pulse.stop_timeout_minutes", 30)

	v.SetDefault("schedule.enabled", true)
	v.SetDefault("schedule.tick_seconds", 60)
	v.SetDefault("schedule.interval_minutes", 360)

	v.SetDefault("feed.timeout_seconds", 300)
	v.SetDefault("feed.allow_private", false)

	v.SetDefault("images.max_per_listing", 20)
	v.SetDefault("images.concurrency", 4)
	v.SetDefault("images.timeout_seconds", 30)
	v.SetDefault("images.max_bytes", 15<<20)
	v.SetDefault("images.requests_per_second", 8.0)
	v.SetDefault("images.burst", 4)
	v.SetDefault("images.quality", 82)
	v.SetDefault("images.base_max_size", 1600)
	v.SetDefault("images.medium_size", 800)
	v.SetDefault("images.small_size", 320)
	v.SetDefault("images.failure_threshold", 10)
	v.SetDefault("images.allow_private", false)

	v.SetDefault("storage.driver", "minio")
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.bucket", "imovelguide")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.use_ssl", false)

	v.SetDefault("normalize.lookup_path", "")
	v.SetDefault("normalize.watch_lookups", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9102")
}
