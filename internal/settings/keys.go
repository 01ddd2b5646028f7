package settings

// Setting keys seeded by migration. Timing and threshold parameters are
// re-read through the cache at the start of each logical operation, never
// held for the process lifetime.
const (
	KeyAllowedPrefix           = "allowed_prefix"
	KeyHashLength              = "hash_length"
	KeyHashSaltLength          = "hash_salt_length"
	KeyUserTimelimitSeconds    = "user_timelimit_seconds"
	KeyOnboardingTTLSeconds    = "onboarding_ttl_seconds"
	KeyMessageTTLSeconds       = "message_ttl_seconds"
	KeyCountCheckThreshold     = "count_check_threshold"
	KeyCountWindowSeconds      = "count_window_seconds"
	KeyAllowedCountries        = "allowed_countries"
	KeyCheckSequence           = "check_sequence"
	KeyLocalSyncInterval       = "local_sync_interval_seconds"
	KeyRemoteSyncInterval      = "remote_sync_interval_seconds"
	KeyBlacklistReloadInterval = "blacklist_reload_interval_seconds"
	KeyCounterPersistInterval  = "counter_persist_interval_seconds"
	KeyRecoveryPollInterval    = "recovery_poll_interval_seconds"
	KeySyncURL                 = "sync_url"
	KeySyncBatchSize           = "sync_batch_size"
)

// EnabledKey returns the enable-flag setting key for a check id.
func EnabledKey(check string) string {
	return check + "_check_enabled"
}
