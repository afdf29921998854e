package config

// Summarize names the top-level sections that differ between two configs.
// Used for reload logging only; values are never included so tokens cannot
// leak into logs.
func Summarize(oldCfg, newCfg *Config) []string {
	if oldCfg == nil || newCfg == nil {
		return []string{"all"}
	}
	var changed []string
	if oldCfg.Telegram != newCfg.Telegram {
		changed = append(changed, "telegram")
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
	}
	if oldCfg.Owner != newCfg.Owner {
		changed = append(changed, "owner")
	}
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
	}
	if oldCfg.Sessions != newCfg.Sessions {
		changed = append(changed, "sessions")
	}
	if oldCfg.Media != newCfg.Media {
		changed = append(changed, "media")
	}
	if !dispatcherEqual(oldCfg.Dispatcher, newCfg.Dispatcher) {
		changed = append(changed, "dispatcher")
	}
	return changed
}

func dispatcherEqual(a, b DispatcherConfig) bool {
	if a.IsEnabled() != b.IsEnabled() {
		return false
	}
	return a.RatePerSec == b.RatePerSec &&
		a.MaxAttempts == b.MaxAttempts &&
		a.RetryDelay == b.RetryDelay
}
