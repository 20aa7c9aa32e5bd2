package notifier

import "time"

// Config controls the open-outage watchdog.
type Config struct {
	// PollInterval is how often the watchdog scans.
	PollInterval time.Duration
	// OpenWarnAfter is how long an outage may stay open before the
	// watchdog raises it.
	OpenWarnAfter time.Duration
	// WebhookURL, when set, receives a JSON notification per long-open
	// outage.
	WebhookURL string
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Minute
	}
	if c.OpenWarnAfter <= 0 {
		c.OpenWarnAfter = 72 * time.Hour
	}
	return c
}
