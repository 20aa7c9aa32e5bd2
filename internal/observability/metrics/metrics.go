// Package metrics exposes prometheus instruments for the derivation engine
// and the HTTP boundary.
package metrics

// Config carries the constant labels stamped on every instrument.
type Config struct {
	ServiceName string
	Environment string
}

func (c Config) withDefaults() Config {
	if c.ServiceName == "" {
		c.ServiceName = "pims"
	}
	if c.Environment == "" {
		c.Environment = "unknown"
	}
	return c
}
