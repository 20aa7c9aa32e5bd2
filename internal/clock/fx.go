package clock

import "go.uber.org/fx"

// Module provides the wall clock. Services take the Clock interface so
// tests can pin "today" for the future-date and diff-precedence rules.
var Module = fx.Module("clock",
	fx.Provide(func() Clock {
		return SystemClock{}
	}),
)
