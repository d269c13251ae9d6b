package runtime

import "log/slog"

// Option configures a Runtime.
type Option func(*config)

type config struct {
	logger      *slog.Logger
	executionID string
}

// WithLogger sets the logger used for cache-miss debug events.
// Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithExecutionID tags log events with the id of the current execution.
func WithExecutionID(id string) Option {
	return func(c *config) {
		c.executionID = id
	}
}
