package graph

import "context"

// DefaultMaxSteps is the superstep ceiling applied when a Config does not
// set one. It bounds executions whose conditional routing never reaches
// END.
const DefaultMaxSteps = 200

// Config carries per-invocation settings. A nil Config is valid and means
// all defaults.
type Config struct {
	// MaxSteps caps the number of supersteps a single execution may run.
	// Zero means DefaultMaxSteps.
	MaxSteps int

	// Listeners receive lifecycle events during the execution.
	Listeners []GraphListener

	// Tags are free-form labels attached to emitted events.
	Tags []string

	// Metadata is free-form key/value data attached to emitted events.
	Metadata map[string]any
}

// WithMaxSteps creates a Config with only the superstep ceiling set.
func WithMaxSteps(n int) *Config {
	return &Config{MaxSteps: n}
}

// WithListeners creates a Config with the given listeners attached.
func WithListeners(listeners ...GraphListener) *Config {
	return &Config{Listeners: listeners}
}

func (c *Config) maxSteps() int {
	if c == nil || c.MaxSteps <= 0 {
		return DefaultMaxSteps
	}
	return c.MaxSteps
}

type configKey struct{}

// WithConfig stores the invocation config in the context, making it
// visible to node bodies.
func WithConfig(ctx context.Context, config *Config) context.Context {
	return context.WithValue(ctx, configKey{}, config)
}

// ConfigFromContext retrieves the invocation config from the context, or
// nil when the execution was started without one.
func ConfigFromContext(ctx context.Context) *Config {
	if config, ok := ctx.Value(configKey{}).(*Config); ok {
		return config
	}
	return nil
}
