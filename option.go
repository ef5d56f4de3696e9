package lifeline

import "go.uber.org/zap"

// Option configures an Engine (functional options pattern).
type Option func(*Engine)

// WithLogger sets the logger for registration and render diagnostics. A nil logger is ignored.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithStrictRegistration makes Register reject malformed definitions with ErrInvalidTemplate
// instead of accepting them and failing later at render time.
func WithStrictRegistration() Option {
	return func(e *Engine) {
		e.strict = true
	}
}

// WithMaxBodyBytes caps template body size accepted by Register. Zero or negative means unlimited.
func WithMaxBodyBytes(n int) Option {
	return func(e *Engine) {
		e.maxBodyBytes = n
	}
}
