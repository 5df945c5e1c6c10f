package upload

import "log/slog"

// BufferBuilderOption configures a Buffer.
type BufferBuilderOption func(*Buffer)

// WithLogger sets the upload buffer logger.
func WithLogger(l *slog.Logger) BufferBuilderOption {
	return func(b *Buffer) {
		b.logger = l
	}
}
