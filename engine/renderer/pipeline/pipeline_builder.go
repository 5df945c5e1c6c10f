package pipeline

import "log/slog"

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithLogger sets the logger rebuilds and failures are reported to.
//
// Parameters:
//   - l: the logger; nil uses the context logger
//
// Returns:
//   - PipelineBuilderOption: a function that applies the option
func WithLogger(l *slog.Logger) PipelineBuilderOption {
	return func(p *pipeline) {
		p.logger = l
	}
}
