package command

import "log/slog"

// CommandListBuilderOption configures a CommandList.
type CommandListBuilderOption func(*CommandList)

// WithLogger sets the command list logger.
func WithLogger(l *slog.Logger) CommandListBuilderOption {
	return func(c *CommandList) {
		c.logger = l
	}
}
