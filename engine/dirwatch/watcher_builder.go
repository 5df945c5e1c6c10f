package dirwatch

import "log/slog"

// WatcherBuilderOption is a functional option used to configure a Watcher during construction.
type WatcherBuilderOption func(*watcher)

// WithRecursive controls whether subdirectories of the root are watched. The default is true.
//
// Parameters:
//   - recursive: true to watch the whole tree, false to watch only the root
//
// Returns:
//   - WatcherBuilderOption: a function that applies the option to a watcher
func WithRecursive(recursive bool) WatcherBuilderOption {
	return func(w *watcher) {
		w.recursive = recursive
	}
}

// WithLogger sets the logger used for watcher diagnostics. The package logger is used otherwise.
//
// Parameters:
//   - l: the logger to use
//
// Returns:
//   - WatcherBuilderOption: a function that applies the option to a watcher
func WithLogger(l *slog.Logger) WatcherBuilderOption {
	return func(w *watcher) {
		w.log = l
	}
}
