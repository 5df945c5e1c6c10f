package queue

import "log/slog"

// QueueBuilderOption configures a Queue.
type QueueBuilderOption func(*Queue)

// WithLogger sets the queue logger.
func WithLogger(l *slog.Logger) QueueBuilderOption {
	return func(q *Queue) {
		q.logger = l
	}
}
