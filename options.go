package tripvoice

import (
	"log/slog"

	"github.com/tbxark/tripvoice/internal/logging"
)

const defaultQueueSize = 16

type coordinatorOptions struct {
	logger    *slog.Logger
	queueSize int
}

type Option func(*coordinatorOptions)

func WithLogger(logger *slog.Logger) Option {
	return func(o *coordinatorOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithQueueSize bounds the utterances buffered while a turn is in flight.
// Further utterances block the transport callback.
func WithQueueSize(n int) Option {
	return func(o *coordinatorOptions) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

func newCoordinatorOptions(opts ...Option) *coordinatorOptions {
	o := &coordinatorOptions{
		logger:    logging.NewNop(),
		queueSize: defaultQueueSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
