package campaign

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/tbxark/tripvoice/internal/logging"
)

var (
	ErrRunning   = errors.New("campaign already running")
	ErrNoNumbers = errors.New("no phone numbers")
)

const DefaultPace = 3 * time.Second

// Status is a snapshot of the current or last campaign.
type Status struct {
	Total      int      `json:"total"`
	Pending    []string `json:"pending"`
	InProgress *string  `json:"in_progress"`
	Completed  []string `json:"completed"`
	Failed     []string `json:"failed"`
	Running    bool     `json:"running"`
}

// ResultHook is told about every dispatched number.
type ResultHook func(phone string, err error)

type Option func(*Queue)

// WithPace sets the pause between two calls.
func WithPace(pace time.Duration) Option {
	return func(q *Queue) {
		if pace >= 0 {
			q.pace = pace
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

func WithResultHook(hook ResultHook) Option {
	return func(q *Queue) {
		if hook != nil {
			q.hooks = append(q.hooks, hook)
		}
	}
}

// Queue dials a list of numbers one after another. Run is the only way to
// change its state; Snapshot reads it.
type Queue struct {
	dispatcher Dispatcher
	pace       time.Duration
	logger     *slog.Logger
	hooks      []ResultHook

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}
}

func NewQueue(dispatcher Dispatcher, opts ...Option) *Queue {
	q := &Queue{
		dispatcher: dispatcher,
		pace:       DefaultPace,
		logger:     logging.NewNop(),
		status:     Status{Pending: []string{}, Completed: []string{}, Failed: []string{}},
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Run starts a campaign in the background. The campaign outlives ctx's
// cancellation but keeps its values; use Stop to abort it.
func (q *Queue) Run(ctx context.Context, numbers []string) error {
	if len(numbers) == 0 {
		return ErrNoNumbers
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.status.Running {
		return ErrRunning
	}
	q.status = Status{
		Total:     len(numbers),
		Pending:   slices.Clone(numbers),
		Completed: []string{},
		Failed:    []string{},
		Running:   true,
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	q.cancel = cancel
	q.done = make(chan struct{})
	go q.run(runCtx, slices.Clone(numbers), q.done)
	q.logger.Info("Campaign started", "total", len(numbers))
	return nil
}

func (q *Queue) run(ctx context.Context, numbers []string, done chan struct{}) {
	defer close(done)
	defer func() {
		q.mu.Lock()
		q.status.InProgress = nil
		q.status.Running = false
		q.cancel()
		q.mu.Unlock()
	}()

	for i, n := range numbers {
		if ctx.Err() != nil {
			q.logger.Info("Campaign stopped", "remaining", len(numbers)-i)
			return
		}
		q.mu.Lock()
		phone := n
		q.status.InProgress = &phone
		q.mu.Unlock()

		err := q.dispatcher.Dispatch(ctx, n)

		q.mu.Lock()
		if err != nil {
			q.status.Failed = append(q.status.Failed, n)
		} else {
			q.status.Completed = append(q.status.Completed, n)
		}
		if len(q.status.Pending) > 0 && q.status.Pending[0] == n {
			q.status.Pending = q.status.Pending[1:]
		}
		q.mu.Unlock()

		if err != nil {
			q.logger.Warn("Call failed", "phone", n, "err", err)
		} else {
			q.logger.Info("Call placed", "phone", n)
		}
		for _, hook := range q.hooks {
			hook(n, err)
		}

		if i < len(numbers)-1 && !sleep(ctx, q.pace) {
			q.logger.Info("Campaign stopped", "remaining", len(numbers)-i-1)
			return
		}
	}
	q.logger.Info("Campaign finished", "total", len(numbers))
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Snapshot returns a copy of the campaign state.
func (q *Queue) Snapshot() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.status
	s.Pending = slices.Clone(s.Pending)
	s.Completed = slices.Clone(s.Completed)
	s.Failed = slices.Clone(s.Failed)
	if s.InProgress != nil {
		phone := *s.InProgress
		s.InProgress = &phone
	}
	return s
}

// Wait blocks until the running campaign ends or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	done := q.done
	q.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop aborts the running campaign after the call in flight and waits for it.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	cancel := q.cancel
	q.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return q.Wait(ctx)
}
