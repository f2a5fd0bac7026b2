package transport

import (
	"context"
	"slices"
	"sync"

	"github.com/tbxark/tripvoice"
)

// Recorder is an in-memory transport. Utterances are injected with Say and
// delivered prompts are kept in order.
type Recorder struct {
	mu       sync.Mutex
	prompts  []string
	callback func(ctx context.Context, text string)
	done     chan struct{}
	once     sync.Once
}

func NewRecorder() *Recorder {
	return &Recorder{done: make(chan struct{})}
}

func (r *Recorder) Deliver(ctx context.Context, prompt string) error {
	r.mu.Lock()
	r.prompts = append(r.prompts, prompt)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) OnUtterance(fn func(ctx context.Context, text string)) {
	r.mu.Lock()
	r.callback = fn
	r.mu.Unlock()
}

// Say reports one utterance. It returns false when no callback is attached.
func (r *Recorder) Say(ctx context.Context, text string) bool {
	r.mu.Lock()
	fn := r.callback
	r.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(ctx, text)
	return true
}

func (r *Recorder) Prompts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.prompts)
}

// Hangup ends the call. Safe to call more than once.
func (r *Recorder) Hangup() {
	r.once.Do(func() { close(r.done) })
}

func (r *Recorder) Done() <-chan struct{} {
	return r.done
}

var (
	_ tripvoice.Transport = (*Recorder)(nil)
	_ tripvoice.Hangup    = (*Recorder)(nil)
)
