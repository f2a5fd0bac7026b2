package tripvoice

import (
	"context"
)

// Transport carries prompts to the participant and utterances back.
type Transport interface {
	// Deliver speaks prompt to the participant, best effort.
	Deliver(ctx context.Context, prompt string) error
	// OnUtterance registers the callback invoked once per recognized
	// utterance.
	OnUtterance(fn func(ctx context.Context, text string))
}

// Hangup is implemented by transports whose participant can leave. Done is
// closed after the last utterance has been reported.
type Hangup interface {
	Done() <-chan struct{}
}

// Serve attaches a conversation to t: it delivers the opening prompt, then
// handles queued utterances one at a time in arrival order. It returns when
// ctx is done or, for a Hangup transport, once the participant left and the
// queue is drained.
func (c *Coordinator) Serve(ctx context.Context, id string, t Transport) error {
	queue := make(chan string, c.opts.queueSize)
	// Utterances reported after Serve returned are dropped.
	stopped := make(chan struct{})
	defer close(stopped)
	t.OnUtterance(func(_ context.Context, text string) {
		select {
		case queue <- text:
		case <-stopped:
		case <-ctx.Done():
		}
	})

	turn, err := c.Start(ctx, id)
	if err != nil {
		return err
	}
	c.deliver(ctx, id, t, turn.Prompt)

	var done <-chan struct{}
	if h, ok := t.(Hangup); ok {
		done = h.Done()
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case text := <-queue:
			if err := c.serveUtterance(ctx, id, t, text); err != nil {
				return err
			}
		case <-done:
			for {
				select {
				case text := <-queue:
					if err := c.serveUtterance(ctx, id, t, text); err != nil {
						return err
					}
				default:
					return nil
				}
			}
		}
	}
}

func (c *Coordinator) serveUtterance(ctx context.Context, id string, t Transport, text string) error {
	turn, err := c.HandleUtterance(ctx, id, text)
	if err != nil {
		return err
	}
	c.deliver(ctx, id, t, turn.Prompt)
	return nil
}

func (c *Coordinator) deliver(ctx context.Context, id string, t Transport, prompt string) {
	if prompt == "" {
		return
	}
	if err := t.Deliver(ctx, prompt); err != nil {
		logDeliveryError(c.opts.logger, id, err)
	}
}
