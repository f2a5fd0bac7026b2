package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/tbxark/tripvoice"
)

// Console is a text stand-in for a voice call: each input line is one
// utterance and prompts are printed to the output.
type Console struct {
	in     io.Reader
	out    io.Writer
	prefix string

	mu       sync.Mutex
	callback func(ctx context.Context, text string)
	ready    chan struct{}
	once     sync.Once
	done     chan struct{}
}

func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{
		in:     in,
		out:    out,
		prefix: "Agent: ",
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (c *Console) Deliver(ctx context.Context, prompt string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "%s%s\n", c.prefix, prompt)
	return err
}

func (c *Console) OnUtterance(fn func(ctx context.Context, text string)) {
	c.mu.Lock()
	c.callback = fn
	c.mu.Unlock()
	c.once.Do(func() { close(c.ready) })
}

// Listen waits for an utterance callback, then reads utterances until EOF
// or ctx is done and hangs up. Blank lines are skipped.
func (c *Console) Listen(ctx context.Context) error {
	defer close(c.done)
	select {
	case <-c.ready:
	case <-ctx.Done():
		return nil
	}
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		c.mu.Lock()
		fn := c.callback
		c.mu.Unlock()
		if fn != nil {
			fn(ctx, text)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read utterance: %w", err)
	}
	return nil
}

func (c *Console) Done() <-chan struct{} {
	return c.done
}

var (
	_ tripvoice.Transport = (*Console)(nil)
	_ tripvoice.Hangup    = (*Console)(nil)
)
