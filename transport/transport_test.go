package transport_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbxark/tripvoice"
	"github.com/tbxark/tripvoice/generate"
	"github.com/tbxark/tripvoice/session"
	"github.com/tbxark/tripvoice/stage"
	"github.com/tbxark/tripvoice/transport"
	"github.com/tbxark/tripvoice/workflow"
)

func newCoordinator(t *testing.T) *tripvoice.Coordinator {
	t.Helper()
	gen := generate.Func(func(ctx context.Context, prompt string) (string, error) {
		return "BUDGET: 900", nil
	})
	machine, err := workflow.New(stage.Default(gen))
	require.NoError(t, err)
	return tripvoice.NewCoordinator(machine, session.NewManager(session.NewMemoryStore()))
}

func TestConsoleServe(t *testing.T) {
	var out bytes.Buffer
	console := transport.NewConsole(strings.NewReader("\n  about 900 dollars  \n"), &out)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	listenErr := make(chan error, 1)
	go func() { listenErr <- console.Listen(ctx) }()

	require.NoError(t, newCoordinator(t).Serve(ctx, "console", console))
	require.NoError(t, <-listenErr)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Agent: "+stage.GreetingPrompt, lines[0])
	assert.Contains(t, lines[1], "$900")
}

func TestConsoleListenStopsWithContext(t *testing.T) {
	console := transport.NewConsole(strings.NewReader("hello\n"), &bytes.Buffer{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, console.Listen(ctx))
	select {
	case <-console.Done():
	default:
		t.Fatal("console did not hang up")
	}
}

func TestRecorder(t *testing.T) {
	r := transport.NewRecorder()
	ctx := context.Background()
	assert.False(t, r.Say(ctx, "hi"))

	var heard []string
	r.OnUtterance(func(ctx context.Context, text string) { heard = append(heard, text) })
	assert.True(t, r.Say(ctx, "hi"))
	assert.Equal(t, []string{"hi"}, heard)

	require.NoError(t, r.Deliver(ctx, "one"))
	prompts := r.Prompts()
	prompts[0] = "changed"
	assert.Equal(t, []string{"one"}, r.Prompts())

	r.Hangup()
	r.Hangup()
	<-r.Done()
}
