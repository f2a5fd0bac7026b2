package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbxark/tripvoice"
	"github.com/tbxark/tripvoice/generate"
	"github.com/tbxark/tripvoice/session"
	"github.com/tbxark/tripvoice/stage"
	"github.com/tbxark/tripvoice/workflow"
)

func newTestAgent(t *testing.T) *Agent {
	t.Helper()
	gen := generate.Func(func(ctx context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "asked about their travel budget") {
			return "BUDGET: 1200", nil
		}
		return "RESPONSE: Tell me more.", nil
	})
	machine, err := workflow.New(stage.Default(gen))
	require.NoError(t, err)
	coordinator := tripvoice.NewCoordinator(machine, session.NewManager(session.NewMemoryStore()))
	return NewAgent("TripPlanner", "Plans trips over a conversation", coordinator)
}

func collect(t *testing.T, iter *adk.AsyncIterator[*adk.AgentEvent]) []string {
	t.Helper()
	var out []string
	for {
		event, ok := iter.Next()
		if !ok {
			return out
		}
		require.NoError(t, event.Err)
		msg, err := event.Output.MessageOutput.GetMessage()
		require.NoError(t, err)
		assert.Equal(t, schema.Assistant, msg.Role)
		out = append(out, msg.Content)
	}
}

func TestAgentRun(t *testing.T) {
	a := newTestAgent(t)
	ctx := session.WithConversationID(context.Background(), "chat-1")

	got := collect(t, a.Run(ctx, &adk.AgentInput{}))
	assert.Equal(t, []string{stage.GreetingPrompt}, got)

	got = collect(t, a.Run(ctx, &adk.AgentInput{Messages: []adk.Message{
		schema.AssistantMessage(stage.GreetingPrompt, nil),
		schema.UserMessage("about 1200 dollars"),
	}}))
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "$1200")

	got = collect(t, a.Run(ctx, &adk.AgentInput{Messages: []adk.Message{schema.UserMessage("beaches")}}))
	assert.Equal(t, []string{"Tell me more."}, got)
}

func TestAgentDefaultConversation(t *testing.T) {
	a := newTestAgent(t)
	assert.Equal(t, "TripPlanner", a.Name(context.Background()))
	got := collect(t, a.Run(context.Background(), &adk.AgentInput{Messages: []adk.Message{schema.UserMessage("hi")}}))
	assert.Equal(t, []string{stage.GreetingPrompt}, got)
}

func TestKeepSystemLastNTrimmer(t *testing.T) {
	history := []*schema.Message{
		schema.SystemMessage("sys"),
		schema.UserMessage("u1"),
		schema.AssistantMessage("a1", nil),
		schema.UserMessage("u2"),
		schema.AssistantMessage("a2", nil),
	}
	var contents []string
	for _, m := range (KeepSystemLastNTrimmer{N: 2}).Trim(history) {
		contents = append(contents, m.Content)
	}
	assert.Equal(t, []string{"sys", "u2", "a2"}, contents)

	assert.Len(t, KeepSystemLastNTrimmer{N: 0}.Trim(history), 1)
	assert.Len(t, KeepSystemLastNTrimmer{N: 10}.Trim(history), 5)
}

func TestHistoryStoreAppend(t *testing.T) {
	store := NewMemoryHistoryStore(KeepSystemLastNTrimmer{N: 3})
	ctx := session.WithConversationID(context.Background(), "chat-1")

	_, err := store.Append(context.Background(), schema.UserMessage("x"))
	assert.ErrorIs(t, err, session.ErrNoConversation)

	history, err := store.Append(ctx, schema.UserMessage("hello"), schema.UserMessage("hello"), nil)
	require.NoError(t, err)
	require.Len(t, history, 1)

	history, err = store.Append(ctx,
		schema.AssistantMessage("hi", nil),
		schema.UserMessage("$2000"),
		schema.AssistantMessage("great", nil),
	)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "hi", history[0].Content)

	other, err := store.Load(session.WithConversationID(context.Background(), "chat-2"))
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, store.Clear(ctx))
	history, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)
}
