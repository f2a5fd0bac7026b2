package agent

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/tripvoice"
	"github.com/tbxark/tripvoice/session"
)

// DefaultConversationID is used when the context carries no conversation ID.
const DefaultConversationID = "default"

var _ adk.Agent = (*Agent)(nil)

// Agent exposes a trip planning conversation as an eino agent. The last user
// message of the input is the utterance; an input without one starts the
// conversation.
type Agent struct {
	name        string
	description string
	coordinator *tripvoice.Coordinator
}

func NewAgent(name, description string, coordinator *tripvoice.Coordinator) *Agent {
	return &Agent{
		name:        name,
		description: description,
		coordinator: coordinator,
	}
}

func (a *Agent) Name(ctx context.Context) string {
	return a.name
}

func (a *Agent) Description(ctx context.Context) string {
	return a.description
}

func (a *Agent) Run(ctx context.Context, input *adk.AgentInput, options ...adk.AgentRunOption) *adk.AsyncIterator[*adk.AgentEvent] {
	iter, gen := adk.NewAsyncIteratorPair[*adk.AgentEvent]()
	go func() {
		defer func() {
			e := recover()
			if e != nil {
				gen.Send(&adk.AgentEvent{
					Err: fmt.Errorf("recover from panic: %v", e),
				})
			}
			gen.Close()
		}()
		id, ok := session.ConversationIDFromContext(ctx)
		if !ok {
			id = DefaultConversationID
		}

		var (
			turn tripvoice.Turn
			err  error
		)
		if utterance, ok := lastUserMessage(input); ok {
			turn, err = a.coordinator.HandleUtterance(ctx, id, utterance)
		} else {
			turn, err = a.coordinator.Start(ctx, id)
		}
		if err != nil {
			gen.Send(&adk.AgentEvent{
				Err: fmt.Errorf("conversation turn failed: %w", err),
			})
			return
		}
		gen.Send(&adk.AgentEvent{
			Output: &adk.AgentOutput{
				MessageOutput: &adk.MessageVariant{
					IsStreaming: false,
					Message: &schema.Message{
						Role:    schema.Assistant,
						Content: turn.Prompt,
					},
					Role: schema.Assistant,
				},
			},
		})
	}()
	return iter
}

func lastUserMessage(input *adk.AgentInput) (string, bool) {
	if input == nil || len(input.Messages) == 0 {
		return "", false
	}
	last := input.Messages[len(input.Messages)-1]
	if last == nil || last.Role != schema.User {
		return "", false
	}
	return last.Content, true
}
