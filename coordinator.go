package tripvoice

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/callbacks"
	"github.com/tbxark/tripvoice/session"
	"github.com/tbxark/tripvoice/stage"
	"github.com/tbxark/tripvoice/types"
	"github.com/tbxark/tripvoice/workflow"
)

// Turn is the outcome of one utterance.
type Turn struct {
	Prompt  string        `json:"prompt"`
	Stage   types.Stage   `json:"stage"`
	Outcome stage.Outcome `json:"outcome,omitempty"`
}

// Coordinator feeds utterances to the workflow machine, one transition per
// utterance, and persists the resulting record. Turns of one conversation
// are serialized; different conversations run in parallel.
type Coordinator struct {
	machine  *workflow.Machine
	sessions *session.Manager
	opts     *coordinatorOptions
}

func NewCoordinator(machine *workflow.Machine, sessions *session.Manager, opts ...Option) *Coordinator {
	return &Coordinator{
		machine:  machine,
		sessions: sessions,
		opts:     newCoordinatorOptions(opts...),
	}
}

// Start produces the opening prompt. A conversation that is already past the
// greeting gets its last prompt again.
func (c *Coordinator) Start(ctx context.Context, id string) (Turn, error) {
	var turn Turn
	err := c.sessions.WithLock(ctx, id, func(ctx context.Context) error {
		rec, created, err := c.sessions.LoadOrCreate(ctx, id)
		if err != nil {
			return err
		}
		if !created && rec.Stage != types.StageGreeting {
			turn = Turn{Prompt: rec.LastAgentPrompt, Stage: rec.Stage}
			return nil
		}
		turn, err = c.step(ctx, id, rec, "", false)
		return err
	})
	if err != nil {
		return Turn{}, err
	}
	return turn, nil
}

// HandleUtterance runs exactly one workflow transition for text and returns
// the prompt to speak next.
func (c *Coordinator) HandleUtterance(ctx context.Context, id, text string) (turn Turn, err error) {
	ctx = callbacks.EnsureRunInfo(ctx, "Coordinator", "Agent")
	ctx = callbacks.OnStart(ctx, map[string]any{
		"conversation_id": id,
		"utterance":       text,
	})

	defer func() {
		if r := recover(); r != nil {
			callbacks.OnError(ctx, fmt.Errorf("panic in Coordinator.HandleUtterance: %v", r))
			panic(r)
		}
	}()

	err = c.sessions.WithLock(ctx, id, func(ctx context.Context) error {
		rec, _, err := c.sessions.LoadOrCreate(ctx, id)
		if err != nil {
			return err
		}
		turn, err = c.step(ctx, id, rec, text, true)
		return err
	})
	if err != nil {
		callbacks.OnError(ctx, err)
		return Turn{}, err
	}

	callbacks.OnEnd(ctx, map[string]any{
		"prompt":  turn.Prompt,
		"stage":   string(turn.Stage),
		"outcome": string(turn.Outcome),
	})
	return turn, nil
}

// Record returns a copy of the stored conversation.
func (c *Coordinator) Record(ctx context.Context, id string) (*types.Record, error) {
	return c.sessions.Load(ctx, id)
}

// Delete removes the stored conversation. Deleting an unknown conversation
// is not an error.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	return c.sessions.WithLock(ctx, id, func(ctx context.Context) error {
		return c.sessions.Delete(ctx, id)
	})
}

// Conversations lists the stored conversation IDs.
func (c *Coordinator) Conversations(ctx context.Context) ([]string, error) {
	return c.sessions.List(ctx)
}

// step must run under the conversation lock.
func (c *Coordinator) step(ctx context.Context, id string, rec *types.Record, text string, stamp bool) (Turn, error) {
	work := rec.Clone()
	// A finished conversation is never written again.
	terminal := work.Stage.Terminal()
	if stamp && !terminal {
		work.LastUserUtterance = text
	}

	next, res, err := c.machine.Step(ctx, work, text)
	if err != nil {
		return Turn{}, fmt.Errorf("failed to step conversation %s: %w", id, err)
	}
	turn := Turn{Prompt: res.Prompt, Stage: res.Stage, Outcome: res.Outcome}
	if terminal || res.Outcome == stage.OutcomeCancelled {
		c.opts.logger.Debug("Turn not persisted", "conversation_id", id, "stage", res.Stage, "outcome", res.Outcome)
		return turn, nil
	}

	next.LastAgentPrompt = res.Prompt
	if err := c.sessions.Save(ctx, id, next); err != nil {
		return Turn{}, fmt.Errorf("failed to save conversation %s: %w", id, err)
	}
	c.opts.logger.Debug("Turn handled",
		"conversation_id", id,
		"stage", res.Stage,
		"outcome", res.Outcome,
		"transitions", len(res.Transitions),
	)
	return turn, nil
}

// Conversation binds the coordinator to one conversation ID.
func (c *Coordinator) Conversation(id string) *Conversation {
	return &Conversation{coordinator: c, id: id}
}

type Conversation struct {
	coordinator *Coordinator
	id          string
}

func (cv *Conversation) ID() string {
	return cv.id
}

func (cv *Conversation) Start(ctx context.Context) (string, error) {
	turn, err := cv.coordinator.Start(ctx, cv.id)
	return turn.Prompt, err
}

func (cv *Conversation) HandleUtterance(ctx context.Context, text string) (string, error) {
	turn, err := cv.coordinator.HandleUtterance(ctx, cv.id, text)
	return turn.Prompt, err
}

func (cv *Conversation) Serve(ctx context.Context, t Transport) error {
	return cv.coordinator.Serve(ctx, cv.id, t)
}

func logDeliveryError(logger *slog.Logger, id string, err error) {
	logger.Warn("Failed to deliver prompt", "conversation_id", id, "err", err)
}
