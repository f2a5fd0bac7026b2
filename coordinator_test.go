package tripvoice_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbxark/tripvoice"
	"github.com/tbxark/tripvoice/generate"
	"github.com/tbxark/tripvoice/session"
	"github.com/tbxark/tripvoice/stage"
	"github.com/tbxark/tripvoice/transport"
	"github.com/tbxark/tripvoice/types"
	"github.com/tbxark/tripvoice/workflow"
)

func travelAgent() generate.Func {
	return func(ctx context.Context, prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "asked about their travel budget"):
			return "BUDGET: 2000", nil
		case strings.Contains(prompt, "activities they enjoy"):
			return "ACTIVITIES: museums, hiking | RESPONSE: Great picks!", nil
		case strings.Contains(prompt, "prefer luxury or budget-friendly"):
			return "PREFERENCE: luxury", nil
		case strings.Contains(prompt, "realistic airlines"):
			return "AIRLINES: Sky One, Sky Two", nil
		case strings.Contains(prompt, "3-day travel itinerary"):
			return "Day 1: Louvre\nDay 2: Alps hike\nDay 3: Food market", nil
		case strings.Contains(prompt, "travel summary"):
			return "A refined escape with great museums and hikes.", nil
		}
		return "", errors.New("unexpected prompt")
	}
}

func newCoordinator(t *testing.T, gen generate.Generator) *tripvoice.Coordinator {
	t.Helper()
	machine, err := workflow.New(stage.Default(gen))
	require.NoError(t, err)
	return tripvoice.NewCoordinator(machine, session.NewManager(session.NewMemoryStore()))
}

func TestConversationScenario(t *testing.T) {
	c := newCoordinator(t, travelAgent())
	conv := c.Conversation("conv-1")
	ctx := context.Background()

	var prompts []string
	for _, u := range []string{"", "I have about $2000", "museums, hiking", "I want something fancy"} {
		prompt, err := conv.HandleUtterance(ctx, u)
		require.NoError(t, err)
		prompts = append(prompts, prompt)
	}

	assert.Equal(t, stage.GreetingPrompt, prompts[0])
	assert.Contains(t, prompts[1], "$2000")
	assert.Contains(t, prompts[3], "Here's your personalized travel plan!")

	rec, err := c.Record(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, types.StageComplete, rec.Stage)
	require.NotNil(t, rec.Budget)
	assert.Equal(t, 2000, *rec.Budget)
	assert.Equal(t, []string{"museums", "hiking"}, rec.Activities)
	assert.Equal(t, types.PreferenceLuxury, rec.Preference)
	assert.NotEmpty(t, rec.Itinerary)
	assert.NotEmpty(t, rec.Summary)
	assert.Equal(t, "I want something fancy", rec.LastUserUtterance)
	assert.Equal(t, prompts[3], rec.LastAgentPrompt)
}

func TestCompleteConversationIsNotMutated(t *testing.T) {
	c := newCoordinator(t, travelAgent())
	ctx := context.Background()
	for _, u := range []string{"", "$2000", "museums", "fancy"} {
		_, err := c.HandleUtterance(ctx, "conv", u)
		require.NoError(t, err)
	}
	before, err := c.Record(ctx, "conv")
	require.NoError(t, err)

	turn, err := c.HandleUtterance(ctx, "conv", "actually make it cheaper")
	require.NoError(t, err)
	assert.Equal(t, stage.ClosingPrompt, turn.Prompt)
	assert.Equal(t, types.StageComplete, turn.Stage)

	after, err := c.Record(ctx, "conv")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestStartIsResumable(t *testing.T) {
	c := newCoordinator(t, travelAgent())
	ctx := context.Background()

	turn, err := c.Start(ctx, "conv")
	require.NoError(t, err)
	assert.Equal(t, stage.GreetingPrompt, turn.Prompt)
	assert.Equal(t, types.StageBudget, turn.Stage)

	_, err = c.HandleUtterance(ctx, "conv", "$2000")
	require.NoError(t, err)

	again, err := c.Start(ctx, "conv")
	require.NoError(t, err)
	assert.Equal(t, types.StageActivities, again.Stage)
	assert.Contains(t, again.Prompt, "$2000")
}

func TestRecordOfUnknownConversation(t *testing.T) {
	c := newCoordinator(t, travelAgent())
	_, err := c.Record(context.Background(), "nobody")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestCancelledTurnLeavesRecordUnmodified(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var hangup atomic.Bool
	gen := generate.Func(func(ctx context.Context, prompt string) (string, error) {
		if hangup.Load() {
			cancel()
			return "", ctx.Err()
		}
		return travelAgent()(ctx, prompt)
	})
	c := newCoordinator(t, gen)

	_, err := c.Start(ctx, "conv")
	require.NoError(t, err)
	before, err := c.Record(ctx, "conv")
	require.NoError(t, err)

	hangup.Store(true)
	turn, err := c.HandleUtterance(ctx, "conv", "$2000")
	require.NoError(t, err)
	assert.Equal(t, stage.OutcomeCancelled, turn.Outcome)
	assert.Equal(t, stage.BudgetCanned, turn.Prompt)

	after, err := c.Record(context.Background(), "conv")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestTurnsAreSerializedPerConversation(t *testing.T) {
	var inFlight, maxInFlight int32
	gen := generate.Func(func(ctx context.Context, prompt string) (string, error) {
		n := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		return "RESPONSE: Could you give me a number?", nil
	})
	c := newCoordinator(t, gen)
	ctx := context.Background()
	_, err := c.Start(ctx, "conv")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.HandleUtterance(ctx, "conv", "hmm")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInFlight)

	rec, err := c.Record(ctx, "conv")
	require.NoError(t, err)
	assert.Equal(t, types.StageBudget, rec.Stage)
	assert.Nil(t, rec.Budget)
}

func TestServeDeliversPromptsInOrder(t *testing.T) {
	c := newCoordinator(t, travelAgent())
	rec := transport.NewRecorder()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- c.Conversation("call-1").Serve(ctx, rec) }()

	require.Eventually(t, func() bool { return len(rec.Prompts()) == 1 }, time.Second, 5*time.Millisecond)
	for _, u := range []string{"I have about $2000", "museums, hiking", "I want something fancy"} {
		require.True(t, rec.Say(ctx, u))
	}
	rec.Hangup()
	require.NoError(t, <-errCh)

	prompts := rec.Prompts()
	require.Len(t, prompts, 4)
	assert.Equal(t, stage.GreetingPrompt, prompts[0])
	assert.Contains(t, prompts[1], "$2000")
	assert.True(t, strings.HasPrefix(prompts[2], "Great picks!"), prompts[2])
	assert.True(t, strings.HasPrefix(prompts[3], stage.PreferenceAck), prompts[3])
}

func TestDeleteConversation(t *testing.T) {
	c := newCoordinator(t, travelAgent())
	ctx := context.Background()
	_, err := c.Start(ctx, "conv")
	require.NoError(t, err)

	ids, err := c.Conversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"conv"}, ids)

	require.NoError(t, c.Delete(ctx, "conv"))
	_, err = c.Record(ctx, "conv")
	assert.ErrorIs(t, err, session.ErrNotFound)

	turn, err := c.Start(ctx, "conv")
	require.NoError(t, err)
	assert.Equal(t, stage.GreetingPrompt, turn.Prompt)
}

type brokenStore struct{ *session.MemoryStore }

func (brokenStore) Save(ctx context.Context, id string, rec *types.Record) error {
	return errors.New("disk full")
}

func TestServeDropsUtterancesAfterReturn(t *testing.T) {
	machine, err := workflow.New(stage.Default(travelAgent()))
	require.NoError(t, err)
	sessions := session.NewManager(brokenStore{session.NewMemoryStore()})
	c := tripvoice.NewCoordinator(machine, sessions, tripvoice.WithQueueSize(1))
	rec := transport.NewRecorder()

	err = c.Serve(context.Background(), "conv", rec)
	require.ErrorContains(t, err, "disk full")

	said := make(chan struct{})
	go func() {
		defer close(said)
		for range 5 {
			rec.Say(context.Background(), "hello?")
		}
	}()
	select {
	case <-said:
	case <-time.After(time.Second):
		t.Fatal("utterance callback blocked after Serve returned")
	}
}
