package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbxark/tripvoice/generate"
	"github.com/tbxark/tripvoice/patch"
	"github.com/tbxark/tripvoice/stage"
	"github.com/tbxark/tripvoice/types"
)

// travelAgent answers every instruction the way a well-behaved model would.
func travelAgent() generate.Generator {
	return generate.Func(func(ctx context.Context, prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "asked about their travel budget"):
			return "BUDGET: 2000", nil
		case strings.Contains(prompt, "activities they enjoy"):
			return "ACTIVITIES: museums, hiking | RESPONSE: Great picks!", nil
		case strings.Contains(prompt, "prefer luxury or budget-friendly"):
			return "PREFERENCE: luxury | RESPONSE: Luxury it is.", nil
		case strings.Contains(prompt, "realistic airlines"):
			return "AIRLINES: Sky One, Sky Two", nil
		case strings.Contains(prompt, "3-day travel itinerary"):
			return "Day 1: Louvre\nDay 2: Alps hike\nDay 3: Food market", nil
		case strings.Contains(prompt, "travel summary"):
			return "A refined escape with great museums and hikes.", nil
		}
		return "", errors.New("unexpected prompt")
	})
}

func newMachine(t *testing.T, gen generate.Generator, opts ...Option) *Machine {
	t.Helper()
	m, err := New(stage.Default(gen), opts...)
	require.NoError(t, err)
	return m
}

func TestScenarioReachesComplete(t *testing.T) {
	var events []TransitionEvent
	m := newMachine(t, travelAgent(), WithObserver(ObserverFunc(func(ctx context.Context, e TransitionEvent) {
		events = append(events, e)
	})))
	ctx := context.Background()
	rec := types.NewRecord()

	utterances := []string{"", "I have about $2000", "museums, hiking", "I want something fancy"}
	var last Result
	for _, u := range utterances {
		next, res, err := m.Step(ctx, rec, u)
		require.NoError(t, err)
		rec, last = next, res
	}

	assert.Equal(t, types.StageComplete, rec.Stage)
	require.NotNil(t, rec.Budget)
	assert.Equal(t, 2000, *rec.Budget)
	assert.Equal(t, []string{"museums", "hiking"}, rec.Activities)
	assert.Equal(t, types.PreferenceLuxury, rec.Preference)
	assert.NotEmpty(t, rec.Itinerary)
	assert.NotEmpty(t, rec.Summary)
	require.Len(t, rec.HotelOptions, 2)
	assert.Equal(t, 200, rec.HotelOptions[0].Price)
	require.Len(t, rec.FlightOptions, 2)
	assert.Equal(t, 600, rec.FlightOptions[0].Price)

	require.Len(t, last.Transitions, 2)
	assert.Equal(t, types.StagePreference, last.Transitions[0].From)
	assert.Equal(t, types.StageProcessing, last.Transitions[1].From)
	assert.Equal(t, types.StageComplete, last.Transitions[1].To)
	assert.True(t, strings.HasPrefix(last.Prompt, stage.PreferenceAck), last.Prompt)
	assert.Contains(t, last.Prompt, "A refined escape with great museums and hikes.")

	var path []types.Stage
	for _, e := range events {
		path = append(path, e.From)
	}
	assert.Equal(t, []types.Stage{
		types.StageGreeting, types.StageBudget, types.StageActivities, types.StagePreference, types.StageProcessing,
	}, path)
}

func TestMissingBudgetTagKeepsStage(t *testing.T) {
	gen := generate.Func(func(ctx context.Context, prompt string) (string, error) {
		return "Sure! How much are you hoping to spend?", nil
	})
	m := newMachine(t, gen)
	rec := types.NewRecord()
	rec.Stage = types.StageBudget

	next, res, err := m.Step(context.Background(), rec, "not sure yet")
	require.NoError(t, err)
	assert.Equal(t, types.StageBudget, next.Stage)
	assert.Nil(t, next.Budget)
	assert.Equal(t, stage.OutcomeExtractionMiss, res.Outcome)
	assert.Equal(t, "Sure! How much are you hoping to spend?", res.Prompt)
}

func TestSuggestedActivitiesAreNotCommitted(t *testing.T) {
	const suggestion = "No worries! Popular activities: hiking, museums, beaches. Which sound good to you?"
	gen := generate.Func(func(ctx context.Context, prompt string) (string, error) {
		return "RESPONSE: " + suggestion, nil
	})
	m := newMachine(t, gen)
	rec := types.NewRecord()
	rec.Stage = types.StageActivities
	budget := 2000
	rec.Budget = &budget

	next, res, err := m.Step(context.Background(), rec, "I don't know")
	require.NoError(t, err)
	assert.Equal(t, types.StageActivities, next.Stage)
	assert.Nil(t, next.Activities)
	assert.Equal(t, stage.OutcomeExtractionMiss, res.Outcome)
	assert.Equal(t, suggestion, res.Prompt)
}

func TestGenerationFailureCommitsNothing(t *testing.T) {
	gen := generate.Func(func(ctx context.Context, prompt string) (string, error) {
		return "", &generate.GenerationError{Op: "test", Err: context.DeadlineExceeded}
	})
	m := newMachine(t, gen)
	budget := 1500
	rec := &types.Record{Stage: types.StageActivities, Budget: &budget}

	next, res, err := m.Step(context.Background(), rec, "hiking")
	require.NoError(t, err)
	assert.Equal(t, rec, next)
	assert.Equal(t, stage.ActivitiesCanned, res.Prompt)
	assert.Equal(t, stage.OutcomeGenerationError, res.Outcome)
}

func TestCompleteIsIdempotent(t *testing.T) {
	m := newMachine(t, travelAgent())
	ctx := context.Background()
	rec := types.NewRecord()
	for _, u := range []string{"", "$2000", "museums", "fancy"} {
		var err error
		rec, _, err = m.Step(ctx, rec, u)
		require.NoError(t, err)
	}
	require.Equal(t, types.StageComplete, rec.Stage)

	for range 3 {
		next, res, err := m.Step(ctx, rec, "can you change it?")
		require.NoError(t, err)
		assert.Equal(t, rec, next)
		assert.Equal(t, stage.ClosingPrompt, res.Prompt)
		assert.Equal(t, stage.OutcomeClosed, res.Outcome)
	}
}

func TestBudgetIsSetOnce(t *testing.T) {
	m := newMachine(t, travelAgent())
	budget := 900
	rec := &types.Record{Stage: types.StageBudget, Budget: &budget}

	next, _, err := m.Step(context.Background(), rec, "$2000")
	assert.ErrorIs(t, err, patch.ErrAlreadySet)
	assert.Same(t, rec, next)
	assert.Equal(t, 900, *rec.Budget)
}

func TestCancellationLeavesRecordUnmodified(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := generate.Func(func(ctx context.Context, prompt string) (string, error) {
		cancel()
		return "BUDGET: 2000", nil
	})
	m := newMachine(t, gen)
	rec := &types.Record{Stage: types.StageBudget}

	next, res, err := m.Step(ctx, rec, "$2000")
	require.NoError(t, err)
	assert.Same(t, rec, next)
	assert.Nil(t, rec.Budget)
	assert.Equal(t, stage.OutcomeCancelled, res.Outcome)
	assert.Equal(t, stage.BudgetCanned, res.Prompt)
}

type jumpHandler struct {
	stage.Handler
	to types.Stage
}

func (h jumpHandler) Handle(ctx context.Context, in stage.Input) (stage.Update, error) {
	return stage.Update{Next: h.to, Prompt: "jump", Outcome: stage.OutcomeAdvanced}, nil
}

func TestIllegalTransition(t *testing.T) {
	handlers := stage.Default(travelAgent())
	handlers[0] = jumpHandler{Handler: handlers[0], to: types.StageActivities}
	m, err := New(handlers)
	require.NoError(t, err)

	rec := types.NewRecord()
	next, _, err := m.Step(context.Background(), rec, "")
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Same(t, rec, next)

	_, _, err = m.Step(context.Background(), &types.Record{Stage: "boarding"}, "")
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestNewChecksExhaustiveness(t *testing.T) {
	handlers := stage.Default(travelAgent())

	_, err := New(handlers[:len(handlers)-1])
	assert.ErrorIs(t, err, ErrMissingHandler)

	_, err = New(append(handlers, stage.NewComplete()))
	assert.ErrorIs(t, err, ErrDuplicateHandler)
}
