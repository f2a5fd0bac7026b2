package stage

import (
	"context"
	"fmt"

	"github.com/tbxark/tripvoice/extract"
	"github.com/tbxark/tripvoice/generate"
	"github.com/tbxark/tripvoice/patch"
	"github.com/tbxark/tripvoice/types"
)

type Greeting struct{}

func NewGreeting() *Greeting {
	return &Greeting{}
}

func (*Greeting) Stage() types.Stage { return types.StageGreeting }

func (*Greeting) Guard() patch.Guard { return patch.Guard{} }

func (*Greeting) Canned() string { return GreetingPrompt }

func (*Greeting) Handle(ctx context.Context, in Input) (Update, error) {
	return Update{Next: types.StageBudget, Prompt: GreetingPrompt, Outcome: OutcomeAdvanced}, nil
}

type Budget struct {
	gen generate.Generator
}

func NewBudget(gen generate.Generator) *Budget {
	return &Budget{gen: gen}
}

func (*Budget) Stage() types.Stage { return types.StageBudget }

func (*Budget) Guard() patch.Guard {
	return patch.Guard{Allowed: []string{types.PathBudget}, Once: []string{types.PathBudget}}
}

func (*Budget) Canned() string { return BudgetCanned }

func (b *Budget) Handle(ctx context.Context, in Input) (Update, error) {
	raw, ok := ask(ctx, b.gen, types.StageBudget, budgetInstruction(in.Utterance))
	if !ok {
		return retry(types.StageBudget, BudgetCanned, OutcomeGenerationError), nil
	}
	res := extract.Int(raw, extract.TagBudget)
	switch res.Outcome {
	case extract.Found:
		return Update{
			Next:    types.StageActivities,
			Ops:     []patch.Operation{patch.Add(types.PathBudget, res.Value)},
			Prompt:  fmt.Sprintf(budgetAckFormat, res.Value),
			Outcome: OutcomeAdvanced,
		}, nil
	case extract.ParseError:
		return retry(types.StageBudget, clarify(res.Response, res.Passthrough, true, BudgetClarification), OutcomeParseError), nil
	default:
		return retry(types.StageBudget, clarify(res.Response, res.Passthrough, false, BudgetClarification), OutcomeExtractionMiss), nil
	}
}

type Activities struct {
	gen generate.Generator
}

func NewActivities(gen generate.Generator) *Activities {
	return &Activities{gen: gen}
}

func (*Activities) Stage() types.Stage { return types.StageActivities }

func (*Activities) Guard() patch.Guard {
	return patch.Guard{Allowed: []string{types.PathActivities}}
}

func (*Activities) Canned() string { return ActivitiesCanned }

func (a *Activities) Handle(ctx context.Context, in Input) (Update, error) {
	if in.Record.Budget == nil {
		return Update{}, fmt.Errorf("activities stage: budget: %w", ErrMissingField)
	}
	raw, ok := ask(ctx, a.gen, types.StageActivities, activitiesInstruction(in.Record, in.Utterance))
	if !ok {
		return retry(types.StageActivities, ActivitiesCanned, OutcomeGenerationError), nil
	}
	res := extract.List(raw, extract.TagActivities)
	if !res.Found() {
		return retry(types.StageActivities, clarify(res.Response, res.Passthrough, false, ActivitiesCanned), OutcomeExtractionMiss), nil
	}
	ack := res.Response
	if ack == "" {
		ack = activitiesAckDefault
	}
	return Update{
		Next:    types.StagePreference,
		Ops:     []patch.Operation{patch.Replace(types.PathActivities, res.Value)},
		Prompt:  fmt.Sprintf(activitiesAckFormat, ack),
		Outcome: OutcomeAdvanced,
	}, nil
}

// Preference always commits a value once the generator answers: anything
// that is not recognizably luxury is economy.
type Preference struct {
	gen generate.Generator
}

func NewPreference(gen generate.Generator) *Preference {
	return &Preference{gen: gen}
}

func (*Preference) Stage() types.Stage { return types.StagePreference }

func (*Preference) Guard() patch.Guard {
	return patch.Guard{Allowed: []string{types.PathPreference}, Once: []string{types.PathPreference}}
}

func (*Preference) Canned() string { return PreferenceCanned }

func (p *Preference) Handle(ctx context.Context, in Input) (Update, error) {
	raw, ok := ask(ctx, p.gen, types.StagePreference, preferenceInstruction(in.Utterance))
	if !ok {
		return retry(types.StagePreference, PreferenceCanned, OutcomeGenerationError), nil
	}
	pref := extract.Category(raw, extract.TagPreference,
		[]types.Preference{types.PreferenceLuxury, types.PreferenceEconomy}, types.PreferenceEconomy)
	return Update{
		Next:    types.StageProcessing,
		Ops:     []patch.Operation{patch.Add(types.PathPreference, pref)},
		Prompt:  PreferenceAck,
		Outcome: OutcomeAdvanced,
	}, nil
}

// Complete answers every turn after the plan was presented.
type Complete struct{}

func NewComplete() *Complete {
	return &Complete{}
}

func (*Complete) Stage() types.Stage { return types.StageComplete }

func (*Complete) Guard() patch.Guard { return patch.Guard{} }

func (*Complete) Canned() string { return ClosingPrompt }

func (*Complete) Handle(ctx context.Context, in Input) (Update, error) {
	return Update{Next: types.StageComplete, Prompt: ClosingPrompt, Outcome: OutcomeClosed}, nil
}
