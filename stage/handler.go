package stage

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tbxark/tripvoice/generate"
	"github.com/tbxark/tripvoice/patch"
	"github.com/tbxark/tripvoice/types"
)

// Outcome classifies how a handler resolved one turn.
type Outcome string

const (
	OutcomeAdvanced        Outcome = "advanced"
	OutcomeGenerationError Outcome = "generation_error"
	OutcomeExtractionMiss  Outcome = "extraction_miss"
	OutcomeParseError      Outcome = "parse_error"
	OutcomeClosed          Outcome = "closed"
	OutcomeCancelled       Outcome = "cancelled"
)

// Retry reports whether the outcome keeps the conversation on its stage.
func (o Outcome) Retry() bool {
	switch o {
	case OutcomeGenerationError, OutcomeExtractionMiss, OutcomeParseError, OutcomeCancelled:
		return true
	default:
		return false
	}
}

// Input is what a handler sees of a turn. Record is a private copy and must be
// treated as read-only.
type Input struct {
	Record    *types.Record
	Utterance string
}

// Update is the partial result of a handler. Ops are applied by the workflow
// machine only if the whole step succeeds.
type Update struct {
	Next    types.Stage
	Ops     []patch.Operation
	Prompt  string
	Outcome Outcome
	// Degraded names the synthesis steps that fell back to templates.
	Degraded []string
}

type Handler interface {
	Stage() types.Stage
	// Guard lists the record pointers the handler's ops may write.
	Guard() patch.Guard
	// Canned is the fixed prompt used when the turn cannot be completed.
	Canned() string
	Handle(ctx context.Context, in Input) (Update, error)
}

// ErrMissingField is returned when a handler runs before the fields it reads
// have been produced.
var ErrMissingField = errors.New("required field not set")

// Default builds the full handler set over gen.
func Default(gen generate.Generator) []Handler {
	return []Handler{
		NewGreeting(),
		NewBudget(gen),
		NewActivities(gen),
		NewPreference(gen),
		NewProcessing(gen),
		NewComplete(),
	}
}

func retry(stage types.Stage, prompt string, outcome Outcome) Update {
	return Update{Next: stage, Prompt: prompt, Outcome: outcome}
}

// ask calls the generator and reports whether a usable response came back.
// Failures are logged and swallowed here; callers answer with their canned
// prompt.
func ask(ctx context.Context, gen generate.Generator, stage types.Stage, instruction string) (string, bool) {
	raw, err := gen.Generate(ctx, instruction)
	if err != nil {
		slog.Debug("Generation failed", "stage", stage, "err", generate.AsGenerationError(string(stage), err))
		return "", false
	}
	slog.Debug("Generated", "stage", stage, "raw", raw)
	return raw, true
}

// clarify chooses the re-prompt for a response that did not carry a usable
// value. A tagged but unparseable value is never read back to the caller.
func clarify(response, passthrough string, parseError bool, fallback string) string {
	if response != "" {
		return response
	}
	if !parseError && passthrough != "" {
		return passthrough
	}
	return fallback
}
