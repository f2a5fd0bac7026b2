package stage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tbxark/tripvoice/extract"
	"github.com/tbxark/tripvoice/generate"
	"github.com/tbxark/tripvoice/patch"
	"github.com/tbxark/tripvoice/types"
)

// Synthesis step names, in execution order.
const (
	StepFlightSearch      = "flight_search"
	StepHotelSearch       = "hotel_search"
	StepItinerary         = "itinerary"
	StepSummary           = "summary"
	StepFinalPresentation = "final_presentation"
)

const maxFlightOptions = 3

var (
	defaultAirlines = []string{"Budget Airways", "Premium Airlines"}
	flightDurations = []string{"8 hours", "6 hours", "5 hours"}
	fallbackFlight  = types.FlightOption{Airline: "Standard Airlines", Price: 500, Duration: "7 hours"}
)

// synthesisStep fills one derived field of the working copy and reports
// whether it had to fall back to a template.
type synthesisStep struct {
	name string
	run  func(ctx context.Context, work *types.Record) (degraded bool)
}

// Processing runs the synthesis steps back to back and presents the plan as
// one consolidated prompt. It is entered without a user utterance.
type Processing struct {
	gen   generate.Generator
	steps []synthesisStep
}

func NewProcessing(gen generate.Generator) *Processing {
	p := &Processing{gen: gen}
	p.steps = []synthesisStep{
		{name: StepFlightSearch, run: p.searchFlights},
		{name: StepHotelSearch, run: p.searchHotels},
		{name: StepItinerary, run: p.writeItinerary},
		{name: StepSummary, run: p.writeSummary},
	}
	return p
}

func (*Processing) Stage() types.Stage { return types.StageProcessing }

func (*Processing) Guard() patch.Guard {
	paths := []string{types.PathFlightOptions, types.PathHotelOptions, types.PathItinerary, types.PathSummary}
	return patch.Guard{Allowed: paths, Once: paths}
}

func (*Processing) Canned() string { return ProcessingCanned }

func (p *Processing) Handle(ctx context.Context, in Input) (Update, error) {
	if in.Record.Budget == nil {
		return Update{}, fmt.Errorf("processing stage: budget: %w", ErrMissingField)
	}
	if in.Record.Preference == "" {
		return Update{}, fmt.Errorf("processing stage: preference: %w", ErrMissingField)
	}

	work := in.Record.Clone()
	var degraded []string
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return Update{}, err
		}
		fellBack := step.run(ctx, work)
		if fellBack {
			degraded = append(degraded, step.name)
		}
		slog.Debug("Synthesis step finished", "step", step.name, "degraded", fellBack)
	}
	if err := ctx.Err(); err != nil {
		return Update{}, err
	}
	prompt := Presentation(work)
	slog.Debug("Synthesis step finished", "step", StepFinalPresentation, "degraded", len(degraded) > 0)

	return Update{
		Next: types.StageComplete,
		Ops: []patch.Operation{
			patch.Add(types.PathFlightOptions, work.FlightOptions),
			patch.Add(types.PathHotelOptions, work.HotelOptions),
			patch.Add(types.PathItinerary, work.Itinerary),
			patch.Add(types.PathSummary, work.Summary),
		},
		Prompt:   prompt,
		Outcome:  OutcomeAdvanced,
		Degraded: degraded,
	}, nil
}

// FlightBasePrice scales the fare with the budget, capped per tier.
func FlightBasePrice(budget int, pref types.Preference) int {
	if pref == types.PreferenceLuxury {
		return min(600, budget/2)
	}
	return min(400, budget/3)
}

// HotelBasePrice is the nightly rate of the first hotel option.
func HotelBasePrice(pref types.Preference) int {
	if pref == types.PreferenceLuxury {
		return 200
	}
	return 80
}

func (p *Processing) searchFlights(ctx context.Context, work *types.Record) bool {
	raw, ok := ask(ctx, p.gen, types.StageProcessing, flightInstruction(work))
	if !ok {
		work.FlightOptions = []types.FlightOption{fallbackFlight}
		return true
	}
	airlines := defaultAirlines
	if res := extract.List(raw, extract.TagAirlines); res.Found() && len(res.Value) > 0 {
		airlines = res.Value
	}
	if len(airlines) > maxFlightOptions {
		airlines = airlines[:maxFlightOptions]
	}
	base := FlightBasePrice(work.BudgetValue(), work.Preference)
	options := make([]types.FlightOption, 0, len(airlines))
	for i, airline := range airlines {
		options = append(options, types.FlightOption{
			Airline:  airline,
			Price:    base + 200*i,
			Duration: flightDurations[i],
		})
	}
	work.FlightOptions = options
	return false
}

func (p *Processing) searchHotels(_ context.Context, work *types.Record) bool {
	base := HotelBasePrice(work.Preference)
	work.HotelOptions = []types.HotelOption{
		{Name: "City Center Hotel", Price: base, Rating: 4},
		{Name: "Premium Resort", Price: base + 100, Rating: 5},
	}
	return false
}

func (p *Processing) writeItinerary(ctx context.Context, work *types.Record) bool {
	raw, ok := ask(ctx, p.gen, types.StageProcessing, itineraryInstruction(work))
	if text := strings.TrimSpace(raw); ok && text != "" {
		work.Itinerary = text
		return false
	}
	work.Itinerary = itineraryTemplate
	return true
}

func (p *Processing) writeSummary(ctx context.Context, work *types.Record) bool {
	raw, ok := ask(ctx, p.gen, types.StageProcessing, summaryInstruction(work))
	if text := strings.TrimSpace(raw); ok && text != "" {
		work.Summary = text
		return false
	}
	work.Summary = summaryTemplate(work)
	return true
}

// Presentation is the final prompt of a finished plan.
func Presentation(r *types.Record) string {
	return fmt.Sprintf(presentationFormat, r.Summary, r.Itinerary)
}
