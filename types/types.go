package types

import "slices"

type Stage string

const (
	StageGreeting   Stage = "greeting"
	StageBudget     Stage = "budget"
	StageActivities Stage = "activities"
	StagePreference Stage = "preference"
	StageProcessing Stage = "processing"
	StageComplete   Stage = "complete"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{
	StageGreeting,
	StageBudget,
	StageActivities,
	StagePreference,
	StageProcessing,
	StageComplete,
}

// Next returns the stage that follows s in the pipeline. The terminal stage
// and unknown stages have no successor.
func (s Stage) Next() (Stage, bool) {
	i := slices.Index(Stages, s)
	if i < 0 || i == len(Stages)-1 {
		return s, false
	}
	return Stages[i+1], true
}

func (s Stage) Valid() bool {
	return slices.Contains(Stages, s)
}

func (s Stage) Terminal() bool {
	return s == StageComplete
}

// Automatic reports whether the stage runs as soon as it is entered, without
// waiting for an utterance.
func (s Stage) Automatic() bool {
	return s == StageProcessing
}

type Preference string

const (
	PreferenceLuxury  Preference = "luxury"
	PreferenceEconomy Preference = "economy"
)

type FlightOption struct {
	Airline  string `json:"airline"`
	Price    int    `json:"price"`
	Duration string `json:"duration"`
}

type HotelOption struct {
	Name   string `json:"name"`
	Price  int    `json:"price"`
	Rating int    `json:"rating"`
}

// Record is the single mutable state carried across the turns of one
// conversation.
type Record struct {
	Stage             Stage          `json:"stage"`
	Budget            *int           `json:"budget,omitempty"`
	Activities        []string       `json:"activities,omitempty"`
	Preference        Preference     `json:"preference,omitempty"`
	FlightOptions     []FlightOption `json:"flight_options,omitempty"`
	HotelOptions      []HotelOption  `json:"hotel_options,omitempty"`
	Itinerary         string         `json:"itinerary,omitempty"`
	Summary           string         `json:"summary,omitempty"`
	LastUserUtterance string         `json:"last_user_utterance,omitempty"`
	LastAgentPrompt   string         `json:"last_agent_prompt,omitempty"`
}

func NewRecord() *Record {
	return &Record{Stage: StageGreeting}
}

func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.Budget != nil {
		b := *r.Budget
		out.Budget = &b
	}
	out.Activities = slices.Clone(r.Activities)
	out.FlightOptions = slices.Clone(r.FlightOptions)
	out.HotelOptions = slices.Clone(r.HotelOptions)
	return &out
}

// BudgetValue returns the committed budget or zero.
func (r *Record) BudgetValue() int {
	if r == nil || r.Budget == nil {
		return 0
	}
	return *r.Budget
}

// JSON pointers of the record fields that stage updates may write.
const (
	PathStage             = "/stage"
	PathBudget            = "/budget"
	PathActivities        = "/activities"
	PathPreference        = "/preference"
	PathFlightOptions     = "/flight_options"
	PathHotelOptions      = "/hotel_options"
	PathItinerary         = "/itinerary"
	PathSummary           = "/summary"
	PathLastUserUtterance = "/last_user_utterance"
	PathLastAgentPrompt   = "/last_agent_prompt"
)
