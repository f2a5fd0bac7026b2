package stage

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tbxark/tripvoice/extract"
	"github.com/tbxark/tripvoice/types"
)

// MaxUtteranceRunes bounds how much of an utterance is embedded in an
// instruction.
const MaxUtteranceRunes = 500

const (
	GreetingPrompt = "Hello! I'm your AI travel planning assistant. I'm excited to help you plan your perfect trip! " +
		"I'll need to gather some information about your preferences to create a personalized travel plan for you. " +
		"Let's start with your budget. What's your total budget for this trip?"

	BudgetCanned        = "I'd love to help you plan your trip! Could you tell me your total budget for this trip?"
	BudgetClarification = "I'd like to understand your budget better. Could you tell me how much you're planning to spend on this trip in dollars?"
	budgetAckFormat     = "Perfect! $%d is a great budget to work with. Now, what activities do you enjoy when traveling? " +
		"For example, museums, hiking, beaches, food tours, nightlife, or shopping?"

	ActivitiesCanned     = "What kind of activities do you enjoy? For example: sightseeing, adventure sports, cultural experiences, food and dining, or relaxation?"
	activitiesAckDefault = "Great choices!"
	activitiesAckFormat  = "%s Now, do you prefer luxury experiences with premium accommodations and services, " +
		"or are you more budget-conscious looking for good value options?"

	PreferenceCanned = "Would you prefer luxury accommodations and experiences, or are you looking for more budget-friendly options?"
	PreferenceAck    = "Perfect! I have all the information I need. Let me create your personalized travel plan..."

	ProcessingCanned = "I'm still putting your travel plan together. Could you give me a moment and ask again?"

	ClosingPrompt = "Thank you for using our travel planning service! Feel free to ask if you need any adjustments to your plan."

	presentationFormat = "Here's your personalized travel plan!\n\n%s\n\nYour 3-day itinerary:\n%s\n\n" +
		"I hope you have an amazing trip! Is there anything specific you'd like me to adjust or explain further about your travel plan?"

	itineraryTemplate = "Day 1: City exploration and local cuisine\n" +
		"Day 2: Main attractions and cultural sites\n" +
		"Day 3: Leisure activities and shopping"
)

// bound truncates the utterance and neutralizes quotes so it cannot break
// out of the quoted instruction context.
func bound(utterance string) string {
	utterance = strings.TrimSpace(utterance)
	if utf8.RuneCountInString(utterance) > MaxUtteranceRunes {
		utterance = string([]rune(utterance)[:MaxUtteranceRunes])
	}
	return strings.ReplaceAll(utterance, `"`, "'")
}

func budgetInstruction(utterance string) string {
	return fmt.Sprintf(`The user said: "%s" when asked about their travel budget.

Extract the total budget in US dollars if they mentioned one.
If they asked a question or need clarification, answer briefly and ask for their budget again.

Respond with exactly one of:
%s <whole number of dollars>
%s <your response>`, bound(utterance), extract.TagBudget.Marker(), extract.TagResponse.Marker())
}

func activitiesInstruction(r *types.Record, utterance string) string {
	return fmt.Sprintf(`The user has a travel budget of $%d.
The user said: "%s" when asked about the activities they enjoy while traveling.

Extract the activities they mentioned and write a short encouraging acknowledgment.
If they seem unsure, suggest a few popular activities and ask again without the %s tag.

Respond in the format:
%s <activity1>, <activity2>, ... | %s <your response>`,
		r.BudgetValue(), bound(utterance),
		extract.TagActivities, extract.TagActivities.Marker(), extract.TagResponse.Marker())
}

func preferenceInstruction(utterance string) string {
	return fmt.Sprintf(`The user said: "%s" when asked whether they prefer luxury or budget-friendly travel.

Decide whether they prefer "%s" or "%s".

Respond in the format:
%s <%s|%s> | %s <a short acknowledgment>`,
		bound(utterance), types.PreferenceLuxury, types.PreferenceEconomy,
		extract.TagPreference.Marker(), types.PreferenceLuxury, types.PreferenceEconomy, extract.TagResponse.Marker())
}

func flightInstruction(r *types.Record) string {
	return fmt.Sprintf(`Suggest 2-3 realistic airlines for a trip with:
- Budget: $%d
- Travel style: %s

Respond in the format:
%s <airline1>, <airline2>, <airline3>`, r.BudgetValue(), r.Preference, extract.TagAirlines.Marker())
}

func itineraryInstruction(r *types.Record) string {
	activities := "no particular preference"
	if len(r.Activities) > 0 {
		activities = strings.Join(r.Activities, ", ")
	}
	return fmt.Sprintf(`Create a concise 3-day travel itinerary for:
- Budget: $%d
- Activities: %s
- Style: %s

Keep it brief but engaging and include specific attractions and activities.
Write exactly three lines starting with "Day 1:", "Day 2:" and "Day 3:".`, r.BudgetValue(), activities, r.Preference)
}

func summaryInstruction(r *types.Record) string {
	highlight := &types.Record{
		Budget:     r.Budget,
		Preference: r.Preference,
		Itinerary:  r.Itinerary,
	}
	if len(r.FlightOptions) > 0 {
		highlight.FlightOptions = r.FlightOptions[:1]
	}
	if len(r.HotelOptions) > 0 {
		highlight.HotelOptions = r.HotelOptions[:1]
	}
	return fmt.Sprintf(`Create a brief travel summary of two or three sentences highlighting the budget, the best flight option, the recommended hotel and the key highlights of the itinerary.

%s

Keep it concise and exciting.`, types.FormatPlan(highlight))
}

func summaryTemplate(r *types.Record) string {
	var parts []string
	if len(r.FlightOptions) > 0 {
		f := r.FlightOptions[0]
		parts = append(parts, fmt.Sprintf("a flight with %s for $%d (%s)", f.Airline, f.Price, f.Duration))
	}
	if len(r.HotelOptions) > 0 {
		h := r.HotelOptions[0]
		parts = append(parts, fmt.Sprintf("a stay at %s for $%d per night", h.Name, h.Price))
	}
	parts = append(parts, "a 3-day itinerary")
	return fmt.Sprintf("Your $%d travel plan includes %s, tailored to your %s preferences.",
		r.BudgetValue(), strings.Join(parts, ", "), r.Preference)
}
