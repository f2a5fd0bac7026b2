package types

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
)

func FormatFlightOptions(options []FlightOption) string {
	if len(options) == 0 {
		return ""
	}
	var buf strings.Builder
	buf.WriteString("# Flight options:\n")
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("Airline", "Price", "Duration")
	for _, option := range options {
		_ = table.Append(option.Airline, fmt.Sprintf("$%d", option.Price), option.Duration)
	}
	_ = table.Render()
	return buf.String()
}

func FormatHotelOptions(options []HotelOption) string {
	if len(options) == 0 {
		return ""
	}
	var buf strings.Builder
	buf.WriteString("# Hotel options:\n")
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("Hotel", "Price per night", "Rating")
	for _, option := range options {
		_ = table.Append(option.Name, fmt.Sprintf("$%d", option.Price), fmt.Sprintf("%d stars", option.Rating))
	}
	_ = table.Render()
	return buf.String()
}

// FormatPlan renders the collected trip facts as prompt sections. Unset fields
// are omitted.
func FormatPlan(r *Record) string {
	if r == nil {
		return ""
	}
	var sections []string
	if r.Budget != nil {
		sections = append(sections, fmt.Sprintf("# Budget:\n$%d", *r.Budget))
	}
	if len(r.Activities) > 0 {
		sections = append(sections, fmt.Sprintf("# Activities:\n%s", strings.Join(r.Activities, ", ")))
	}
	if r.Preference != "" {
		sections = append(sections, fmt.Sprintf("# Travel style:\n%s", r.Preference))
	}
	if s := FormatFlightOptions(r.FlightOptions); s != "" {
		sections = append(sections, strings.TrimRight(s, "\n"))
	}
	if s := FormatHotelOptions(r.HotelOptions); s != "" {
		sections = append(sections, strings.TrimRight(s, "\n"))
	}
	if r.Itinerary != "" {
		sections = append(sections, fmt.Sprintf("# Itinerary:\n%s", r.Itinerary))
	}
	return strings.Join(sections, "\n\n")
}
