package tools

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// Campus FAQ answers. Static for now; a CMS-backed source can replace these
// without changing the tool surface.
var (
	cafeteriaTimings = "Mon-Fri 8am-8pm, Sat-Sun 9am-5pm"
	libraryHours     = "Mon-Fri 9am-10pm, Sat 9am-6pm, Sun Closed"
	eventSchedule    = []CampusEvent{
		{Title: "Orientation", Date: "Sept 25"},
		{Title: "Tech Talk", Date: "Oct 5"},
		{Title: "Sports Day", Date: "Oct 15"},
	}
)

// CampusEvent is one entry of the campus event schedule.
type CampusEvent struct {
	Title string `json:"title"`
	Date  string `json:"date"`
}

// FAQInput is the empty input shared by the FAQ tools.
type FAQInput struct{}

// CafeteriaInfo returns the cafeteria opening hours for non-agent callers.
func CafeteriaInfo() string { return cafeteriaTimings }

// LibraryInfo returns the library opening hours for non-agent callers.
func LibraryInfo() string { return libraryHours }

// Events returns the campus event schedule for non-agent callers.
func Events() []CampusEvent { return eventSchedule }

func (c *Catalog) registerFAQTools(g *genkit.Genkit) {
	genkit.DefineTool(g, "getCafeteriaTimings",
		"Return the campus cafeteria opening hours.",
		c.CafeteriaTimings)

	genkit.DefineTool(g, "getLibraryHours",
		"Return the campus library opening hours.",
		c.LibraryHours)

	genkit.DefineTool(g, "getEventSchedule",
		"Return the upcoming campus events with their dates.",
		c.EventSchedule)
}

// CafeteriaTimings returns the cafeteria opening hours.
func (c *Catalog) CafeteriaTimings(_ *ai.ToolContext, _ FAQInput) (Result, error) {
	return Success("Cafeteria timings", map[string]any{"cafeteria_timings": cafeteriaTimings}), nil
}

// LibraryHours returns the library opening hours.
func (c *Catalog) LibraryHours(_ *ai.ToolContext, _ FAQInput) (Result, error) {
	return Success("Library hours", map[string]any{"library_hours": libraryHours}), nil
}

// EventSchedule returns the upcoming campus events.
func (c *Catalog) EventSchedule(_ *ai.ToolContext, _ FAQInput) (Result, error) {
	return Success("Event schedule", map[string]any{"events": eventSchedule}), nil
}
