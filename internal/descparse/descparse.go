// Package descparse extracts structured fields from free-text payment
// descriptions.
package descparse

import "regexp"

// Field keys produced by the default parser.
const (
	ScheduleKey = "payment_description_schedule"
	EventKey    = "payment_description_event"
)

// Func parses a raw description into record fields. A custom Func owns its
// own key contract; its output is merged into the matched record as-is.
type Func func(description string) map[string]string

// A trailing parenthesized segment, e.g. "Membership (Spring Term)".
var pattern = regexp.MustCompile(`^([\s\S]+) \(([\s\S]+)\)$`)

// Parse is the default parser: everything before a trailing parenthesized
// segment becomes the schedule and the segment itself the event. A
// description without a trailing parenthetical yields empty fields; Parse
// never fails.
func Parse(description string) map[string]string {
	schedule, event := "", ""
	if m := pattern.FindStringSubmatch(description); m != nil {
		schedule, event = m[1], m[2]
	}
	return map[string]string{
		ScheduleKey: schedule,
		EventKey:    event,
	}
}
