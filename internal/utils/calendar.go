package utils

import (
	"net/url"
	"time"
)

// CalendarDuration is the length given to events in calendar links; events
// carry only a start time.
const CalendarDuration = 2 * time.Hour

// GoogleCalendarURL returns an "add to Google Calendar" link for an event
// starting at start.
func GoogleCalendarURL(title, details, location string, start time.Time) string {
	const layout = "20060102T150405Z"
	start = start.UTC()
	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", title)
	q.Set("dates", start.Format(layout)+"/"+start.Add(CalendarDuration).Format(layout))
	if details != "" {
		q.Set("details", details)
	}
	if location != "" {
		q.Set("location", location)
	}
	return "https://calendar.google.com/calendar/render?" + q.Encode()
}
