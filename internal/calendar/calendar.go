// Package calendar generates Google Calendar event-creation deep links for
// extracted action items, and parses loose deadline phrases into concrete
// start times.
//
// Both operations are deterministic given their inputs plus an injected
// clock, which keeps them trivially testable.
package calendar

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// renderURL is the event-creation template endpoint of the target web
// calendar.
const renderURL = "https://calendar.google.com/calendar/render"

// stampLayout is the compact local-time format the template expects for the
// "dates" parameter (start/end pair).
const stampLayout = "20060102T150405"

// Linker builds event links with a fixed default duration. The zero value is
// not usable; construct with [NewLinker].
type Linker struct {
	duration time.Duration
	now      func() time.Time
}

// NewLinker creates a Linker whose events default to durationMinutes when the
// action item has no explicit end.
func NewLinker(durationMinutes int) *Linker {
	return &Linker{
		duration: time.Duration(durationMinutes) * time.Minute,
		now:      time.Now,
	}
}

// SetClock replaces the linker's time source. Intended for tests.
func (l *Linker) SetClock(now func() time.Time) { l.now = now }

// EventLink returns a URL that opens the calendar's event-creation form
// pre-filled with title, description, and the [start, start+duration) slot.
// A zero start defaults to tomorrow 09:00 local time.
func (l *Linker) EventLink(title, description string, start time.Time) string {
	if start.IsZero() {
		start = DefaultStart(l.now())
	}
	end := start.Add(l.duration)

	params := url.Values{}
	params.Set("action", "TEMPLATE")
	params.Set("text", title)
	params.Set("details", description)
	params.Set("dates", start.Format(stampLayout)+"/"+end.Format(stampLayout))

	return renderURL + "?" + params.Encode()
}

// DefaultStart returns the fallback event start relative to now: tomorrow at
// 09:00 in now's location.
func DefaultStart(now time.Time) time.Time {
	tomorrow := now.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 9, 0, 0, 0, now.Location())
}

// clockRe matches loose clock-time phrases like "3 PM", "3:30pm", "15:00".
var clockRe = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?\s*([APap][Mm])?`)

// relative keyword offsets applied to the 09:00 base of the current day.
var keywordOffsets = []struct {
	keyword string
	days    int
}{
	{"next month", 30},
	{"next week", 7},
	{"tomorrow", 1},
	{"today", 0},
}

// ParseDeadline interprets a free-text deadline phrase relative to now.
//
// Recognised forms, in priority order:
//
//  1. exact dates "2006-01-02" (the shape the analysis backend is asked to
//     emit), pinned to 09:00 local;
//  2. the keywords "today", "tomorrow", "next week", "next month";
//  3. clock times like "3 PM" or "15:00", rolled to the next occurrence.
//
// Returns ok=false when nothing parses; callers then fall back to
// [DefaultStart].
func ParseDeadline(text string, now time.Time) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}

	if d, err := time.ParseInLocation("2006-01-02", text, now.Location()); err == nil {
		return time.Date(d.Year(), d.Month(), d.Day(), 9, 0, 0, 0, now.Location()), true
	}

	lower := strings.ToLower(text)
	base := time.Date(now.Year(), now.Month(), now.Day(), 9, 0, 0, 0, now.Location())
	for _, k := range keywordOffsets {
		if strings.Contains(lower, k.keyword) {
			return base.AddDate(0, 0, k.days), true
		}
	}

	m := clockRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}

	hour := atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute = atoi(m[2])
	}
	switch strings.ToUpper(m[3]) {
	case "PM":
		if hour < 12 {
			hour += 12
		}
	case "AM":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return time.Time{}, false
	}

	result := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	// A time already past today means tomorrow.
	if !result.After(now) {
		result = result.AddDate(0, 0, 1)
	}
	return result, true
}

// atoi converts digit-only regexp captures; inputs are guaranteed numeric.
func atoi(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}

// Describe renders a short human-readable note for the event description,
// carrying the item priority and creation stamp.
func Describe(priority string, createdAt time.Time) string {
	return fmt.Sprintf("Priority: %s\nAction item from voxnote\nCreated: %s",
		priority, createdAt.Format("2006-01-02 15:04"))
}
