package calendar_test

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"voxnote/internal/calendar"
)

// fixedNow is a Wednesday, 2025-06-18 14:30 UTC.
var fixedNow = time.Date(2025, 6, 18, 14, 30, 0, 0, time.UTC)

func newLinker(t *testing.T) *calendar.Linker {
	t.Helper()
	l := calendar.NewLinker(30)
	l.SetClock(func() time.Time { return fixedNow })
	return l
}

func TestEventLink_Deterministic(t *testing.T) {
	t.Parallel()

	l := newLinker(t)
	start := time.Date(2025, 6, 20, 9, 0, 0, 0, time.UTC)

	link := l.EventLink("Review budget", "Priority: high", start)
	if link != l.EventLink("Review budget", "Priority: high", start) {
		t.Fatal("EventLink must be deterministic for identical inputs")
	}

	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("generated link does not parse: %v", err)
	}
	q := u.Query()
	if got := q.Get("action"); got != "TEMPLATE" {
		t.Errorf("action: want TEMPLATE, got %q", got)
	}
	if got := q.Get("text"); got != "Review budget" {
		t.Errorf("text: want title, got %q", got)
	}
	if got := q.Get("dates"); got != "20250620T090000/20250620T093000" {
		t.Errorf("dates: want 30-minute slot from start, got %q", got)
	}
}

func TestEventLink_ZeroStartDefaultsTomorrowNine(t *testing.T) {
	t.Parallel()

	l := newLinker(t)
	link := l.EventLink("Task", "", time.Time{})

	u, _ := url.Parse(link)
	if got := u.Query().Get("dates"); !strings.HasPrefix(got, "20250619T090000/") {
		t.Errorf("dates should start tomorrow 09:00, got %q", got)
	}
}

func TestEventLink_EscapesTitle(t *testing.T) {
	t.Parallel()

	l := newLinker(t)
	link := l.EventLink("Call André & sons", "a=b?c", time.Time{})

	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("link with special characters does not parse: %v", err)
	}
	if got := u.Query().Get("text"); got != "Call André & sons" {
		t.Errorf("title should round-trip through encoding, got %q", got)
	}
}

func TestParseDeadline(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		text string
		want time.Time
		ok   bool
	}{
		{
			name: "exact date",
			text: "2025-07-01",
			want: time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "today",
			text: "today",
			want: time.Date(2025, 6, 18, 9, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "tomorrow",
			text: "by tomorrow",
			want: time.Date(2025, 6, 19, 9, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "next week",
			text: "Next week",
			want: time.Date(2025, 6, 25, 9, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "next month",
			text: "next month",
			want: time.Date(2025, 7, 18, 9, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "pm time later today",
			text: "3 PM",
			want: time.Date(2025, 6, 18, 15, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "am time already past rolls to tomorrow",
			text: "9 AM",
			want: time.Date(2025, 6, 19, 9, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "24h clock with minutes",
			text: "16:45",
			want: time.Date(2025, 6, 18, 16, 45, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "pm noon already past rolls to tomorrow",
			text: "12 PM",
			want: time.Date(2025, 6, 19, 12, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "nothing parseable",
			text: "whenever you can",
			want: time.Time{},
			ok:   false,
		},
		{
			name: "empty",
			text: "",
			want: time.Time{},
			ok:   false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := calendar.ParseDeadline(tc.text, fixedNow)
			if ok != tc.ok {
				t.Fatalf("ok: want %v, got %v", tc.ok, ok)
			}
			if ok && !got.Equal(tc.want) {
				t.Errorf("time: want %v, got %v", tc.want, got)
			}
		})
	}
}
