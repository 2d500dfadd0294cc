package analyze_test

import (
	"strings"
	"testing"

	"voxnote/internal/analyze"
)

func TestParseResult(t *testing.T) {
	t.Parallel()

	const full = `{
		"language": "en",
		"summary": "Planning the quarterly review.",
		"action_items": [
			{"task": "Book a room", "deadline": "tomorrow", "priority": "HIGH"},
			{"task": "Send agenda", "priority": ""}
		],
		"topics": ["review", "planning"]
	}`

	cases := []struct {
		name    string
		raw     string
		wantErr bool
		check   func(t *testing.T, res *analyze.Result)
	}{
		{
			name: "plain json",
			raw:  full,
			check: func(t *testing.T, res *analyze.Result) {
				if res.Language != "en" {
					t.Errorf("language: got %q", res.Language)
				}
				if len(res.ActionItems) != 2 {
					t.Fatalf("action items: want 2, got %d", len(res.ActionItems))
				}
				if res.ActionItems[0].Priority != analyze.PriorityHigh {
					t.Errorf("priority should be normalised to lowercase, got %q", res.ActionItems[0].Priority)
				}
				if res.ActionItems[1].Priority != analyze.PriorityMedium {
					t.Errorf("blank priority should default to medium, got %q", res.ActionItems[1].Priority)
				}
			},
		},
		{
			name: "fenced json with language tag",
			raw:  "```json\n" + full + "\n```",
			check: func(t *testing.T, res *analyze.Result) {
				if res.Summary != "Planning the quarterly review." {
					t.Errorf("summary: got %q", res.Summary)
				}
			},
		},
		{
			name: "missing action items becomes empty slice",
			raw:  `{"language": "de", "summary": "Nothing to do."}`,
			check: func(t *testing.T, res *analyze.Result) {
				if res.ActionItems == nil || len(res.ActionItems) != 0 {
					t.Errorf("action items: want empty non-nil slice, got %#v", res.ActionItems)
				}
			},
		},
		{
			name:    "not json",
			raw:     "Sure! Here is your summary: the meeting went well.",
			wantErr: true,
		},
		{
			name:    "json without summary",
			raw:     `{"language": "en", "action_items": []}`,
			wantErr: true,
		},
		{
			name:    "empty",
			raw:     "   ",
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res, err := analyze.ParseResult(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("want parse error, got %+v", res)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseResult: %v", err)
			}
			tc.check(t, res)
		})
	}
}

func TestDegraded(t *testing.T) {
	t.Parallel()

	res := analyze.Degraded()
	if res.Language != "unknown" {
		t.Errorf("language: got %q", res.Language)
	}
	if !strings.Contains(res.Summary, "Could not analyze") {
		t.Errorf("summary should state analysis failed, got %q", res.Summary)
	}
	if res.ActionItems == nil || len(res.ActionItems) != 0 {
		t.Errorf("action items: want empty non-nil slice, got %#v", res.ActionItems)
	}
}

func TestNew_UnsupportedProvider(t *testing.T) {
	t.Parallel()

	if _, err := analyze.New("watson", "key", "", "model"); err == nil {
		t.Fatal("want error for unsupported provider")
	}
}
