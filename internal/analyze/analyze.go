// Package analyze extracts structured meaning from a voice-note transcript.
//
// An [Analyzer] sends one chat-completion request instructing the backend to
// return a fixed JSON shape (language, summary, action items, topics) and
// parses the response into a [Result]. The call is single-attempt: on any
// failure the caller decides between surfacing the error and rendering the
// placeholder produced by [Degraded], since the transcript itself is still
// worth showing.
//
// Two interchangeable backends implement the contract: [OpenAI] talks to the
// OpenAI API directly with JSON mode enabled, and [AnyLLM] reaches every
// other supported provider (Anthropic, Gemini, Ollama, DeepSeek, Mistral,
// Groq) through a unified multi-provider client.
package analyze

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Priority levels assigned to extracted action items.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// ActionItem is a single actionable task extracted from a transcript.
type ActionItem struct {
	Task     string `json:"task"`
	Deadline string `json:"deadline,omitempty"`
	Priority string `json:"priority"`
	Assignee string `json:"assignee,omitempty"`
}

// Result is the structured analysis of one transcript.
type Result struct {
	Language    string       `json:"language"`
	Summary     string       `json:"summary"`
	ActionItems []ActionItem `json:"action_items"`
	Topics      []string     `json:"topics,omitempty"`
}

// Analyzer sends a transcript to a language-understanding backend and parses
// the structured result.
type Analyzer interface {
	// Analyze performs a single analysis request. requesterName personalises
	// the instruction but carries no semantics. No retry is performed.
	Analyze(ctx context.Context, transcript, requesterName string) (*Result, error)
}

// Degraded returns the placeholder result rendered when analysis fails but
// the transcript is still worth showing.
func Degraded() *Result {
	return &Result{
		Language:    "unknown",
		Summary:     "Could not analyze transcript",
		ActionItems: []ActionItem{},
	}
}

// systemPrompt is the fixed instruction sent with every analysis request.
const systemPrompt = "You are a helpful assistant that extracts action items from voice notes."

// userPrompt builds the per-request instruction around the transcript.
func userPrompt(transcript, requesterName string) string {
	return fmt.Sprintf(`Analyze this voice note from %s and extract:
1. The language the note was spoken in
2. A brief summary (2-3 sentences)
3. Action items with deadlines and priorities
4. Key topics discussed

Voice note content: %s

Format the response as a single JSON object with keys: language, summary, action_items (list with task, deadline, priority, assignee), topics`,
		requesterName, transcript)
}

// ParseResult parses a backend response into a [Result]. Markdown code
// fences around the JSON object are tolerated since several providers wrap
// their output that way even when asked not to.
func ParseResult(raw string) (*Result, error) {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return nil, errors.New("analyze: empty response")
	}

	var res Result
	if err := json.Unmarshal([]byte(cleaned), &res); err != nil {
		return nil, fmt.Errorf("analyze: response is not valid JSON: %w", err)
	}
	if res.Summary == "" {
		return nil, errors.New("analyze: response is missing the summary field")
	}

	for i := range res.ActionItems {
		res.ActionItems[i].Priority = normalizePriority(res.ActionItems[i].Priority)
	}
	if res.ActionItems == nil {
		res.ActionItems = []ActionItem{}
	}
	return &res, nil
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		// Drop the language tag line ("json", etc.).
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// normalizePriority maps free-form priority strings onto the three known
// levels, defaulting to medium.
func normalizePriority(p string) string {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case PriorityHigh, "urgent", "critical":
		return PriorityHigh
	case PriorityLow, "minor":
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// New constructs the analyzer for the given provider name. "openai" uses the
// native client with JSON mode; every other supported provider goes through
// the unified multi-provider client.
func New(providerName, apiKey, baseURL, model string) (Analyzer, error) {
	if strings.EqualFold(providerName, "openai") {
		return NewOpenAI(apiKey, baseURL, model)
	}
	return NewAnyLLM(providerName, apiKey, baseURL, model)
}
