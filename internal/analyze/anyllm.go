package analyze

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
)

// Compile-time assertion that AnyLLM implements Analyzer.
var _ Analyzer = (*AnyLLM)(nil)

// AnyLLM implements Analyzer through the unified multi-provider client,
// covering every supported backend other than direct OpenAI. Providers
// without a JSON mode are trusted to follow the prompt; [ParseResult]
// tolerates the markdown fences some of them add.
type AnyLLM struct {
	backend anyllmlib.Provider
	model   string
}

// NewAnyLLM constructs the multi-provider analyzer. providerName is one of:
// "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq". An empty
// apiKey falls back to the provider's environment variable (ANTHROPIC_API_KEY
// and so on); baseURL may be empty.
func NewAnyLLM(providerName, apiKey, baseURL, model string) (*AnyLLM, error) {
	if model == "" {
		return nil, fmt.Errorf("analyze: model must not be empty")
	}

	var opts []anyllmlib.Option
	if apiKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(baseURL))
	}

	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("analyze: create %q backend: %w", providerName, err)
	}
	return &AnyLLM{backend: backend, model: model}, nil
}

// createBackend maps a provider name to its any-llm-go constructor.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: anthropic, gemini, ollama, deepseek, mistral, groq", providerName)
	}
}

// Analyze implements Analyzer.
func (a *AnyLLM) Analyze(ctx context.Context, transcript, requesterName string) (*Result, error) {
	params := anyllmlib.CompletionParams{
		Model: a.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: systemPrompt},
			{Role: anyllmlib.RoleUser, Content: userPrompt(transcript, requesterName)},
		},
	}

	resp, err := a.backend.Completion(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("analyze: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("analyze: backend returned no choices")
	}

	return ParseResult(resp.Choices[0].Message.ContentString())
}
