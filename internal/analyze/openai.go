package analyze

import (
	"context"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// Compile-time assertion that OpenAI implements Analyzer.
var _ Analyzer = (*OpenAI)(nil)

// OpenAI implements Analyzer against the OpenAI chat completions API with
// JSON mode enabled, so the backend is constrained to emit a single JSON
// object.
type OpenAI struct {
	client oai.Client
	model  string
}

// NewOpenAI constructs the OpenAI-backed analyzer. baseURL may be empty to
// use the default API endpoint.
func NewOpenAI(apiKey, baseURL, model string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("analyze: openai apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("analyze: openai model must not be empty")
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Analyze implements Analyzer.
func (a *OpenAI) Analyze(ctx context.Context, transcript, requesterName string) (*Result, error) {
	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(a.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(systemPrompt),
			oai.UserMessage(userPrompt(transcript, requesterName)),
		},
		ResponseFormat: oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("analyze: openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("analyze: openai returned no choices")
	}

	return ParseResult(resp.Choices[0].Message.Content)
}
