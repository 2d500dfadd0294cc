package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
)

// Compile-time assertion that Client implements Strategy.
var _ Strategy = (*Client)(nil)

// Client is the last-resort in-process strategy. It constructs a brand-new
// client for every call so that no configuration from earlier chat calls can
// leak in, attempts the request with minimal parameters, and retries once
// with an explicit plain-text response format before giving up.
type Client struct {
	apiKey  string
	baseURL string
	model   string
}

// NewClient creates the in-process client strategy. baseURL may be empty to
// use the default API endpoint.
func NewClient(apiKey, baseURL, model string) *Client {
	return &Client{apiKey: apiKey, baseURL: baseURL, model: model}
}

// Name implements Strategy.
func (c *Client) Name() string { return "client" }

// Transcribe implements Strategy.
func (c *Client) Transcribe(ctx context.Context, audioPath, language string) (string, error) {
	reqOpts := []option.RequestOption{option.WithAPIKey(c.apiKey)}
	if c.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(c.baseURL))
	}
	client := oai.NewClient(reqOpts...)

	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("transcribe: open audio: %w", err)
	}
	defer f.Close()

	params := oai.AudioTranscriptionNewParams{
		File:  f,
		Model: oai.AudioModel(c.model),
	}
	if language != "" {
		params.Language = param.NewOpt(language)
	}

	resp, err := client.Audio.Transcriptions.New(ctx, params)
	if err == nil {
		return resp.Text, nil
	}
	minimalErr := err

	// Retry with the response format pinned to a plain string. A polluted
	// environment defaults it to a structured object the audio endpoint
	// rejects; spelling out "text" overrides that.
	if _, seekErr := f.Seek(0, io.SeekStart); seekErr != nil {
		return "", errors.Join(minimalErr, fmt.Errorf("transcribe: rewind audio for retry: %w", seekErr))
	}
	params.ResponseFormat = oai.AudioResponseFormatText

	resp, err = client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("transcribe: in-process client failed on minimal and text-format calls: %w",
			errors.Join(minimalErr, err))
	}
	return resp.Text, nil
}
