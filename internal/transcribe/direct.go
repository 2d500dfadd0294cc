package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// defaultBaseURL is the API root used when no base URL is configured.
const defaultBaseURL = "https://api.openai.com/v1"

// Compile-time assertion that Direct implements Strategy.
var _ Strategy = (*Direct)(nil)

// Direct issues the transcription request at the wire level: a hand-built
// multipart POST with a bearer auth header. No client library is involved, so
// no library state can pollute the request. The response_format field is
// always the plain string "text".
type Direct struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewDirect creates the wire-level strategy. baseURL may be empty to target
// the default API endpoint.
func NewDirect(apiKey, baseURL, model string) *Direct {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Direct{
		endpoint: strings.TrimSuffix(baseURL, "/") + "/audio/transcriptions",
		apiKey:   apiKey,
		model:    model,
		// Per-request deadlines come from the caller's context.
		httpClient: &http.Client{},
	}
}

// Name implements Strategy.
func (d *Direct) Name() string { return "direct" }

// Transcribe implements Strategy.
func (d *Direct) Transcribe(ctx context.Context, audioPath, language string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("transcribe: open audio: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", fmt.Errorf("transcribe: create form file: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return "", fmt.Errorf("transcribe: write audio data: %w", err)
	}
	if err := mw.WriteField("model", d.model); err != nil {
		return "", fmt.Errorf("transcribe: write model field: %w", err)
	}
	if err := mw.WriteField("response_format", "text"); err != nil {
		return "", fmt.Errorf("transcribe: write response_format field: %w", err)
	}
	if language != "" {
		if err := mw.WriteField("language", language); err != nil {
			return "", fmt.Errorf("transcribe: write language field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("transcribe: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("transcribe: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe: http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("transcribe: read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcribe: backend returned HTTP %d: %s",
			resp.StatusCode, strings.TrimSpace(string(data)))
	}

	return parseTranscript(data), nil
}

// parseTranscript handles both documented response shapes: a bare string or
// a JSON object with a "text" field.
func parseTranscript(data []byte) string {
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && obj.Text != "" {
		return strings.TrimSpace(obj.Text)
	}
	return strings.TrimSpace(string(data))
}
