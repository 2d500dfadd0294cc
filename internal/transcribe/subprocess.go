package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// WorkerCommand is the hidden subcommand under which the main binary runs as
// a one-shot transcription worker. See [RunWorker].
const WorkerCommand = "transcribe-worker"

// Compile-time assertion that Subprocess implements Strategy.
var _ Strategy = (*Subprocess)(nil)

// Subprocess transcribes by re-executing the current binary as a short-lived
// worker process. The worker builds its own client from scratch, performs
// exactly one request, and writes the plain-text transcript to stdout; no
// client state from this process can reach it. A non-zero exit or a timeout
// is a failure, with the worker's stderr captured for diagnostics.
type Subprocess struct {
	execPath string
	apiKey   string
	baseURL  string
	model    string
}

// NewSubprocess creates the subprocess strategy. It resolves the current
// executable path once at construction time.
func NewSubprocess(apiKey, baseURL, model string) (*Subprocess, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("transcribe: resolve executable path: %w", err)
	}
	return &Subprocess{
		execPath: exe,
		apiKey:   apiKey,
		baseURL:  baseURL,
		model:    model,
	}, nil
}

// Name implements Strategy.
func (s *Subprocess) Name() string { return "subprocess" }

// Transcribe implements Strategy. The worker process is killed when ctx
// expires.
func (s *Subprocess) Transcribe(ctx context.Context, audioPath, language string) (string, error) {
	args := []string{WorkerCommand, "-model", s.model}
	if language != "" {
		args = append(args, "-language", language)
	}
	args = append(args, audioPath)

	cmd := exec.CommandContext(ctx, s.execPath, args...)
	cmd.Env = append(os.Environ(),
		"OPENAI_API_KEY="+s.apiKey,
		"OPENAI_BASE_URL="+s.baseURL,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("transcribe: worker timed out: %w", ctxErr)
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			return "", fmt.Errorf("transcribe: worker failed: %w", err)
		}
		return "", fmt.Errorf("transcribe: worker failed: %w: %s", err, detail)
	}

	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return "", errors.New("transcribe: worker produced no output")
	}
	return text, nil
}
