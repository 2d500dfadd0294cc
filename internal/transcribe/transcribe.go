// Package transcribe turns a downloaded voice recording into text.
//
// The external transcription client has a known failure mode: after it has
// been used for a structured-output chat call it can leak an incompatible
// response-format parameter into a later audio call. The package therefore
// runs an ordered chain of isolated strategies instead of trusting any single
// client instance:
//
//  1. [Subprocess] re-executes this binary as a one-shot worker process
//     that builds a fresh client, performs exactly one request, and prints
//     the transcript to stdout.
//  2. [Direct] issues the multipart HTTP request by hand, bypassing any
//     client library entirely.
//  3. [Client] constructs a brand-new in-process client with minimal
//     parameters, retrying once with an explicit plain-text response format.
//
// Each attempt is bounded by a hard timeout. Errors matching the pollution
// signature are logged distinctly but still fall through to the next
// strategy; only exhaustion of the whole chain is terminal.
//
// Usage:
//
//	chain, err := transcribe.DefaultChain(apiKey, baseURL, model)
//	pipe := transcribe.NewPipeline(chain, transcribe.WithTimeout(30*time.Second))
//	text, err := pipe.Transcribe(ctx, "/tmp/voice-123.ogg", "en")
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"voxnote/internal/observe"
)

// DefaultTimeout is the hard per-strategy attempt timeout.
const DefaultTimeout = 30 * time.Second

// errEmptyTranscript marks a nominally successful call that produced no text.
// Treated as a failure so the chain moves on to the next strategy.
var errEmptyTranscript = errors.New("transcribe: backend returned an empty transcript")

// Strategy is one isolated mechanism for obtaining a transcript. Strategies
// are attempted in a fixed order by a [Pipeline]; each must be free of shared
// mutable client state so that one strategy's failure cannot poison another.
type Strategy interface {
	// Name identifies the strategy in logs and metrics.
	Name() string

	// Transcribe converts the audio file at audioPath to text. language is an
	// optional BCP-47 hint ("" means autodetect). The context carries the
	// per-attempt deadline; implementations must abandon the call when it
	// expires.
	Transcribe(ctx context.Context, audioPath, language string) (string, error)
}

// Error is the terminal error returned when every strategy in the chain has
// failed. It wraps the joined per-strategy errors.
type Error struct {
	err error
}

func (e *Error) Error() string {
	return "transcribe: all strategies failed: " + e.err.Error()
}

func (e *Error) Unwrap() error { return e.err }

// IsPollutionError reports whether err carries the known client-state
// pollution signature: a transcription call rejected because a structured
// response-format parameter leaked in from a prior chat call. Such errors are
// logged distinctly for diagnosis but are never treated as unrecoverable.
func IsPollutionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "response_format") || strings.Contains(msg, "json_object")
}

// Option is a functional option for configuring a Pipeline.
type Option func(*Pipeline)

// WithTimeout overrides the per-strategy attempt timeout.
// Defaults to [DefaultTimeout].
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithMetrics overrides the metrics sink. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// Pipeline owns the strategy chain, the per-attempt timeout, and temporary
// file cleanup. It is stateless between calls and safe for concurrent use.
type Pipeline struct {
	strategies []Strategy
	timeout    time.Duration
	metrics    *observe.Metrics
}

// NewPipeline creates a Pipeline that tries strategies in the given order.
func NewPipeline(strategies []Strategy, opts ...Option) *Pipeline {
	p := &Pipeline{
		strategies: strategies,
		timeout:    DefaultTimeout,
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// Transcribe runs the fallback chain against the audio file at audioPath and
// returns the first non-empty transcript. The file is removed before
// Transcribe returns, on every exit path; callers hand over ownership of the
// temporary artifact by calling this method.
//
// Returns a *[Error] wrapping all per-strategy errors once the chain is
// exhausted.
func (p *Pipeline) Transcribe(ctx context.Context, audioPath, language string) (text string, err error) {
	defer func() {
		if rmErr := os.Remove(audioPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			slog.Warn("failed to remove temporary audio file",
				"path", audioPath, "error", rmErr)
		}
	}()

	invocation := uuid.NewString()
	log := slog.With("invocation", invocation, "audio", audioPath)

	p.metrics.ActivePipelines.Add(ctx, 1)
	defer p.metrics.ActivePipelines.Add(ctx, -1)

	var attemptErrs []error
	for _, s := range p.strategies {
		text, attemptErr := p.attempt(ctx, s, audioPath, language, log)
		if attemptErr == nil {
			return text, nil
		}
		attemptErrs = append(attemptErrs, fmt.Errorf("%s: %w", s.Name(), attemptErr))
		if ctxErr := ctx.Err(); ctxErr != nil {
			// The caller's context is gone; later strategies would only
			// fail the same way.
			attemptErrs = append(attemptErrs, ctxErr)
			break
		}
	}

	p.metrics.TranscribeExhausted.Add(ctx, 1)
	log.Error("transcription exhausted all strategies",
		"strategies", len(p.strategies), "error", errors.Join(attemptErrs...))
	return "", &Error{err: errors.Join(attemptErrs...)}
}

// attempt runs a single strategy under the per-attempt timeout, recording
// duration and outcome.
func (p *Pipeline) attempt(ctx context.Context, s Strategy, audioPath, language string, log *slog.Logger) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	text, err := s.Transcribe(attemptCtx, audioPath, language)
	elapsed := time.Since(start)

	if err == nil && strings.TrimSpace(text) == "" {
		err = errEmptyTranscript
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	p.metrics.TranscribeDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(
			attribute.String("strategy", s.Name()),
			attribute.String("status", status),
		),
	)

	if err != nil {
		polluted := IsPollutionError(err)
		p.metrics.RecordAttempt(ctx, s.Name(), status, polluted)
		if polluted {
			log.Warn("transcription attempt hit client-state pollution signature",
				"strategy", s.Name(), "duration_ms", elapsed.Milliseconds(), "error", err)
		} else {
			log.Warn("transcription attempt failed, trying next strategy",
				"strategy", s.Name(), "duration_ms", elapsed.Milliseconds(), "error", err)
		}
		return "", err
	}

	p.metrics.RecordAttempt(ctx, s.Name(), status, false)
	log.Info("transcription succeeded",
		"strategy", s.Name(), "duration_ms", elapsed.Milliseconds(), "chars", len(text))
	return strings.TrimSpace(text), nil
}

// DefaultChain assembles the production strategy order: subprocess first,
// then direct HTTP, then a fresh in-process client as the last resort.
// baseURL may be empty to target the default API endpoint.
func DefaultChain(apiKey, baseURL, model string) ([]Strategy, error) {
	sub, err := NewSubprocess(apiKey, baseURL, model)
	if err != nil {
		return nil, err
	}
	return []Strategy{
		sub,
		NewDirect(apiKey, baseURL, model),
		NewClient(apiKey, baseURL, model),
	}, nil
}
