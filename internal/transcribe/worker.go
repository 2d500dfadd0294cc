package transcribe

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
)

// RunWorker is the entry point for the hidden transcribe-worker subcommand
// used by the [Subprocess] strategy. It constructs a fresh client, performs
// exactly one transcription request with minimal parameters, and writes the
// plain-text transcript to stdout. All diagnostics go to stderr.
//
// args are the arguments after the subcommand name. Credentials come from the
// OPENAI_API_KEY and OPENAI_BASE_URL environment variables set by the parent.
// Returns the process exit code.
func RunWorker(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(WorkerCommand, flag.ContinueOnError)
	fs.SetOutput(stderr)
	model := fs.String("model", "whisper-1", "transcription model identifier")
	language := fs.String("language", "", "optional BCP-47 language hint")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(stderr, "usage: %s [-model m] [-language l] <audio-file>\n", WorkerCommand)
		return 2
	}
	audioPath := fs.Arg(0)

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(stderr, "transcribe-worker: OPENAI_API_KEY is not set")
		return 1
	}

	// The parent enforces its own deadline by killing this process; the
	// local timeout is a backstop for an orphaned worker.
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(base))
	}
	client := oai.NewClient(reqOpts...)

	f, err := os.Open(audioPath)
	if err != nil {
		fmt.Fprintf(stderr, "transcribe-worker: open audio: %v\n", err)
		return 1
	}
	defer f.Close()

	params := oai.AudioTranscriptionNewParams{
		File:  f,
		Model: oai.AudioModel(*model),
	}
	if *language != "" {
		params.Language = param.NewOpt(*language)
	}

	resp, err := client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		fmt.Fprintf(stderr, "transcribe-worker: transcription request: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, strings.TrimSpace(resp.Text))
	return 0
}
