package transcribe_test

import (
	"bytes"
	"strings"
	"testing"

	"voxnote/internal/transcribe"
)

func TestRunWorker_UsageErrors(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	if code := transcribe.RunWorker([]string{"-model", "whisper-1"}, &stdout, &stderr); code != 2 {
		t.Errorf("missing audio path: exit code = %d, want 2", code)
	}
	if !strings.Contains(stderr.String(), "usage:") {
		t.Errorf("missing audio path must print usage, got %q", stderr.String())
	}

	stderr.Reset()
	if code := transcribe.RunWorker([]string{"-bogus", "memo.ogg"}, &stdout, &stderr); code != 2 {
		t.Errorf("unknown flag: exit code = %d, want 2", code)
	}

	if stdout.Len() != 0 {
		t.Errorf("usage errors must not write to stdout, got %q", stdout.String())
	}
}

func TestRunWorker_RequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	var stdout, stderr bytes.Buffer
	if code := transcribe.RunWorker([]string{"memo.ogg"}, &stdout, &stderr); code != 1 {
		t.Errorf("missing credentials: exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "OPENAI_API_KEY") {
		t.Errorf("error must name the missing variable, got %q", stderr.String())
	}
}
