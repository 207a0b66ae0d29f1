package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunReplaysScriptedTurns(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer
	if err := run([]string{"-turns=2"}, &stdout); err != nil {
		t.Fatalf("unexpected runner error: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "turn 1") || !strings.Contains(output, "turn 2") {
		t.Fatalf("expected two turn summaries, got %q", output)
	}
	if !strings.Contains(output, "queue_dwell[") || !strings.Contains(output, "stt:") {
		t.Fatalf("expected stage dwell list in summaries, got %q", output)
	}
	if !strings.Contains(output, `"scripted utterance 1"`) {
		t.Fatalf("expected transcript in summary line, got %q", output)
	}
}

func TestRunHonorsTuningFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tuning.json")
	if err := os.WriteFile(path, []byte(`{"vad": {"stop_secs": 0.2}}`), 0o600); err != nil {
		t.Fatalf("write tuning file: %v", err)
	}

	var stdout bytes.Buffer
	if err := run([]string{"-turns=1", "-tuning", path}, &stdout); err != nil {
		t.Fatalf("unexpected runner error: %v", err)
	}
	// 200ms endpoint delay + 120ms transcription
	if !strings.Contains(stdout.String(), "stt=320ms") {
		t.Fatalf("expected tuned stt duration in summary, got %q", stdout.String())
	}
}

func TestRunRejectsInvalidFlags(t *testing.T) {
	t.Parallel()

	if err := run([]string{"-turns=0"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected zero turns to be rejected")
	}
	if err := run([]string{"-tuning", "does-not-exist.json"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected missing tuning file to be rejected")
	}
}
