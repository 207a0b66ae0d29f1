package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func setCallEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TWILIO_ACCOUNT_SID", "AC00000000000000000000000000000000")
	t.Setenv("TWILIO_AUTH_TOKEN", "secret-token")
	t.Setenv("TWILIO_PHONE_NUMBER", "+15550000001")
	t.Setenv("TEST_TO_NUMBER", "+15550000002")
	t.Setenv("TWILIO_TUNNEL_HOST", "https://example.ngrok.app/")
	t.Setenv("TWILIO_STREAM_PATH", "")
	t.Setenv("TWILIO_STREAM_URL", "")
}

func TestDryRunRendersCallPlan(t *testing.T) {
	setCallEnv(t)

	var stdout bytes.Buffer
	if err := run([]string{"-dry-run=true"}, &stdout); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "would call +15550000002 from +15550000001") {
		t.Fatalf("expected call plan, got %q", output)
	}
	if !strings.Contains(output, "stream url: wss://example.ngrok.app/ws") {
		t.Fatalf("expected derived stream url, got %q", output)
	}
	if !strings.Contains(output, `<Connect><Stream url="wss://example.ngrok.app/ws"></Stream></Connect>`) {
		t.Fatalf("expected connect twiml, got %q", output)
	}
}

func TestDryRunWithoutStreamFallsBackToSay(t *testing.T) {
	setCallEnv(t)
	t.Setenv("TWILIO_TUNNEL_HOST", "")

	var stdout bytes.Buffer
	if err := run([]string{"-dry-run=true"}, &stdout); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout.String(), "<Say>") {
		t.Fatalf("expected spoken fallback twiml, got %q", stdout.String())
	}
}

func TestRunRequiresCredentials(t *testing.T) {
	setCallEnv(t)
	t.Setenv("TWILIO_AUTH_TOKEN", "")

	err := run([]string{"-dry-run=true"}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "TWILIO_AUTH_TOKEN") {
		t.Fatalf("expected missing auth token error, got %v", err)
	}
}

func TestPlacesCallAgainstAPIOverride(t *testing.T) {
	setCallEnv(t)
	// A stream URL override skips the local runner probe path only when
	// the runner is reachable, so fall back to the spoken response here.
	t.Setenv("TWILIO_TUNNEL_HOST", "")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"sid": "CA123"})
	}))
	defer server.Close()

	var stdout bytes.Buffer
	err := run([]string{"-dry-run=false", "-api-base-url", server.URL}, &stdout)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout.String(), "call placed: CA123") {
		t.Fatalf("expected call sid in output, got %q", stdout.String())
	}
}
