package twilio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestComputeStreamURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		tunnelHost string
		streamPath string
		override   string
		want       string
	}{
		{name: "override wins", tunnelHost: "abc.ngrok.io", streamPath: "/ws", override: "wss://fixed.example/ws", want: "wss://fixed.example/ws"},
		{name: "https host cleaned", tunnelHost: "https://abc.ngrok.io/", streamPath: "/ws", want: "wss://abc.ngrok.io/ws"},
		{name: "path normalized", tunnelHost: "abc.ngrok.io", streamPath: "ws", want: "wss://abc.ngrok.io/ws"},
		{name: "no tunnel no url", streamPath: "/ws", want: ""},
	}
	for _, tc := range tests {
		if got := ComputeStreamURL(tc.tunnelHost, tc.streamPath, tc.override); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestBuildTwiML(t *testing.T) {
	t.Parallel()

	withStream, err := BuildTwiML("wss://abc.ngrok.io/ws", "")
	if err != nil {
		t.Fatalf("build twiml failed: %v", err)
	}
	if !strings.Contains(withStream, `<Connect><Stream url="wss://abc.ngrok.io/ws"></Stream></Connect>`) {
		t.Fatalf("unexpected stream twiml: %s", withStream)
	}

	fallback, err := BuildTwiML("", "Hello from the voice assistant.")
	if err != nil {
		t.Fatalf("build twiml failed: %v", err)
	}
	if !strings.Contains(fallback, "<Say>Hello from the voice assistant.</Say>") || strings.Contains(fallback, "<Connect>") {
		t.Fatalf("unexpected fallback twiml: %s", fallback)
	}
}

func TestPlaceCall(t *testing.T) {
	t.Parallel()

	var gotPath, gotTo, gotAuthUser string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotTo = r.PostFormValue("To")
		gotAuthUser, _, _ = r.BasicAuth()
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid": "CA123"}`))
	}))
	defer server.Close()

	creds := Credentials{AccountSID: "AC42", AuthToken: "secret"}
	sid, err := PlaceCall(context.Background(), server.Client(), creds, server.URL, "+15550001111", "+15550002222", "<Response/>")
	if err != nil {
		t.Fatalf("place call failed: %v", err)
	}
	if sid != "CA123" {
		t.Fatalf("expected sid CA123, got %s", sid)
	}
	if gotPath != "/2010-04-01/Accounts/AC42/Calls.json" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if gotTo != "+15550002222" || gotAuthUser != "AC42" {
		t.Fatalf("unexpected form/auth: to=%s user=%s", gotTo, gotAuthUser)
	}
}

func TestPlaceCallRejectsErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := PlaceCall(context.Background(), server.Client(), Credentials{AccountSID: "AC0", AuthToken: "bad"}, server.URL, "+1", "+2", "<Response/>")
	if err == nil || !strings.Contains(err.Error(), "unexpected status") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestRequireEnv(t *testing.T) {
	t.Setenv("VOICEBOT_TEST_REQUIRED", "present")
	value, err := RequireEnv("VOICEBOT_TEST_REQUIRED")
	if err != nil || value != "present" {
		t.Fatalf("expected present, got %q err=%v", value, err)
	}
	if _, err := RequireEnv("VOICEBOT_TEST_MISSING"); err == nil {
		t.Fatalf("expected missing env to error")
	}
}
