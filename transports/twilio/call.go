// Package twilio connects the pipeline to Twilio programmable voice: the
// outbound-call bootstrap that points a phone call at the local runner,
// and the media-stream websocket session feeding audio frames in.
package twilio

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Credentials are the Twilio REST API credentials.
type Credentials struct {
	AccountSID string
	AuthToken  string
}

// RequireEnv reads a mandatory environment variable.
func RequireEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required environment variable: %s", name)
	}
	return value, nil
}

// ComputeStreamURL derives the wss media-stream URL the call should
// connect to. An explicit override wins; otherwise the tunnel host is
// cleaned of scheme and trailing slash and joined with the stream path.
// Without either, there is no stream URL.
func ComputeStreamURL(tunnelHost, streamPath, override string) string {
	if override != "" {
		return override
	}
	if tunnelHost == "" {
		return ""
	}
	cleaned := strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(tunnelHost, "https://"), "http://"), "/")
	path := streamPath
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "wss://" + cleaned + path
}

type twimlStream struct {
	URL string `xml:"url,attr"`
}

type twimlConnect struct {
	Stream twimlStream `xml:"Stream"`
}

type twimlResponse struct {
	XMLName xml.Name      `xml:"Response"`
	Connect *twimlConnect `xml:"Connect,omitempty"`
	Say     string        `xml:"Say,omitempty"`
}

// BuildTwiML renders the voice response document: a media-stream connect
// when a stream URL is set, a spoken fallback otherwise.
func BuildTwiML(streamURL, fallbackSay string) (string, error) {
	doc := twimlResponse{}
	if streamURL != "" {
		doc.Connect = &twimlConnect{Stream: twimlStream{URL: streamURL}}
	} else {
		doc.Say = fallbackSay
	}
	body, err := xml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("render twiml: %w", err)
	}
	return xml.Header + string(body), nil
}

const callsEndpoint = "https://api.twilio.com/2010-04-01/Accounts/%s/Calls.json"

// PlaceCall creates an outbound call through the Twilio REST API and
// returns the call SID. baseURL overrides the API endpoint for tests; an
// empty string selects the real API.
func PlaceCall(ctx context.Context, client *http.Client, creds Credentials, baseURL, from, to, twiml string) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	endpoint := fmt.Sprintf(callsEndpoint, creds.AccountSID)
	if baseURL != "" {
		endpoint = fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", strings.TrimSuffix(baseURL, "/"), creds.AccountSID)
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Twiml", twiml)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build call request: %w", err)
	}
	req.SetBasicAuth(creds.AccountSID, creds.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("place call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("place call: unexpected status %s", resp.Status)
	}

	var payload struct {
		SID string `json:"sid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode call response: %w", err)
	}
	if payload.SID == "" {
		return "", fmt.Errorf("call response missing sid")
	}
	return payload.SID, nil
}

// PortInUse reports whether something is already listening locally.
func PortInUse(port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// WaitForRunner polls the local runner's HTTP port until it accepts a
// request or the timeout elapses.
func WaitForRunner(ctx context.Context, client *http.Client, port int, timeout time.Duration) error {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Second}
	}
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://127.0.0.1:%d/", port), nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			return nil
		}
		lastErr = err
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("runner on port %d did not start: %w", port, lastErr)
}
