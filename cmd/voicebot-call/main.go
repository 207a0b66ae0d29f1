// Command voicebot-call places an outbound Twilio call that connects
// the callee to the local runner's media-stream endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/tiger/voicebot-latency/transports/twilio"
)

const defaultFallbackSay = "The voice agent is not reachable right now. Goodbye."

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "voicebot-call: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("voicebot-call", flag.ContinueOnError)
	flags.SetOutput(stdout)
	to := flags.String("to", "", "callee number, overrides TEST_TO_NUMBER")
	port := flags.Int("port", 8765, "local runner port to probe before dialing")
	dryRun := flags.Bool("dry-run", true, "render the call plan without dialing")
	baseURL := flags.String("api-base-url", "", "Twilio API base URL override")
	wait := flags.Duration("wait", 15*time.Second, "how long to wait for the local runner")
	if err := flags.Parse(args); err != nil {
		return err
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	accountSID, err := twilio.RequireEnv("TWILIO_ACCOUNT_SID")
	if err != nil {
		return err
	}
	authToken, err := twilio.RequireEnv("TWILIO_AUTH_TOKEN")
	if err != nil {
		return err
	}
	from, err := twilio.RequireEnv("TWILIO_PHONE_NUMBER")
	if err != nil {
		return err
	}
	callee := *to
	if callee == "" {
		callee, err = twilio.RequireEnv("TEST_TO_NUMBER")
		if err != nil {
			return err
		}
	}

	streamURL := twilio.ComputeStreamURL(
		os.Getenv("TWILIO_TUNNEL_HOST"),
		streamPath(),
		os.Getenv("TWILIO_STREAM_URL"),
	)
	if streamURL == "" {
		logger.Warn("no media-stream url configured, call will use the spoken fallback")
	}

	twiml, err := twilio.BuildTwiML(streamURL, defaultFallbackSay)
	if err != nil {
		return err
	}

	if *dryRun {
		fmt.Fprintf(stdout, "dry run: would call %s from %s\n", callee, from)
		if streamURL != "" {
			fmt.Fprintf(stdout, "stream url: %s\n", streamURL)
		}
		fmt.Fprintln(stdout, twiml)
		return nil
	}

	ctx := context.Background()
	if streamURL != "" && !twilio.PortInUse(*port) {
		logger.Info("waiting for local runner", zap.Int("port", *port))
		if err := twilio.WaitForRunner(ctx, nil, *port, *wait); err != nil {
			return err
		}
	}

	creds := twilio.Credentials{AccountSID: accountSID, AuthToken: authToken}
	sid, err := twilio.PlaceCall(ctx, http.DefaultClient, creds, *baseURL, from, callee, twiml)
	if err != nil {
		return err
	}
	logger.Info("call placed", zap.String("sid", sid), zap.String("to", callee))
	fmt.Fprintf(stdout, "call placed: %s\n", sid)
	return nil
}

func streamPath() string {
	if path := os.Getenv("TWILIO_STREAM_PATH"); path != "" {
		return path
	}
	return "/ws"
}
