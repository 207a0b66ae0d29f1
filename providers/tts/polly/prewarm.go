// Package polly pre-warms the Amazon Polly TTS path. A short synthesis
// before the first turn opens the TLS connection and signer state so the
// first real response does not pay the cold-start cost.
package polly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"

	appconfig "github.com/tiger/voicebot-latency/internal/config"
)

const ProviderID = "tts-amazon-polly"

// Outcome classifies a pre-warm attempt.
type Outcome string

const (
	OutcomeWarm      Outcome = "warm"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeThrottled Outcome = "throttled"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFailed    Outcome = "failed"
)

// Result reports one pre-warm round trip.
type Result struct {
	Outcome Outcome
	Latency time.Duration
	Reason  string
}

type synthClient interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// Prewarmer issues warm-up synthesis calls against Polly.
type Prewarmer struct {
	mu     sync.Mutex
	client synthClient
	cfg    appconfig.Prewarm
	clock  func() time.Time
}

// NewPrewarmer builds a pre-warmer from tuning config. The AWS client is
// resolved lazily on first use.
func NewPrewarmer(cfg appconfig.Prewarm) *Prewarmer {
	return NewPrewarmerWithClient(cfg, nil, nil)
}

// NewPrewarmerWithClient injects the Polly client and clock for tests.
func NewPrewarmerWithClient(cfg appconfig.Prewarm, client synthClient, clock func() time.Time) *Prewarmer {
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
	}
	if strings.TrimSpace(cfg.VoiceID) == "" {
		cfg.VoiceID = "Joanna"
	}
	if strings.TrimSpace(cfg.Engine) == "" {
		cfg.Engine = "neural"
	}
	if strings.TrimSpace(cfg.SampleText) == "" {
		cfg.SampleText = "Warming up the voice connection."
	}
	if cfg.TimeoutMS <= 0 {
		cfg.TimeoutMS = 15000
	}
	if clock == nil {
		clock = time.Now
	}
	return &Prewarmer{client: client, cfg: cfg, clock: clock}
}

// Prewarm performs one warm-up synthesis and discards the audio. It never
// returns an error for provider-side failures; those are normalized into
// the Result so a cold TTS path cannot break pipeline startup.
func (p *Prewarmer) Prewarm(ctx context.Context) (Result, error) {
	client, err := p.resolveClient(ctx)
	if err != nil {
		return Result{}, err
	}

	engine := pollytypes.EngineStandard
	if strings.EqualFold(p.cfg.Engine, "neural") {
		engine = pollytypes.EngineNeural
	}

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.TimeoutMS)*time.Millisecond)
	defer cancel()

	start := p.clock()
	output, err := client.SynthesizeSpeech(callCtx, &polly.SynthesizeSpeechInput{
		Engine:       engine,
		OutputFormat: pollytypes.OutputFormatMp3,
		Text:         &p.cfg.SampleText,
		TextType:     pollytypes.TextTypeText,
		VoiceId:      pollytypes.VoiceId(p.cfg.VoiceID),
	})
	latency := p.clock().Sub(start)

	if err != nil {
		result := normalizeError(err)
		result.Latency = latency
		return result, nil
	}
	if output == nil || output.AudioStream == nil {
		return Result{Outcome: OutcomeFailed, Latency: latency, Reason: "empty_audio"}, nil
	}
	defer output.AudioStream.Close()
	_, _ = io.Copy(io.Discard, output.AudioStream)
	return Result{Outcome: OutcomeWarm, Latency: latency}, nil
}

func normalizeError(err error) Result {
	if errors.Is(err, context.Canceled) {
		return Result{Outcome: OutcomeFailed, Reason: "cancelled"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Result{Outcome: OutcomeTimeout, Reason: "timeout"}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "TooManyRequestsException":
			return Result{Outcome: OutcomeThrottled, Reason: "throttled"}
		case "InvalidSsmlException", "TextLengthExceededException", "LexiconNotFoundException", "InvalidSampleRateException":
			return Result{Outcome: OutcomeRejected, Reason: "client_error"}
		default:
			return Result{Outcome: OutcomeFailed, Reason: "server_error"}
		}
	}
	return Result{Outcome: OutcomeFailed, Reason: "transport_error"}
}

func (p *Prewarmer) resolveClient(ctx context.Context) (synthClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(p.cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	p.client = polly.NewFromConfig(awsCfg)
	return p.client, nil
}
