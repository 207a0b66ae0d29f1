// voicebot-runner drives a local single-process pipeline with scripted
// turns and prints the per-turn latency summaries the dwell observer
// emits. It is the offline smoke path for the instrumentation engine.
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

	"github.com/tiger/voicebot-latency/api/frames"
	"github.com/tiger/voicebot-latency/internal/config"
	"github.com/tiger/voicebot-latency/internal/observability/dwell"
	"github.com/tiger/voicebot-latency/internal/observability/metrics"
	"github.com/tiger/voicebot-latency/internal/observability/telemetry"
	"github.com/tiger/voicebot-latency/internal/pipeline"
	"github.com/tiger/voicebot-latency/internal/tuning"
	"github.com/tiger/voicebot-latency/providers/tts/polly"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "voicebot-runner: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("voicebot-runner", flag.ContinueOnError)
	flags.SetOutput(stdout)
	tuningPath := flags.String("tuning", "", "path to a tuning JSON file (defaults apply when empty)")
	turns := flags.Int("turns", 2, "number of scripted turns to replay")
	prewarm := flags.Bool("prewarm", false, "pre-warm the Polly TTS connection before the first turn")
	prune := flags.Bool("prune", false, "run the tiktoken context pruner on the scripted history")
	metricsAddr := flags.String("metrics-addr", "", "serve Prometheus metrics on this address (empty disables)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *turns < 1 {
		return fmt.Errorf("turns must be >= 1")
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*tuningPath)
	if err != nil {
		return err
	}
	vad := tuning.VADFromConfig(cfg.VAD)
	if err := vad.Validate(); err != nil {
		return fmt.Errorf("vad tuning: %w", err)
	}
	logger.Info("tuning loaded",
		zap.Float64("vad_stop_secs", vad.StopSecs),
		zap.Int("prune_max_tokens", cfg.Prune.MaxTokens),
		zap.Int("observer_max_open_turns", cfg.Observer.MaxOpenTurns))

	ctx := context.Background()

	ttsDuration := 95 * time.Millisecond
	if *prewarm && cfg.Prewarm.Enabled {
		result, err := polly.NewPrewarmer(cfg.Prewarm).Prewarm(ctx)
		if err != nil {
			return fmt.Errorf("tts prewarm: %w", err)
		}
		logger.Info("tts prewarm finished",
			zap.String("outcome", string(result.Outcome)),
			zap.Duration("latency", result.Latency))
		if result.Outcome == polly.OutcomeWarm {
			ttsDuration = result.Latency
		}
	}

	if *prune {
		pruner := tuning.NewContextPruner(cfg.Prune)
		kept, dropped, err := pruner.Prune(scriptedHistory())
		if err != nil {
			return fmt.Errorf("context prune: %w", err)
		}
		logger.Info("context pruned", zap.Int("kept", len(kept)), zap.Int("dropped", dropped))
	}

	recorder := metrics.NewRecorder()
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", recorder.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	sink := telemetry.NewMemorySink()
	telemetryPipeline := telemetry.NewPipeline(sink, telemetry.Config{QueueCapacity: cfg.Observer.QueueCapacity})
	defer func() { _ = telemetryPipeline.Close() }()

	summaries := make(chan dwell.TurnSummary, *turns)
	observer := dwell.NewObserver(dwell.Options{
		SessionID:    "local-runner",
		Emitter:      telemetryPipeline,
		Metrics:      recorder,
		MaxOpenTurns: cfg.Observer.MaxOpenTurns,
		OnSummary:    func(s dwell.TurnSummary) { summaries <- s },
	})

	stt, err := pipeline.NewQueuedStage("stt", cfg.Observer.QueueCapacity, nil)
	if err != nil {
		return err
	}
	llm, err := pipeline.NewQueuedStage("llm", cfg.Observer.QueueCapacity, nil)
	if err != nil {
		return err
	}
	tts, err := pipeline.NewQueuedStage("tts", cfg.Observer.QueueCapacity, nil)
	if err != nil {
		return err
	}

	p, err := pipeline.New(stt, llm, tts, observer)
	if err != nil {
		return err
	}
	observer.Attach(p)
	if err := p.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = p.Stop() }()

	for i := 1; i <= *turns; i++ {
		if err := replayTurn(ctx, p, observer, i, vad, ttsDuration); err != nil {
			return err
		}
		select {
		case summary := <-summaries:
			fmt.Fprintln(stdout, summary.String())
		case <-time.After(5 * time.Second):
			return fmt.Errorf("turn %d produced no summary", i)
		}
	}
	return nil
}

// replayTurn pushes one scripted conversational exchange through the
// pipeline: transcript, a burst of model deltas, then the response end
// carrying the collaborator durations.
func replayTurn(ctx context.Context, p *pipeline.Pipeline, observer *dwell.Observer, n int, vad tuning.VADParams, ttsDuration time.Duration) error {
	transcript := frames.New(frames.TypeTranscriptArrived)
	transcript.Meta.Transcript = fmt.Sprintf("scripted utterance %d", n)
	transcript.Meta.STTDuration = vad.EndpointDelay() + 120*time.Millisecond
	p.Push(transcript)

	if err := waitForOpenTurn(observer); err != nil {
		return fmt.Errorf("turn %d: %w", n, err)
	}

	for i := 0; i < 3; i++ {
		p.Push(frames.New(frames.TypeLLMDelta))
	}

	report := tuning.DispatchParallel(ctx, time.Now, []tuning.ToolCall{
		{Name: "lookup_order", Invoke: fakeTool(10 * time.Millisecond)},
		{Name: "check_inventory", Invoke: fakeTool(10 * time.Millisecond)},
	})

	end := frames.New(frames.TypeResponseEnd)
	end.Meta.DialogueDuration = report.WallTime + 300*time.Millisecond
	end.Meta.TTSDuration = ttsDuration
	p.Push(end)
	return nil
}

func waitForOpenTurn(observer *dwell.Observer) error {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, open := observer.CurrentTurn(); open {
			return nil
		}
		time.Sleep(time.Millisecond)
	}
	return fmt.Errorf("transcript frame never reached the observer")
}

func fakeTool(d time.Duration) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		time.Sleep(d)
		return "ok", nil
	}
}

func scriptedHistory() []tuning.Message {
	return []tuning.Message{
		{Role: "system", Content: "You are a concise voice assistant for an e-commerce store."},
		{Role: "user", Content: "Where is my order?"},
		{Role: "assistant", Content: "Order 1042 shipped yesterday and arrives Thursday."},
		{Role: "user", Content: "Can you also check if the blue mugs are back in stock?"},
	}
}
