// Package dwell measures how long frames wait in each stage's input queue
// and reduces those measurements into one latency summary per
// conversational turn. It attaches to an already-assembled pipeline
// without altering frame routing or stage processing logic.
package dwell

import (
	"time"

	"github.com/tiger/voicebot-latency/api/frames"
	"github.com/tiger/voicebot-latency/internal/observability/telemetry"
	"github.com/tiger/voicebot-latency/internal/pipeline"
)

const defaultObserverName = "latency-observer"

// MetricsRecorder receives dwell observations for metric export. A nil
// recorder disables export.
type MetricsRecorder interface {
	ObserveDwell(stage string, dwellMS float64)
	TurnClosed()
	SetOpenBuckets(n int)
}

// Options configures an Observer.
type Options struct {
	// Name is the observer's own stage name; Attach never instruments it.
	Name      string
	SessionID string
	// Clock overrides time.Now for deterministic tests.
	Clock   func() time.Time
	Emitter telemetry.Emitter
	Metrics MetricsRecorder
	// MaxOpenTurns caps concurrently open (un-closed) turn buckets.
	MaxOpenTurns int
	// OnSummary, if set, receives each turn summary after emission.
	OnSummary func(TurnSummary)
}

// Observer is the top-level controller: it owns the turn tracker and the
// dwell aggregator, installs the per-stage instrumentation, and acts as
// the pipeline's terminal stage.
type Observer struct {
	name      string
	sessionID string
	clock     func() time.Time
	emitter   telemetry.Emitter
	metrics   MetricsRecorder
	onSummary func(TurnSummary)

	tracker *TurnTracker
	reg     *registry
	agg     *Aggregator
}

// NewObserver constructs an observer with idle turn state.
func NewObserver(opts Options) *Observer {
	if opts.Name == "" {
		opts.Name = defaultObserverName
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Emitter == nil {
		opts.Emitter = telemetry.NopEmitter{}
	}
	o := &Observer{
		name:      opts.Name,
		sessionID: opts.SessionID,
		clock:     opts.Clock,
		emitter:   opts.Emitter,
		metrics:   opts.Metrics,
		onSummary: opts.OnSummary,
		tracker:   NewTurnTracker(),
		reg:       newRegistry(),
	}
	o.agg = NewAggregator(o.reg, opts.MaxOpenTurns, o.onEvicted)
	return o
}

// Name returns the observer's own stage name.
func (o *Observer) Name() string { return o.name }

// Push lets the pipeline invoke the observer like any other stage.
func (o *Observer) Push(frame *frames.Frame) { o.OnFrame(frame) }

// Attach installs instrumentation on every stage of an assembled pipeline
// exactly once, skipping the observer's own stage. Calling it again, or on
// a pipeline sharing stages with a previous call, is a no-op per stage.
func (o *Observer) Attach(p *pipeline.Pipeline) {
	for _, stage := range p.Stages() {
		if stage == pipeline.Stage(o) {
			continue
		}
		o.install(stage)
	}
}

// InstrumentedStages reports instrumented stage names in installation order.
func (o *Observer) InstrumentedStages() []string {
	return o.reg.names()
}

// CurrentTurn reports the open turn id, if a turn is open.
func (o *Observer) CurrentTurn() (uint64, bool) {
	return o.tracker.Current()
}

// OnFrame branches on frame type: transcript-arrival opens a turn,
// response-end closes one and emits its summary. Every other frame type
// passes through the observer untouched.
func (o *Observer) OnFrame(frame *frames.Frame) {
	switch frame.Type {
	case frames.TypeTranscriptArrived:
		o.openTurn(frame)
	case frames.TypeResponseEnd:
		o.closeTurn(frame)
	}
}

func (o *Observer) openTurn(frame *frames.Frame) {
	id := o.tracker.Open(o.clock(), frame.Meta.Transcript, frame.Meta.STTDuration)
	o.agg.Open(id)
	if o.metrics != nil {
		o.metrics.SetOpenBuckets(o.agg.OpenBuckets())
	}
}

func (o *Observer) closeTurn(frame *frames.Frame) {
	turn, ok := o.tracker.Close()
	if !ok {
		// duplicate or unmatched response-end
		return
	}

	summary := TurnSummary{
		TurnID:           turn.ID,
		Transcript:       turn.Transcript,
		STTDuration:      turn.STTDuration,
		DialogueDuration: frame.Meta.DialogueDuration,
		TTSDuration:      frame.Meta.TTSDuration,
		Stages:           o.agg.Summarize(turn.ID),
	}
	summary.Total = summary.STTDuration + summary.DialogueDuration + summary.TTSDuration

	o.emitter.EmitLog("turn_summary", telemetry.SeverityInfo, summary.String(), nil, o.correlation(turn.ID))
	if o.metrics != nil {
		o.metrics.TurnClosed()
		o.metrics.SetOpenBuckets(o.agg.OpenBuckets())
	}
	if o.onSummary != nil {
		o.onSummary(summary)
	}
}

func (o *Observer) onEvicted(turnID uint64) {
	o.emitter.EmitLog("turn_bucket_evicted", telemetry.SeverityWarning,
		"evicted dwell bucket for turn that never saw a response end", nil, o.correlation(turnID))
}

func (o *Observer) correlation(turnID uint64) telemetry.Correlation {
	return telemetry.Correlation{
		SessionID:   o.sessionID,
		TurnID:      turnID,
		EmittedBy:   o.name,
		WallClockMS: o.clock().UnixMilli(),
	}
}
