package dwell

import (
	"time"

	"github.com/tiger/voicebot-latency/api/frames"
	"github.com/tiger/voicebot-latency/internal/observability/telemetry"
	"github.com/tiger/voicebot-latency/internal/pipeline"
)

// install wraps one stage's two interception points. A stage that does not
// expose them is left uninstrumented with a warning; instrumentation must
// never break the pipeline it observes. Re-installing on an already-wrapped
// stage is a no-op.
func (o *Observer) install(stage pipeline.Stage) {
	name := stage.Name()
	target, ok := stage.(pipeline.Instrumentable)
	if !ok {
		o.emitter.EmitLog("stage_not_instrumentable", telemetry.SeverityWarning,
			"stage lacks enqueue/pre-process interception points, leaving it unobserved",
			map[string]string{"stage": name}, o.correlation(0))
		return
	}
	if !o.reg.add(name) {
		return
	}

	target.SwapEnqueue(func(next pipeline.EnqueueFunc) pipeline.EnqueueFunc {
		return func(frame *frames.Frame) {
			if _, stamped := frame.Meta.TurnID(); !stamped {
				if id, open := o.tracker.Current(); open {
					frame.Meta.SetTurnID(id)
				}
			}
			frame.Meta.StampEnqueue(name, o.clock())
			next(frame)
		}
	})

	target.SetPreProcessHook(func(frame *frames.Frame) {
		enqueuedAt, ok := frame.Meta.EnqueueTime(name)
		if !ok {
			// frame bypassed the enqueue wrap (injected mid-pipeline)
			return
		}
		turnID, ok := frame.Meta.TurnID()
		if !ok {
			return
		}
		dwellMS := float64(o.clock().Sub(enqueuedAt)) / float64(time.Millisecond)
		o.agg.Append(turnID, name, dwellMS)
		if o.metrics != nil {
			o.metrics.ObserveDwell(name, dwellMS)
		}
	})
}
