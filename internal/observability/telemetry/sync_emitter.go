package telemetry

import (
	"context"
	"strings"
)

// SyncEmitter exports each emission to the sink before returning. Used where
// deterministic ordering matters more than throughput (tests, local runner).
type SyncEmitter struct {
	sink Sink
}

// NewSyncEmitter wraps a sink in a synchronous emitter.
func NewSyncEmitter(sink Sink) *SyncEmitter {
	if sink == nil {
		sink = discardSink{}
	}
	return &SyncEmitter{sink: sink}
}

// EmitMetric exports a metric sample synchronously.
func (e *SyncEmitter) EmitMetric(name string, value float64, unit string, attributes map[string]string, correlation Correlation) {
	_ = e.sink.Export(context.Background(), Event{
		Kind:        EventKindMetric,
		TimestampMS: eventTimestampMS(correlation),
		Correlation: correlation,
		Metric: &MetricEvent{
			Name:       strings.TrimSpace(name),
			Value:      value,
			Unit:       strings.TrimSpace(unit),
			Attributes: cloneAttributes(attributes),
		},
	})
}

// EmitLog exports a log event synchronously.
func (e *SyncEmitter) EmitLog(name, severity, message string, attributes map[string]string, correlation Correlation) {
	_ = e.sink.Export(context.Background(), Event{
		Kind:        EventKindLog,
		TimestampMS: eventTimestampMS(correlation),
		Correlation: correlation,
		Log: &LogEvent{
			Name:       strings.TrimSpace(name),
			Severity:   strings.TrimSpace(severity),
			Message:    message,
			Attributes: cloneAttributes(attributes),
		},
	})
}
