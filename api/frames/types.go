package frames

import (
	"fmt"
	"time"
)

// Type discriminates frame payload kinds flowing through the pipeline.
type Type string

const (
	TypeGeneric           Type = "generic"
	TypeAudioChunk        Type = "audio_chunk"
	TypeTranscriptArrived Type = "transcript_arrived"
	TypeLLMDelta          Type = "llm_delta"
	TypeSynthesizedSpeech Type = "synthesized_speech"
	TypeResponseEnd       Type = "response_end"
)

// Validate enforces supported frame types.
func (t Type) Validate() error {
	switch t {
	case TypeGeneric, TypeAudioChunk, TypeTranscriptArrived, TypeLLMDelta, TypeSynthesizedSpeech, TypeResponseEnd:
		return nil
	default:
		return fmt.Errorf("unsupported frame type: %q", t)
	}
}

// Metadata is the reserved bookkeeping slot every frame carries. The
// pipeline copies it forward untouched; instrumentation and the latency
// collaborators are its only writers.
type Metadata struct {
	enqueuedAt map[string]time.Time
	turnID     *uint64

	Transcript       string
	STTDuration      time.Duration
	DialogueDuration time.Duration
	TTSDuration      time.Duration

	// Attrs carries collaborator-specific string annotations
	// (prewarm outcome, prune counts) that the engine never reads.
	Attrs map[string]string
}

// Frame is one unit of work traveling through the pipeline.
type Frame struct {
	Type    Type
	Payload []byte
	Meta    Metadata
}

// New returns a frame of the given type with empty metadata.
func New(t Type) *Frame {
	return &Frame{Type: t}
}

// StampEnqueue records the queue-arrival time for a stage. The first stamp
// for a stage wins; re-stamping is a no-op so a frame re-observed by the
// same stage keeps its original arrival time.
func (m *Metadata) StampEnqueue(stage string, at time.Time) bool {
	if m.enqueuedAt == nil {
		m.enqueuedAt = make(map[string]time.Time, 4)
	}
	if _, ok := m.enqueuedAt[stage]; ok {
		return false
	}
	m.enqueuedAt[stage] = at
	return true
}

// EnqueueTime returns the recorded queue-arrival time for a stage.
func (m *Metadata) EnqueueTime(stage string) (time.Time, bool) {
	at, ok := m.enqueuedAt[stage]
	return at, ok
}

// SetTurnID captures the turn identifier by value. The first capture wins:
// a frame stamped during turn N keeps N even after a later turn opens.
func (m *Metadata) SetTurnID(id uint64) bool {
	if m.turnID != nil {
		return false
	}
	m.turnID = &id
	return true
}

// TurnID reports the captured turn identifier, if any.
func (m *Metadata) TurnID() (uint64, bool) {
	if m.turnID == nil {
		return 0, false
	}
	return *m.turnID, true
}

// SetAttr records a collaborator annotation.
func (m *Metadata) SetAttr(key, value string) {
	if m.Attrs == nil {
		m.Attrs = make(map[string]string, 4)
	}
	m.Attrs[key] = value
}
