package twilio

import "fmt"

// OverflowPolicy controls which chunk a full audio buffer discards.
type OverflowPolicy string

const (
	DropOldestChunk OverflowPolicy = "drop_oldest"
	DropNewestChunk OverflowPolicy = "drop_newest"
)

// AudioBufferConfig bounds the ingress audio buffer.
type AudioBufferConfig struct {
	MaxChunks int
	Overflow  OverflowPolicy
}

// AudioChunk is one decoded media payload with its stream sequence.
type AudioChunk struct {
	Seq   int64
	Audio []byte
}

// AudioBuffer is a bounded FIFO holding decoded media chunks between
// arrival on the websocket and handoff to the pipeline. Twilio can
// deliver media before the start event; the buffer absorbs that window.
type AudioBuffer struct {
	cfg     AudioBufferConfig
	chunks  []AudioChunk
	dropped int
}

// NewAudioBuffer creates a bounded audio buffer.
func NewAudioBuffer(cfg AudioBufferConfig) (*AudioBuffer, error) {
	if cfg.MaxChunks < 1 {
		return nil, fmt.Errorf("max_chunks must be >= 1")
	}
	switch cfg.Overflow {
	case "", DropOldestChunk, DropNewestChunk:
	default:
		return nil, fmt.Errorf("unsupported overflow policy %q", cfg.Overflow)
	}
	if cfg.Overflow == "" {
		cfg.Overflow = DropOldestChunk
	}
	return &AudioBuffer{cfg: cfg, chunks: make([]AudioChunk, 0, cfg.MaxChunks)}, nil
}

// Push queues one chunk and reports whether it was accepted. A full
// buffer either discards the incoming chunk or evicts the oldest one.
func (b *AudioBuffer) Push(chunk AudioChunk) bool {
	if len(b.chunks) >= b.cfg.MaxChunks {
		b.dropped++
		if b.cfg.Overflow == DropNewestChunk {
			return false
		}
		copy(b.chunks[0:], b.chunks[1:])
		b.chunks = b.chunks[:len(b.chunks)-1]
	}
	b.chunks = append(b.chunks, chunk)
	return true
}

// Pop returns the oldest buffered chunk.
func (b *AudioBuffer) Pop() (AudioChunk, bool) {
	if len(b.chunks) == 0 {
		return AudioChunk{}, false
	}
	chunk := b.chunks[0]
	copy(b.chunks[0:], b.chunks[1:])
	b.chunks = b.chunks[:len(b.chunks)-1]
	return chunk, true
}

// Len returns the current buffer depth.
func (b *AudioBuffer) Len() int {
	return len(b.chunks)
}

// DroppedCount returns how many chunks overflow has discarded.
func (b *AudioBuffer) DroppedCount() int {
	return b.dropped
}
