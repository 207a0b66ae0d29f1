package twilio

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tiger/voicebot-latency/api/frames"
)

// FrameSink accepts ingress frames, typically the pipeline's first stage.
type FrameSink interface {
	Push(*frames.Frame)
}

type mediaEnvelope struct {
	Event          string        `json:"event"`
	SequenceNumber string        `json:"sequenceNumber,omitempty"`
	Start          *startPayload `json:"start,omitempty"`
	Media          *mediaPayload `json:"media,omitempty"`
}

type startPayload struct {
	StreamSID string `json:"streamSid"`
	CallSID   string `json:"callSid"`
}

type mediaPayload struct {
	Payload string `json:"payload"`
}

// MediaSession consumes one Twilio media-stream websocket and converts
// its messages into audio frames.
type MediaSession struct {
	id   string
	conn *websocket.Conn
	sink FrameSink
	log  *zap.Logger
	buf  *AudioBuffer

	streamSID string
	callSID   string
	started   bool
}

// Chunks arriving ahead of the start event are held for roughly a
// second of 20ms media before the oldest are dropped.
const preStartBufferChunks = 64

// NewMediaSession wraps an accepted websocket connection.
func NewMediaSession(conn *websocket.Conn, sink FrameSink, logger *zap.Logger) *MediaSession {
	if logger == nil {
		logger = zap.NewNop()
	}
	buf, _ := NewAudioBuffer(AudioBufferConfig{MaxChunks: preStartBufferChunks})
	return &MediaSession{
		id:   uuid.NewString(),
		conn: conn,
		sink: sink,
		log:  logger,
		buf:  buf,
	}
}

// ID returns the session identifier.
func (s *MediaSession) ID() string { return s.id }

// Run reads media-stream messages until stop, disconnect, or ctx
// cancellation. Media payloads become audio-chunk frames pushed into the
// sink; unknown events are ignored.
func (s *MediaSession) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read media stream: %w", err)
		}

		var envelope mediaEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			s.log.Warn("malformed media-stream message", zap.String("session", s.id), zap.Error(err))
			continue
		}

		switch envelope.Event {
		case "start":
			if envelope.Start != nil {
				s.streamSID = envelope.Start.StreamSID
				s.callSID = envelope.Start.CallSID
			}
			s.started = true
			s.log.Info("media stream started",
				zap.String("session", s.id),
				zap.String("stream_sid", s.streamSID),
				zap.String("call_sid", s.callSID))
			s.flushBuffered()
		case "media":
			if envelope.Media == nil {
				continue
			}
			audio, err := base64.StdEncoding.DecodeString(envelope.Media.Payload)
			if err != nil {
				s.log.Warn("undecodable media payload", zap.String("session", s.id), zap.Error(err))
				continue
			}
			chunk := AudioChunk{Audio: audio}
			if seq, err := strconv.ParseInt(envelope.SequenceNumber, 10, 64); err == nil {
				chunk.Seq = seq
			}
			if !s.started {
				s.buf.Push(chunk)
				continue
			}
			s.emitAudio(chunk)
		case "stop":
			s.log.Info("media stream stopped", zap.String("session", s.id))
			return nil
		}
	}
}

func (s *MediaSession) emitAudio(chunk AudioChunk) {
	frame := frames.New(frames.TypeAudioChunk)
	frame.Payload = chunk.Audio
	s.sink.Push(frame)
}

func (s *MediaSession) flushBuffered() {
	flushed := 0
	for {
		chunk, ok := s.buf.Pop()
		if !ok {
			break
		}
		s.emitAudio(chunk)
		flushed++
	}
	if flushed > 0 || s.buf.DroppedCount() > 0 {
		s.log.Info("flushed pre-start audio",
			zap.String("session", s.id),
			zap.Int("chunks", flushed),
			zap.Int("dropped", s.buf.DroppedCount()))
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Handler upgrades incoming media-stream connections and runs a session
// per connection.
func Handler(sink FrameSink, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()
		session := NewMediaSession(conn, sink, logger)
		if err := session.Run(r.Context()); err != nil && r.Context().Err() == nil {
			logger.Warn("media session ended with error", zap.String("session", session.ID()), zap.Error(err))
		}
	})
}
