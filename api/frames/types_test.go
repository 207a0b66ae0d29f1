package frames

import (
	"testing"
	"time"
)

func TestTypeValidate(t *testing.T) {
	t.Parallel()

	for _, typ := range []Type{TypeGeneric, TypeAudioChunk, TypeTranscriptArrived, TypeLLMDelta, TypeSynthesizedSpeech, TypeResponseEnd} {
		if err := typ.Validate(); err != nil {
			t.Fatalf("expected %q valid, got %v", typ, err)
		}
	}
	if err := Type("transcript").Validate(); err == nil {
		t.Fatalf("expected unknown frame type to fail validation")
	}
}

func TestStampEnqueueFirstWriteWins(t *testing.T) {
	t.Parallel()

	frame := New(TypeAudioChunk)
	first := time.Unix(100, 0)
	second := time.Unix(200, 0)

	if !frame.Meta.StampEnqueue("stt", first) {
		t.Fatalf("expected first stamp to succeed")
	}
	if frame.Meta.StampEnqueue("stt", second) {
		t.Fatalf("expected re-stamp of same stage to be a no-op")
	}
	got, ok := frame.Meta.EnqueueTime("stt")
	if !ok || !got.Equal(first) {
		t.Fatalf("expected original stamp %v retained, got %v ok=%v", first, got, ok)
	}

	if !frame.Meta.StampEnqueue("llm", second) {
		t.Fatalf("expected stamp of a different stage to succeed")
	}
}

func TestTurnIDCapturedByValue(t *testing.T) {
	t.Parallel()

	frame := New(TypeLLMDelta)
	if _, ok := frame.Meta.TurnID(); ok {
		t.Fatalf("expected fresh frame to carry no turn id")
	}
	if !frame.Meta.SetTurnID(7) {
		t.Fatalf("expected first turn id capture to succeed")
	}
	if frame.Meta.SetTurnID(8) {
		t.Fatalf("expected second turn id capture to be a no-op")
	}
	id, ok := frame.Meta.TurnID()
	if !ok || id != 7 {
		t.Fatalf("expected captured turn id 7, got %d ok=%v", id, ok)
	}
}
