package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tiger/voicebot-latency/api/frames"
)

// collector is a synchronous terminal stage used by tests.
type collector struct {
	name string

	mu     sync.Mutex
	frames []*frames.Frame
	signal chan struct{}
}

func newCollector(name string) *collector {
	return &collector{name: name, signal: make(chan struct{}, 64)}
}

func (c *collector) Name() string { return c.name }

func (c *collector) Push(frame *frames.Frame) {
	c.mu.Lock()
	c.frames = append(c.frames, frame)
	c.mu.Unlock()
	c.signal <- struct{}{}
}

func (c *collector) wait(t *testing.T, n int) []*frames.Frame {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case <-c.signal:
		case <-deadline:
			t.Fatalf("timed out waiting for %d frames at %s", n, c.name)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*frames.Frame, len(c.frames))
	copy(out, c.frames)
	return out
}

func mustStage(t *testing.T, name string, proc Processor) *QueuedStage {
	t.Helper()
	stage, err := NewQueuedStage(name, 8, proc)
	if err != nil {
		t.Fatalf("new stage %s failed: %v", name, err)
	}
	return stage
}

func TestPipelineForwardsFramesThroughAllStages(t *testing.T) {
	t.Parallel()

	stt := mustStage(t, "stt", nil)
	llm := mustStage(t, "llm", nil)
	sink := newCollector("sink")

	p, err := New(stt, llm, sink)
	if err != nil {
		t.Fatalf("new pipeline failed: %v", err)
	}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer func() {
		if err := p.Stop(); err != nil {
			t.Fatalf("stop failed: %v", err)
		}
	}()

	p.Push(frames.New(frames.TypeAudioChunk))
	p.Push(frames.New(frames.TypeResponseEnd))

	got := sink.wait(t, 2)
	if got[0].Type != frames.TypeAudioChunk || got[1].Type != frames.TypeResponseEnd {
		t.Fatalf("expected frames in push order, got %v then %v", got[0].Type, got[1].Type)
	}
}

func TestPipelineRejectsDuplicateStageNames(t *testing.T) {
	t.Parallel()

	a := mustStage(t, "stt", nil)
	b := mustStage(t, "stt", nil)
	if _, err := New(a, b); err == nil {
		t.Fatalf("expected duplicate stage name to be rejected")
	}
}

func TestSwapEnqueuePreservesDelegation(t *testing.T) {
	t.Parallel()

	stage := mustStage(t, "llm", nil)
	sink := newCollector("sink")

	var decorated int
	stage.SwapEnqueue(func(next EnqueueFunc) EnqueueFunc {
		return func(f *frames.Frame) {
			decorated++
			next(f)
		}
	})

	p, err := New(stage, sink)
	if err != nil {
		t.Fatalf("new pipeline failed: %v", err)
	}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer func() { _ = p.Stop() }()

	p.Push(frames.New(frames.TypeLLMDelta))
	sink.wait(t, 1)
	if decorated != 1 {
		t.Fatalf("expected decorated enqueue to run once, got %d", decorated)
	}
}

func TestPreProcessHookFiresBeforeProcessing(t *testing.T) {
	t.Parallel()

	order := make(chan string, 2)
	stage := mustStage(t, "tts", func(_ context.Context, f *frames.Frame, emit func(*frames.Frame)) {
		order <- "process"
		emit(f)
	})
	stage.SetPreProcessHook(func(*frames.Frame) { order <- "hook" })
	sink := newCollector("sink")

	p, err := New(stage, sink)
	if err != nil {
		t.Fatalf("new pipeline failed: %v", err)
	}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer func() { _ = p.Stop() }()

	p.Push(frames.New(frames.TypeSynthesizedSpeech))
	sink.wait(t, 1)

	if first := <-order; first != "hook" {
		t.Fatalf("expected hook before processing, got %q first", first)
	}
	if second := <-order; second != "process" {
		t.Fatalf("expected processing after hook, got %q", second)
	}
}

func TestStartTwiceFails(t *testing.T) {
	t.Parallel()

	stage := mustStage(t, "stt", nil)
	p, err := New(stage)
	if err != nil {
		t.Fatalf("new pipeline failed: %v", err)
	}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer func() { _ = p.Stop() }()

	if err := p.Start(context.Background()); err != ErrAlreadyStarted {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}
