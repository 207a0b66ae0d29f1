package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tiger/voicebot-latency/api/frames"
)

const defaultQueueDepth = 64

// EnqueueFunc accepts one frame into a stage's input queue.
type EnqueueFunc func(*frames.Frame)

// Hook fires synchronously just before a stage processes a dequeued frame.
type Hook func(*frames.Frame)

// Stage is the minimal contract the pipeline requires from a processing unit.
type Stage interface {
	Name() string
	Push(*frames.Frame)
}

// Instrumentable is the optional interception contract. Stages that expose
// it can have their enqueue path decorated and a pre-process hook installed
// without any change to their processing logic.
type Instrumentable interface {
	SwapEnqueue(wrap func(EnqueueFunc) EnqueueFunc)
	SetPreProcessHook(Hook)
}

// Processor consumes one dequeued frame and emits zero or more frames
// downstream via emit.
type Processor func(ctx context.Context, frame *frames.Frame, emit func(*frames.Frame))

// Passthrough forwards every frame downstream unchanged.
func Passthrough(_ context.Context, frame *frames.Frame, emit func(*frames.Frame)) {
	emit(frame)
}

// QueuedStage is an independently scheduled stage with its own bounded
// input queue. It satisfies Instrumentable.
type QueuedStage struct {
	name  string
	queue chan *frames.Frame
	proc  Processor

	mu      sync.RWMutex
	enqueue EnqueueFunc
	hook    Hook
	next    Stage
}

// NewQueuedStage constructs a stage with the given queue depth. A depth
// <= 0 selects the default.
func NewQueuedStage(name string, depth int, proc Processor) (*QueuedStage, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("stage name is required")
	}
	if proc == nil {
		proc = Passthrough
	}
	if depth <= 0 {
		depth = defaultQueueDepth
	}
	s := &QueuedStage{
		name:  name,
		queue: make(chan *frames.Frame, depth),
		proc:  proc,
	}
	s.enqueue = func(f *frames.Frame) { s.queue <- f }
	return s, nil
}

// Name returns the stable stage name.
func (s *QueuedStage) Name() string { return s.name }

// Push accepts one frame into the stage's input queue through the current
// enqueue function, decorated or not.
func (s *QueuedStage) Push(frame *frames.Frame) {
	s.mu.RLock()
	enqueue := s.enqueue
	s.mu.RUnlock()
	enqueue(frame)
}

// SwapEnqueue decorates the current enqueue function. The decorator must
// delegate to the function it receives to preserve queue behavior.
func (s *QueuedStage) SwapEnqueue(wrap func(EnqueueFunc) EnqueueFunc) {
	if wrap == nil {
		return
	}
	s.mu.Lock()
	s.enqueue = wrap(s.enqueue)
	s.mu.Unlock()
}

// SetPreProcessHook installs the pre-process hook, replacing any prior one.
func (s *QueuedStage) SetPreProcessHook(hook Hook) {
	s.mu.Lock()
	s.hook = hook
	s.mu.Unlock()
}

func (s *QueuedStage) setDownstream(next Stage) {
	s.mu.Lock()
	s.next = next
	s.mu.Unlock()
}

func (s *QueuedStage) emit(frame *frames.Frame) {
	s.mu.RLock()
	next := s.next
	s.mu.RUnlock()
	if next != nil {
		next.Push(frame)
	}
}

// run drains the input queue until ctx is cancelled.
func (s *QueuedStage) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-s.queue:
			s.mu.RLock()
			hook := s.hook
			s.mu.RUnlock()
			if hook != nil {
				hook(frame)
			}
			s.proc(ctx, frame, s.emit)
		}
	}
}
