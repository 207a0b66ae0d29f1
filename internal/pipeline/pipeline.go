package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tiger/voicebot-latency/api/frames"
)

var (
	// ErrAlreadyStarted indicates Start was called twice.
	ErrAlreadyStarted = errors.New("pipeline already started")
	// ErrNotStarted indicates Stop or Push before Start.
	ErrNotStarted = errors.New("pipeline not started")
)

// Pipeline is an ordered, already-assembled chain of stages. Frames enter
// at the first stage and each stage hands off to the next.
type Pipeline struct {
	stages []Stage

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
	started bool
}

// New links the given stages in order. Stage names must be unique.
func New(stages ...Stage) (*Pipeline, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("at least one stage is required")
	}
	seen := make(map[string]bool, len(stages))
	for _, stage := range stages {
		if stage == nil {
			return nil, fmt.Errorf("nil stage")
		}
		if seen[stage.Name()] {
			return nil, fmt.Errorf("duplicate stage name: %q", stage.Name())
		}
		seen[stage.Name()] = true
	}
	for i := 0; i < len(stages)-1; i++ {
		if linkable, ok := stages[i].(interface{ setDownstream(Stage) }); ok {
			linkable.setDownstream(stages[i+1])
		}
	}
	return &Pipeline{stages: stages}, nil
}

// Stages returns the assembled stage sequence in pipeline order.
func (p *Pipeline) Stages() []Stage {
	out := make([]Stage, len(p.stages))
	copy(out, p.stages)
	return out
}

// Push feeds one frame into the first stage.
func (p *Pipeline) Push(frame *frames.Frame) {
	p.stages[0].Push(frame)
}

// Start launches every queued stage's processing loop.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrAlreadyStarted
	}
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.stopped = make(chan struct{})
	p.started = true

	var wg sync.WaitGroup
	for _, stage := range p.stages {
		queued, ok := stage.(*QueuedStage)
		if !ok {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			queued.run(runCtx)
		}()
	}
	go func() {
		wg.Wait()
		close(p.stopped)
	}()
	return nil
}

// Stop cancels all stage loops and waits for them to exit.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return ErrNotStarted
	}
	cancel := p.cancel
	stopped := p.stopped
	p.mu.Unlock()

	cancel()
	<-stopped
	return nil
}
