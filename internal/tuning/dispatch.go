package tuning

import (
	"context"
	"sync"
	"time"
)

// ToolCall is one function-call request issued by the dialogue model.
type ToolCall struct {
	Name   string
	Invoke func(ctx context.Context) (string, error)
}

// ToolResult is one completed call, in the order the calls were given.
type ToolResult struct {
	Name     string
	Output   string
	Err      error
	Duration time.Duration
}

// DispatchReport summarizes a parallel tool-dispatch round. WallTime is
// the duration of the whole round, the figure that lands in the turn's
// dialogue duration.
type DispatchReport struct {
	Results  []ToolResult
	WallTime time.Duration
}

// DispatchParallel runs every call concurrently and waits for all of
// them. Running N calls in parallel bounds the round by the slowest call
// instead of the sum.
func DispatchParallel(ctx context.Context, clock func() time.Time, calls []ToolCall) DispatchReport {
	if clock == nil {
		clock = time.Now
	}
	results := make([]ToolResult, len(calls))
	start := clock()

	var wg sync.WaitGroup
	for i, call := range calls {
		i, call := i, call
		wg.Add(1)
		go func() {
			defer wg.Done()
			callStart := clock()
			output, err := call.Invoke(ctx)
			results[i] = ToolResult{
				Name:     call.Name,
				Output:   output,
				Err:      err,
				Duration: clock().Sub(callStart),
			}
		}()
	}
	wg.Wait()

	return DispatchReport{Results: results, WallTime: clock().Sub(start)}
}
