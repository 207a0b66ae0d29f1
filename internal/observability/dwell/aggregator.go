package dwell

import "sync"

// StageMean is one stage's reduced dwell for a turn, in milliseconds.
type StageMean struct {
	Stage  string
	MeanMS float64
}

// registry tracks instrumented stage names in first-instrumentation order.
// Summary output follows this order so the emitted line stays stable and
// scannable turn over turn.
type registry struct {
	mu    sync.Mutex
	order []string
	seen  map[string]struct{}
}

func newRegistry() *registry {
	return &registry{seen: make(map[string]struct{}, 8)}
}

// add records a stage name; false means it was already registered.
func (r *registry) add(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[name]; ok {
		return false
	}
	r.seen[name] = struct{}{}
	r.order = append(r.order, name)
	return true
}

func (r *registry) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Aggregator accumulates per-turn, per-stage dwell samples. Buckets exist
// only between turn open and the single consume-and-clear Summarize call;
// samples for an unknown turn id are dropped so a closed turn can never
// grow again.
type Aggregator struct {
	reg *registry

	mu      sync.Mutex
	buckets map[uint64]map[string][]float64
	maxOpen int
	evicted func(turnID uint64)
}

// NewAggregator builds an aggregator capping concurrently open buckets at
// maxOpen (<=0 selects the default). evicted, if non-nil, is called with
// the id of any bucket discarded by the cap.
func NewAggregator(reg *registry, maxOpen int, evicted func(turnID uint64)) *Aggregator {
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenTurns
	}
	return &Aggregator{
		reg:     reg,
		buckets: make(map[uint64]map[string][]float64, 4),
		maxOpen: maxOpen,
		evicted: evicted,
	}
}

const defaultMaxOpenTurns = 8

// Open initializes an empty bucket for a new turn, evicting the oldest
// open bucket if the cap is exceeded.
func (a *Aggregator) Open(turnID uint64) {
	var dropped []uint64
	a.mu.Lock()
	if _, ok := a.buckets[turnID]; !ok {
		a.buckets[turnID] = make(map[string][]float64, 4)
	}
	for len(a.buckets) > a.maxOpen {
		oldest := turnID
		for id := range a.buckets {
			if id < oldest {
				oldest = id
			}
		}
		delete(a.buckets, oldest)
		dropped = append(dropped, oldest)
	}
	a.mu.Unlock()

	if a.evicted != nil {
		for _, id := range dropped {
			a.evicted(id)
		}
	}
}

// Append records one dwell sample under (turnID, stage). Samples for a
// turn with no bucket are dropped.
func (a *Aggregator) Append(turnID uint64, stage string, dwellMS float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	bucket, ok := a.buckets[turnID]
	if !ok {
		return
	}
	bucket[stage] = append(bucket[stage], dwellMS)
}

// Summarize reduces and evicts a turn's bucket. Stages appear in
// first-instrumentation order; stages with no samples are omitted. A
// second call for the same id returns an empty result.
func (a *Aggregator) Summarize(turnID uint64) []StageMean {
	a.mu.Lock()
	bucket, ok := a.buckets[turnID]
	if ok {
		delete(a.buckets, turnID)
	}
	a.mu.Unlock()
	if !ok {
		return nil
	}

	out := make([]StageMean, 0, len(bucket))
	for _, stage := range a.reg.names() {
		samples := bucket[stage]
		if len(samples) == 0 {
			continue
		}
		var sum float64
		for _, s := range samples {
			sum += s
		}
		out = append(out, StageMean{Stage: stage, MeanMS: sum / float64(len(samples))})
	}
	return out
}

// OpenBuckets reports the number of buckets awaiting summarization.
func (a *Aggregator) OpenBuckets() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buckets)
}
