// Package tuning holds the latency-patch collaborators layered onto the
// pipeline: LLM context pruning, VAD endpointing parameters, and parallel
// tool dispatch. They emit timing/metadata signals only; the dwell engine
// never depends on their internals.
package tuning

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/tiger/voicebot-latency/internal/config"
)

// Message is one dialogue-history entry subject to pruning.
type Message struct {
	Role    string
	Content string
}

// TokenCounter counts tokens for budget decisions.
type TokenCounter interface {
	Count(text string) (int, error)
}

type tiktokenCounter struct {
	encoding string
	once     sync.Once
	enc      *tiktoken.Tiktoken
	initErr  error
}

// init is lazy: tiktoken may fetch encoding data on first use.
func (c *tiktokenCounter) init() error {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(c.encoding)
		if err != nil {
			c.initErr = fmt.Errorf("init tiktoken encoding %s: %w", c.encoding, err)
			return
		}
		c.enc = enc
	})
	return c.initErr
}

func (c *tiktokenCounter) Count(text string) (int, error) {
	if err := c.init(); err != nil {
		return 0, err
	}
	return len(c.enc.Encode(text, nil, nil)), nil
}

// ContextPruner trims dialogue history to a token budget before each LLM
// call, dropping the oldest non-system messages first.
type ContextPruner struct {
	maxTokens  int
	keepSystem bool
	counter    TokenCounter
}

// NewContextPruner builds a pruner from tuning config with a tiktoken
// counter.
func NewContextPruner(cfg config.Prune) *ContextPruner {
	return NewContextPrunerWithCounter(cfg, &tiktokenCounter{encoding: cfg.Encoding})
}

// NewContextPrunerWithCounter builds a pruner with an injected counter.
func NewContextPrunerWithCounter(cfg config.Prune, counter TokenCounter) *ContextPruner {
	maxTokens := cfg.MaxTokens
	if maxTokens < 1 {
		maxTokens = config.Default().Prune.MaxTokens
	}
	return &ContextPruner{maxTokens: maxTokens, keepSystem: cfg.KeepSystem, counter: counter}
}

// per-message framing overhead plus conversation tail, matching the
// OpenAI chat token accounting convention.
const (
	perMessageOverhead = 4
	conversationTail   = 3
)

func (p *ContextPruner) messageTokens(msg Message) (int, error) {
	content, err := p.counter.Count(msg.Content)
	if err != nil {
		return 0, err
	}
	role, err := p.counter.Count(msg.Role)
	if err != nil {
		return 0, err
	}
	return perMessageOverhead + content + role, nil
}

// Prune returns the kept history and the number of dropped messages. The
// newest messages are always preferred; system messages survive when
// keep_system is set.
func (p *ContextPruner) Prune(history []Message) ([]Message, int, error) {
	costs := make([]int, len(history))
	total := conversationTail
	for i, msg := range history {
		tokens, err := p.messageTokens(msg)
		if err != nil {
			return nil, 0, err
		}
		costs[i] = tokens
		total += tokens
	}
	if total <= p.maxTokens {
		return history, 0, nil
	}

	drop := make([]bool, len(history))
	dropped := 0
	for i := 0; i < len(history) && total > p.maxTokens; i++ {
		if p.keepSystem && history[i].Role == "system" {
			continue
		}
		drop[i] = true
		dropped++
		total -= costs[i]
	}

	kept := make([]Message, 0, len(history)-dropped)
	for i, msg := range history {
		if !drop[i] {
			kept = append(kept, msg)
		}
	}
	return kept, dropped, nil
}
