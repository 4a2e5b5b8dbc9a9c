// Package agent implements the persona agent: one persona's voice, its
// short-term dialogue and its access to long-term memory.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/quailyquaily/socialsim/internal/logutil"
	"github.com/quailyquaily/socialsim/llm"
	"github.com/quailyquaily/socialsim/memory"
	"github.com/quailyquaily/socialsim/persona"
)

const fallbackReason = "fallback: generation unavailable"

// Sampling contract. These are fixed per operation and not tunable per call.
var (
	ReplyOptions        = llm.Options{Temperature: 0.8, TopP: 0.9, TopK: 40, RepeatPenalty: 1.1, MaxTokens: 256}
	DecisionOptions     = llm.Options{Temperature: 0.1, MaxTokens: 40}
	StrategyPostOptions = llm.Options{Temperature: 0.9, TopP: 0.95, TopK: 50, RepeatPenalty: 1.15, MaxTokens: 120}
)

type Option func(*Agent)

func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.log = l
		}
	}
}

func WithMemoryTopK(k int) Option {
	return func(a *Agent) {
		if k > 0 {
			a.topK = k
		}
	}
}

func WithHistoryLimit(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.historyLimit = n
		}
	}
}

// WithRand seeds the source used for fallback decisions.
func WithRand(r *rand.Rand) Option {
	return func(a *Agent) {
		if r != nil {
			a.rng = r
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Agent) {
		if now != nil {
			a.now = now
		}
	}
}

type Agent struct {
	persona persona.Persona
	client  llm.Client
	memory  memory.Store
	log     *slog.Logger
	now     func() time.Time

	topK         int
	historyLimit int

	mu      sync.Mutex
	history *turnRing
	rng     *rand.Rand
}

// New builds an agent for p. A nil memory store falls back to an in-process
// one; a nil client makes every generation call unavailable.
func New(p persona.Persona, client llm.Client, mem memory.Store, opts ...Option) *Agent {
	a := &Agent{
		persona:      p,
		client:       client,
		memory:       mem,
		log:          logutil.Discard(),
		now:          time.Now,
		topK:         memory.DefaultTopK,
		historyLimit: DefaultHistoryLimit,
		rng:          rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	if a.memory == nil {
		a.memory = memory.NewInMemoryStore(nil)
	}
	a.history = newTurnRing(a.historyLimit)
	a.log = a.log.With("persona", p.Name)
	return a
}

func (a *Agent) Persona() persona.Persona {
	return a.persona
}

func (a *Agent) Name() string {
	return a.persona.Name
}

// History returns the retained turns, oldest first.
func (a *Agent) History() []llm.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history.snapshot()
}

// DroppedTurns counts turns evicted from the bounded history.
func (a *Agent) DroppedTurns() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history.dropped
}

// RecordPost stores a post the persona authored outside the strategy loop.
func (a *Agent) RecordPost(ctx context.Context, text string) error {
	return a.remember(ctx, text, memory.TypeManualPost, nil)
}

// RecordInteraction stores a note about a like or comment the persona made.
func (a *Agent) RecordInteraction(ctx context.Context, text string) error {
	return a.remember(ctx, text, memory.TypeInteraction, nil)
}

func (a *Agent) remember(ctx context.Context, text, kind string, extra map[string]string) error {
	meta := map[string]string{
		"type":      kind,
		"persona":   a.persona.Name,
		"timestamp": a.now().UTC().Format(time.RFC3339),
	}
	for k, v := range extra {
		meta[k] = v
	}
	if err := a.memory.Add(ctx, a.persona.CollectionKey(), text, meta); err != nil {
		return fmt.Errorf("agent %s: store %s memory: %w", a.persona.Name, kind, err)
	}
	return nil
}

// recall never fails the caller. Retrieval errors are logged and the prompt is
// built without memories.
func (a *Agent) recall(ctx context.Context, query string) []memory.Record {
	records, err := a.memory.Search(ctx, a.persona.CollectionKey(), query, a.topK)
	if err != nil {
		a.log.Warn("memory_search_failed", "error", err.Error())
		return nil
	}
	return records
}

func (a *Agent) chat(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	if a.client == nil {
		return "", llm.ErrUnavailable
	}
	res, err := a.client.Chat(ctx, llm.Request{
		Model:      a.persona.Model,
		Messages:   messages,
		Parameters: opts.Parameters(),
	})
	return resultText(res, err)
}

func (a *Agent) generate(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	if a.client == nil {
		return "", llm.ErrUnavailable
	}
	res, err := a.client.Generate(ctx, llm.GenerateRequest{
		Model:      a.persona.Model,
		Prompt:     prompt,
		Parameters: opts.Parameters(),
	})
	return resultText(res, err)
}

func resultText(res llm.Result, err error) (string, error) {
	if err != nil {
		if errors.Is(err, llm.ErrUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", llm.ErrUnavailable, err)
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		return "", fmt.Errorf("%w: empty response", llm.ErrUnavailable)
	}
	return text, nil
}

// framed prefixes a one-shot prompt with the persona's system prompt.
func (a *Agent) framed(prompt string) string {
	return "System: " + a.persona.SystemPrompt() + "\n\nUser: " + prompt
}

func memoryBlock(records []memory.Record, heading string) string {
	if len(records) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	for _, rec := range records {
		b.WriteString("- ")
		b.WriteString(strings.TrimSpace(rec.Text))
		b.WriteString("\n")
	}
	return b.String()
}
