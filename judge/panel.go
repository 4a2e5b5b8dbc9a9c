package judge

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/quailyquaily/socialsim/internal/logutil"
	"github.com/quailyquaily/socialsim/llm"
	"github.com/quailyquaily/socialsim/persona"
)

const (
	DefaultPanelSize = 5

	decisionBoth    = "BOTH"
	decisionComment = "COMMENT"
	decisionLike    = "LIKE"
	decisionPass    = "PASS"
)

var panelOptions = llm.Options{Temperature: 0.1, MaxTokens: 5}

type PanelConfig struct {
	Size   int
	Rand   *rand.Rand
	Logger *slog.Logger
}

// Panel scores content by asking a random sample of personas how they would
// react. Reward is likes + 2*comments; BOTH counts once in each.
type Panel struct {
	client   llm.Client
	reactors []persona.Persona
	size     int
	log      *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewPanel(client llm.Client, reactors []persona.Persona, cfg PanelConfig) *Panel {
	if cfg.Size <= 0 {
		cfg.Size = DefaultPanelSize
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9a7e1))
	}
	if cfg.Logger == nil {
		cfg.Logger = logutil.Discard()
	}
	return &Panel{
		client:   client,
		reactors: append([]persona.Persona(nil), reactors...),
		size:     cfg.Size,
		log:      cfg.Logger,
		rng:      cfg.Rand,
	}
}

func (p *Panel) sample() []persona.Persona {
	n := p.size
	if n > len(p.reactors) {
		n = len(p.reactors)
	}
	p.mu.Lock()
	perm := p.rng.Perm(len(p.reactors))
	p.mu.Unlock()
	out := make([]persona.Persona, n)
	for i := 0; i < n; i++ {
		out[i] = p.reactors[perm[i]]
	}
	return out
}

func (p *Panel) Score(ctx context.Context, content string) (Score, error) {
	reactors := p.sample()
	score := Score{MaxReward: float64(3 * len(reactors))}
	for _, reactor := range reactors {
		if err := ctx.Err(); err != nil {
			return Score{}, err
		}
		decision := p.react(ctx, reactor, content)
		points := 0
		switch decision {
		case decisionBoth:
			score.Likes++
			score.Comments++
			points = 3
		case decisionComment:
			score.Comments++
			points = 2
		case decisionLike:
			score.Likes++
			points = 1
		}
		score.Details = append(score.Details, Reaction{Reactor: reactor.Name, Decision: decision, Points: points})
	}
	score.Reward = Reward(score.Likes, score.Comments)
	p.log.Debug("panel_scored", "reactors", len(reactors), "likes", score.Likes, "comments", score.Comments, "reward", score.Reward)
	return score, nil
}

// Reward is the panel weighting: one point per like, two per comment.
func Reward(likes, comments float64) float64 {
	return likes + 2*comments
}

func (p *Panel) react(ctx context.Context, reactor persona.Persona, content string) string {
	if p.client == nil {
		return decisionPass
	}
	prompt := fmt.Sprintf("System: %s\n\nUser: You are scrolling social media. You see a post:\n\"%s\"\n\n", reactor.SystemPrompt(), strings.TrimSpace(content)) +
		"Decide your interaction:\nLIKE, COMMENT, BOTH, or PASS.\nReturn ONLY the word."
	res, err := p.client.Generate(ctx, llm.GenerateRequest{
		Model:      reactor.Model,
		Prompt:     prompt,
		Parameters: panelOptions.Parameters(),
	})
	if err != nil {
		p.log.Warn("panel_reactor_unavailable", "reactor", reactor.Name, "error", err.Error())
		return decisionPass
	}
	return ClassifyReaction(res.Text)
}

// ClassifyReaction reduces free text to a reaction by containment, checking
// BOTH, then COMMENT, then LIKE. Anything else is PASS.
func ClassifyReaction(text string) string {
	upper := strings.ToUpper(text)
	for _, d := range []string{decisionBoth, decisionComment, decisionLike} {
		if strings.Contains(upper, d) {
			return d
		}
	}
	return decisionPass
}
