package judge

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/quailyquaily/socialsim/internal/logutil"
	"github.com/quailyquaily/socialsim/llm"
)

const (
	DefaultCriticModel = "llama3.1"
	CriticMaxScore     = 10
)

var (
	criticOptions = llm.Options{MaxTokens: 5}
	firstIntRe    = regexp.MustCompile(`\d+`)
)

type CriticConfig struct {
	Model  string
	Logger *slog.Logger
}

// Critic asks a single strict editor for a 0-10 engagement rating.
type Critic struct {
	client llm.Client
	model  string
	log    *slog.Logger
}

func NewCritic(client llm.Client, cfg CriticConfig) *Critic {
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultCriticModel
	}
	if cfg.Logger == nil {
		cfg.Logger = logutil.Discard()
	}
	return &Critic{client: client, model: cfg.Model, log: cfg.Logger}
}

func criticPrompt(content string) string {
	return "Act as a critical Senior Social Media Editor. " +
		"Rate this post on a scale of 0 to 10 for engagement potential. " +
		"Be STRICT. Penalize generic or boring content. " +
		"Only give high scores (8+) to truly unique and engaging posts. " +
		fmt.Sprintf("Post: \"%s\"\n", content) +
		"Return ONLY the number (e.g. 7). Do not explain."
}

// Score never fails on generation problems; an unusable reply scores 0. The
// reported likes and comments are a fixed projection of the rating.
func (c *Critic) Score(ctx context.Context, content string) (Score, error) {
	if err := ctx.Err(); err != nil {
		return Score{}, err
	}
	rating := 0
	if c.client != nil {
		res, err := c.client.Generate(ctx, llm.GenerateRequest{
			Model:      c.model,
			Prompt:     criticPrompt(content),
			Parameters: criticOptions.Parameters(),
		})
		if err != nil {
			c.log.Warn("critic_unavailable", "error", err.Error())
		} else {
			rating = ParseRating(res.Text)
		}
	}
	reward := float64(rating)
	c.log.Debug("critic_scored", "rating", rating)
	return Score{
		Reward:    reward,
		MaxReward: CriticMaxScore,
		Likes:     reward * 10,
		Comments:  reward * 2,
		Details:   []Reaction{{Reactor: "critic", Decision: strconv.Itoa(rating), Points: rating}},
	}, nil
}

// ParseRating extracts the first integer in text, clamped to [0, 10]. No
// integer means 0.
func ParseRating(text string) int {
	m := firstIntRe.FindString(text)
	if m == "" {
		return 0
	}
	v, err := strconv.Atoi(m)
	if err != nil || v > CriticMaxScore {
		return CriticMaxScore
	}
	return v
}
