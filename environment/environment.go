// Package environment is the episodic strategy environment: each step picks
// an authoring strategy, generates a post with it and scores the post.
package environment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/quailyquaily/socialsim/internal/logutil"
	"github.com/quailyquaily/socialsim/judge"
	"github.com/quailyquaily/socialsim/strategy"
)

const (
	DefaultMaxSteps = 10
	ObservationMax  = 1000
)

var (
	ErrEpisodeDone   = errors.New("environment: episode is done, call Reset")
	ErrInvalidAction = errors.New("environment: invalid action")
)

// Author writes posts for a strategy. *agent.Agent satisfies it.
type Author interface {
	GenerateFromStrategy(ctx context.Context, strategyName string) (string, error)
}

// Observation is the rolling engagement state. Every component lies in
// [0, ObservationMax]; Sentiment and InteractionRate also lie in [0, 1].
type Observation struct {
	Likes           float64 `json:"likes"`
	Comments        float64 `json:"comments"`
	Sentiment       float64 `json:"sentiment"`
	InteractionRate float64 `json:"interaction_rate"`
}

func (o Observation) Clamp() Observation {
	return Observation{
		Likes:           clamp(o.Likes, 0, ObservationMax),
		Comments:        clamp(o.Comments, 0, ObservationMax),
		Sentiment:       clamp(o.Sentiment, 0, 1),
		InteractionRate: clamp(o.InteractionRate, 0, 1),
	}
}

func (o Observation) Vector() [4]float64 {
	return [4]float64{o.Likes, o.Comments, o.Sentiment, o.InteractionRate}
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v), v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}

// ObservationFromScore is the fixed transform from a judgement to the next
// observation.
func ObservationFromScore(s judge.Score) Observation {
	return Observation{
		Likes:           s.Likes,
		Comments:        s.Comments,
		Sentiment:       s.Normalized(),
		InteractionRate: (s.Likes + s.Comments) / 100,
	}.Clamp()
}

// Info is for logging and progress reporting only; learners must not read it.
type Info struct {
	Strategy string           `json:"strategy"`
	Text     string           `json:"text"`
	Reward   float64          `json:"reward"`
	Details  []judge.Reaction `json:"details,omitempty"`
}

type StepResult struct {
	Observation Observation
	Reward      float64
	Terminated  bool
	Info        Info
}

type Config struct {
	MaxSteps int
	Logger   *slog.Logger
}

type Environment struct {
	author   Author
	judge    judge.Judge
	maxSteps int
	log      *slog.Logger

	mu   sync.Mutex
	step int
	obs  Observation
}

func New(author Author, j judge.Judge, cfg Config) *Environment {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.Logger == nil {
		cfg.Logger = logutil.Discard()
	}
	return &Environment{author: author, judge: j, maxSteps: cfg.MaxSteps, log: cfg.Logger}
}

func (e *Environment) ActionCount() int { return strategy.Count() }
func (e *Environment) MaxSteps() int    { return e.maxSteps }

func (e *Environment) Steps() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.step
}

func (e *Environment) Observation() Observation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.obs
}

func (e *Environment) Reset() Observation {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.step = 0
	e.obs = Observation{}
	return e.obs
}

// Step runs one generate-and-score cycle. An invalid action or a failed
// generation/judgement does not consume a step.
func (e *Environment) Step(ctx context.Context, action int) (StepResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.step >= e.maxSteps {
		return StepResult{}, ErrEpisodeDone
	}
	s, ok := strategy.ByIndex(action)
	if !ok {
		return StepResult{}, fmt.Errorf("%w: %d (want 0..%d)", ErrInvalidAction, action, strategy.Count()-1)
	}
	if e.author == nil || e.judge == nil {
		return StepResult{}, errors.New("environment: author and judge are required")
	}

	text, err := e.author.GenerateFromStrategy(ctx, s.Name)
	if err != nil {
		return StepResult{}, fmt.Errorf("generate %s: %w", s.Name, err)
	}
	score, err := e.judge.Score(ctx, text)
	if err != nil {
		return StepResult{}, fmt.Errorf("score %s: %w", s.Name, err)
	}

	e.obs = ObservationFromScore(score)
	e.step++
	res := StepResult{
		Observation: e.obs,
		Reward:      score.Reward,
		Terminated:  e.step == e.maxSteps,
		Info: Info{
			Strategy: s.Name,
			Text:     text,
			Reward:   score.Reward,
			Details:  score.Details,
		},
	}
	e.log.Debug("env_step", "step", e.step, "strategy", s.Name, "reward", score.Reward, "terminated", res.Terminated)
	return res, nil
}
