package learner

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/quailyquaily/socialsim/environment"
	"github.com/quailyquaily/socialsim/internal/logutil"
)

const (
	DefaultSteps               = 500
	DefaultLearningRate        = 0.05
	DefaultDiscount            = 0.9
	DefaultEpsilonStart        = 1.0
	DefaultEpsilonEnd          = 0.05
	DefaultExplorationFraction = 0.1
)

// Env is the part of *environment.Environment the trainer drives.
type Env interface {
	Reset() environment.Observation
	Step(ctx context.Context, action int) (environment.StepResult, error)
	ActionCount() int
}

type Config struct {
	Steps               int
	LearningRate        float64
	Discount            float64
	EpsilonStart        float64
	EpsilonEnd          float64
	ExplorationFraction float64
	// Seed drives exploration. Zero means time based.
	Seed   uint64
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Steps <= 0 {
		c.Steps = DefaultSteps
	}
	if c.LearningRate <= 0 {
		c.LearningRate = DefaultLearningRate
	}
	if c.Discount <= 0 || c.Discount >= 1 {
		c.Discount = DefaultDiscount
	}
	if c.EpsilonStart <= 0 {
		c.EpsilonStart = DefaultEpsilonStart
	}
	if c.EpsilonEnd <= 0 {
		c.EpsilonEnd = DefaultEpsilonEnd
	}
	if c.ExplorationFraction <= 0 || c.ExplorationFraction > 1 {
		c.ExplorationFraction = DefaultExplorationFraction
	}
	if c.Seed == 0 {
		c.Seed = uint64(time.Now().UnixNano())
	}
	if c.Logger == nil {
		c.Logger = logutil.Discard()
	}
	return c
}

// epsilon decays linearly from EpsilonStart to EpsilonEnd over the first
// ExplorationFraction of the run, then stays at EpsilonEnd.
func (c Config) epsilon(step int) float64 {
	decay := int(float64(c.Steps) * c.ExplorationFraction)
	if decay < 1 {
		decay = 1
	}
	if step >= decay {
		return c.EpsilonEnd
	}
	return c.EpsilonStart + (c.EpsilonEnd-c.EpsilonStart)*float64(step)/float64(decay)
}

type Progress struct {
	Step          int     `json:"step"`
	Episode       int     `json:"episode"`
	Action        int     `json:"action"`
	Strategy      string  `json:"strategy"`
	Reward        float64 `json:"reward"`
	RunningReward float64 `json:"running_reward"`
	Epsilon       float64 `json:"epsilon"`
	Post          string  `json:"post"`
}

// Message is the one-line status shown to operators.
func (p Progress) Message() string {
	return fmt.Sprintf("Step %d: Score=%.1f | Post='%s'", p.Step, p.Reward, logutil.Truncate(p.Post, 80))
}

type Observer func(Progress)

type Result struct {
	Steps         int     `json:"steps"`
	Episodes      int     `json:"episodes"`
	MeanReward    float64 `json:"mean_reward"`
	RunningReward float64 `json:"running_reward"`
	Policy        *Policy `json:"-"`
}

// Train runs epsilon-greedy TD(0) against env for cfg.Steps steps, resetting
// the environment whenever an episode terminates. Cancellation is checked
// between steps; the partial result is returned with the error.
func Train(ctx context.Context, env Env, cfg Config, observe Observer) (Result, error) {
	if env == nil {
		return Result{}, fmt.Errorf("learner: nil environment")
	}
	cfg = cfg.withDefaults()
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x7a11))
	policy := NewPolicy()
	if n := env.ActionCount(); n != len(policy.Weights) {
		return Result{}, fmt.Errorf("%w: environment has %d actions", ErrIncompatibleArtifact, n)
	}

	res := Result{Policy: policy, Episodes: 1}
	var total, running float64
	obs := env.Reset()
	for step := 1; step <= cfg.Steps; step++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		eps := cfg.epsilon(step - 1)
		action := policy.Predict(obs)
		if rng.Float64() < eps {
			action = rng.IntN(len(policy.Weights))
		}

		out, err := env.Step(ctx, action)
		if err != nil {
			return res, fmt.Errorf("train step %d: %w", step, err)
		}
		target := out.Reward
		if !out.Terminated {
			target += cfg.Discount * policy.maxQ(out.Observation)
		}
		policy.update(obs, action, target, cfg.LearningRate)

		total += out.Reward
		if step == 1 {
			running = out.Reward
		} else {
			running = 0.9*running + 0.1*out.Reward
		}
		res.Steps = step
		res.MeanReward = total / float64(step)
		res.RunningReward = running
		policy.TrainedSteps = step

		p := Progress{
			Step:          step,
			Episode:       res.Episodes,
			Action:        action,
			Strategy:      out.Info.Strategy,
			Reward:        out.Reward,
			RunningReward: running,
			Epsilon:       eps,
			Post:          out.Info.Text,
		}
		cfg.Logger.Info("train_step", "step", step, "episode", res.Episodes, "strategy", p.Strategy, "reward", out.Reward, "epsilon", eps)
		if observe != nil {
			observe(p)
		}

		if out.Terminated {
			obs = env.Reset()
			if step < cfg.Steps {
				res.Episodes++
			}
		} else {
			obs = out.Observation
		}
	}
	policy.UpdatedAt = time.Now().UTC()
	return res, nil
}
