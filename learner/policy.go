// Package learner trains and serves the strategy policy: a linear action-value
// function over the environment observation, one weight vector per strategy.
package learner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/quailyquaily/socialsim/environment"
	"github.com/quailyquaily/socialsim/internal/fsstore"
	"github.com/quailyquaily/socialsim/strategy"
)

// ArtifactName is fixed; every training run overwrites the previous policy.
const ArtifactName = "strategy_policy.json"

const FeatureCount = 5

var (
	ErrNoArtifact           = errors.New("learner: no trained policy")
	ErrIncompatibleArtifact = errors.New("learner: policy does not match the strategy table")
)

type Policy struct {
	Strategies   []string                `json:"strategies"`
	Weights      [][FeatureCount]float64 `json:"weights"`
	TrainedSteps int                     `json:"trained_steps"`
	UpdatedAt    time.Time               `json:"updated_at"`
}

func NewPolicy() *Policy {
	return &Policy{
		Strategies: strategy.Names(),
		Weights:    make([][FeatureCount]float64, strategy.Count()),
	}
}

// Features is [1, likes/100, comments/100, sentiment, rate].
func Features(obs environment.Observation) [FeatureCount]float64 {
	obs = obs.Clamp()
	return [FeatureCount]float64{1, obs.Likes / 100, obs.Comments / 100, obs.Sentiment, obs.InteractionRate}
}

func (p *Policy) Q(obs environment.Observation, action int) float64 {
	if action < 0 || action >= len(p.Weights) {
		return 0
	}
	x := Features(obs)
	var q float64
	for i, w := range p.Weights[action] {
		q += w * x[i]
	}
	return q
}

// Predict is greedy; ties go to the lowest index.
func (p *Policy) Predict(obs environment.Observation) int {
	best, bestQ := 0, 0.0
	for a := range p.Weights {
		q := p.Q(obs, a)
		if a == 0 || q > bestQ {
			best, bestQ = a, q
		}
	}
	return best
}

func (p *Policy) maxQ(obs environment.Observation) float64 {
	return p.Q(obs, p.Predict(obs))
}

// update moves Q(obs, action) toward target. The step is scaled by the
// squared feature norm so large observations cannot blow up the weights.
func (p *Policy) update(obs environment.Observation, action int, target, lr float64) float64 {
	x := Features(obs)
	tdErr := target - p.Q(obs, action)
	norm := 0.0
	for _, v := range x {
		norm += v * v
	}
	if norm < 1 {
		norm = 1
	}
	for i := range x {
		p.Weights[action][i] += lr * tdErr * x[i] / norm
	}
	return tdErr
}

func (p *Policy) validate() error {
	names := strategy.Names()
	if len(p.Weights) != len(names) || len(p.Strategies) != len(names) {
		return fmt.Errorf("%w: %d actions, want %d", ErrIncompatibleArtifact, len(p.Weights), len(names))
	}
	for i, name := range names {
		if p.Strategies[i] != name {
			return fmt.Errorf("%w: action %d is %q, want %q", ErrIncompatibleArtifact, i, p.Strategies[i], name)
		}
	}
	return nil
}

func ArtifactPath(dir string) string {
	return filepath.Join(strings.TrimSpace(dir), ArtifactName)
}

func (p *Policy) Save(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("learner: empty artifact dir")
	}
	return fsstore.WriteJSONAtomic(ArtifactPath(dir), p, fsstore.FileOptions{})
}

func Load(dir string) (*Policy, error) {
	path := ArtifactPath(dir)
	var p Policy
	ok, err := fsstore.ReadJSON(path, &p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoArtifact, path)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Predictor serves the saved policy. Without an artifact it answers action 0.
type Predictor struct {
	Dir string
}

func (p Predictor) Predict(obs environment.Observation) (int, error) {
	policy, err := Load(p.Dir)
	if errors.Is(err, ErrNoArtifact) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return policy.Predict(obs), nil
}

// Trained reports whether an artifact exists in Dir.
func (p Predictor) Trained() bool {
	_, err := os.Stat(ArtifactPath(p.Dir))
	return err == nil
}
