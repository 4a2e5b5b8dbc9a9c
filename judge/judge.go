// Package judge turns generated content into a reward without real
// engagement data. Judges only observe: they never write memory or posts.
package judge

import (
	"context"
	"sync"
)

type Reaction struct {
	Reactor  string `json:"reactor"`
	Decision string `json:"decision"`
	Points   int    `json:"points"`
}

// Score is one judgement. Likes and Comments are the engagement counts the
// reward was derived from (or projected from, for the critic).
type Score struct {
	Reward    float64    `json:"reward"`
	MaxReward float64    `json:"max_reward"`
	Likes     float64    `json:"likes"`
	Comments  float64    `json:"comments"`
	Details   []Reaction `json:"details,omitempty"`
}

// Normalized maps Reward into [0, 1]. A zero MaxReward yields 0.
func (s Score) Normalized() float64 {
	if s.MaxReward <= 0 {
		return 0
	}
	v := s.Reward / s.MaxReward
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

type Judge interface {
	Score(ctx context.Context, content string) (Score, error)
}

// Stub is a deterministic judge. Func wins over Fixed when set.
type Stub struct {
	Fixed Score
	Func  func(ctx context.Context, content string) (Score, error)

	mu   sync.Mutex
	seen []string
}

func (s *Stub) Score(ctx context.Context, content string) (Score, error) {
	s.mu.Lock()
	s.seen = append(s.seen, content)
	s.mu.Unlock()
	if s.Func != nil {
		return s.Func(ctx, content)
	}
	return s.Fixed, nil
}

// Seen lists the contents scored so far.
func (s *Stub) Seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}
