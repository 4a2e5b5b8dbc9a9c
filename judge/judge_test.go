package judge

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"

	"github.com/quailyquaily/socialsim/llm"
	"github.com/quailyquaily/socialsim/persona"
)

// scriptedClient answers Generate calls by looking up the reactor name that
// appears in the prompt.
type scriptedClient struct {
	mu      sync.Mutex
	byName  map[string]string
	reply   string
	err     error
	prompts []llm.GenerateRequest
}

func (s *scriptedClient) Chat(context.Context, llm.Request) (llm.Result, error) {
	return llm.Result{}, errors.New("chat not expected")
}

func (s *scriptedClient) Generate(_ context.Context, req llm.GenerateRequest) (llm.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, req)
	if s.err != nil {
		return llm.Result{}, s.err
	}
	for name, reply := range s.byName {
		if strings.Contains(req.Prompt, "You are "+name+".") {
			return llm.Result{Text: reply}, nil
		}
	}
	return llm.Result{Text: s.reply}, nil
}

func roster(names ...string) []persona.Persona {
	out := make([]persona.Persona, 0, len(names))
	for _, name := range names {
		out = append(out, persona.New(name, "", persona.LegacyProfile("")))
	}
	return out
}

func TestPanelRewardCountsBothOnce(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{byName: map[string]string{
		"Ann": "both!",
		"Ben": "I'd LIKE it",
		"Cat": "Comment",
		"Dan": "pass",
		"Eve": "hmm",
	}}
	panel := NewPanel(client, roster("Ann", "Ben", "Cat", "Dan", "Eve"), PanelConfig{Size: 5, Rand: rand.New(rand.NewPCG(7, 7))})
	score, err := panel.Score(context.Background(), "A post")
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	// likes: Ann, Ben. comments: Ann, Cat.
	if score.Likes != 2 || score.Comments != 2 {
		t.Fatalf("likes/comments = %v/%v, want 2/2", score.Likes, score.Comments)
	}
	if score.Reward != 2*1+2*2 {
		t.Fatalf("Reward = %v, want 6", score.Reward)
	}
	if score.MaxReward != 15 || len(score.Details) != 5 {
		t.Fatalf("MaxReward = %v, details = %d", score.MaxReward, len(score.Details))
	}
	points := 0
	for _, d := range score.Details {
		points += d.Points
	}
	if float64(points) != score.Reward {
		t.Fatalf("detail points %d do not add up to reward %v", points, score.Reward)
	}
	if got := client.prompts[0].Parameters["num_predict"]; got != 5 {
		t.Fatalf("num_predict = %v", got)
	}
}

func TestPanelSamplesWithoutReplacement(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{reply: "PASS"}
	panel := NewPanel(client, roster("Ann", "Ben"), PanelConfig{Size: 5, Rand: rand.New(rand.NewPCG(1, 1))})
	score, err := panel.Score(context.Background(), "x")
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if len(score.Details) != 2 || score.Details[0].Reactor == score.Details[1].Reactor {
		t.Fatalf("details = %+v", score.Details)
	}
	if score.Reward != 0 || score.Normalized() != 0 {
		t.Fatalf("reward = %v", score.Reward)
	}
}

func TestPanelGenerationErrorIsPass(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{err: llm.ErrUnavailable}
	panel := NewPanel(client, roster("Ann", "Ben", "Cat"), PanelConfig{Size: 3})
	score, err := panel.Score(context.Background(), "x")
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	for _, d := range score.Details {
		if d.Decision != "PASS" {
			t.Fatalf("decision = %q, want PASS", d.Decision)
		}
	}
}

func TestClassifyReactionPriority(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"LIKE and COMMENT": "COMMENT",
		"both like":        "BOTH",
		"like":             "LIKE",
		"":                 "PASS",
	}
	for in, want := range cases {
		if got := ClassifyReaction(in); got != want {
			t.Fatalf("ClassifyReaction(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCriticScore(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{reply: "Score: 7/10"}
	critic := NewCritic(client, CriticConfig{})
	score, err := critic.Score(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if score.Reward != 7 || score.MaxReward != 10 || score.Likes != 70 || score.Comments != 14 {
		t.Fatalf("Score() = %+v", score)
	}
	req := client.prompts[0]
	if req.Model != "llama3.1" || !strings.Contains(req.Prompt, "Penalize generic or boring content") {
		t.Fatalf("critic request = %+v", req)
	}
}

func TestCriticDefaultsToZero(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{err: errors.New("down")}
	score, err := NewCritic(client, CriticConfig{}).Score(context.Background(), "x")
	if err != nil || score.Reward != 0 {
		t.Fatalf("Score() = %+v, %v", score, err)
	}
}

func TestParseRating(t *testing.T) {
	t.Parallel()

	cases := map[string]int{
		"7":          7,
		"I'd say 8.": 8,
		"42":         10,
		"none":       0,
		"3 or 4":     3,
	}
	for in, want := range cases {
		if got := ParseRating(in); got != want {
			t.Fatalf("ParseRating(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestStub(t *testing.T) {
	t.Parallel()

	stub := &Stub{Fixed: Score{Reward: 4, MaxReward: 8}}
	score, _ := stub.Score(context.Background(), "a")
	if score.Normalized() != 0.5 {
		t.Fatalf("Normalized() = %v", score.Normalized())
	}
	if seen := stub.Seen(); len(seen) != 1 || seen[0] != "a" {
		t.Fatalf("Seen() = %v", seen)
	}
}
