package agent

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"

	"github.com/quailyquaily/socialsim/llm"
	"github.com/quailyquaily/socialsim/memory"
	"github.com/quailyquaily/socialsim/persona"
)

type stubLLMClient struct {
	mu        sync.Mutex
	chatReply string
	genReply  string
	err       error
	chats     []llm.Request
	gens      []llm.GenerateRequest
}

func (s *stubLLMClient) Chat(_ context.Context, req llm.Request) (llm.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = append(s.chats, req)
	if s.err != nil {
		return llm.Result{}, s.err
	}
	return llm.Result{Text: s.chatReply}, nil
}

func (s *stubLLMClient) Generate(_ context.Context, req llm.GenerateRequest) (llm.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens = append(s.gens, req)
	if s.err != nil {
		return llm.Result{}, s.err
	}
	return llm.Result{Text: s.genReply}, nil
}

func testPersona() persona.Persona {
	return persona.New("Clara Stone", "", persona.LegacyProfile("You are Clara, a cheerful gardener."))
}

func TestReplyTwiceBuildsHistoryAndMemory(t *testing.T) {
	t.Parallel()

	client := &stubLLMClient{chatReply: "Hi there!"}
	mem := memory.NewInMemoryStore(nil)
	a := New(testPersona(), client, mem)

	for i := 0; i < 2; i++ {
		got, err := a.Reply(context.Background(), "Hello")
		if err != nil {
			t.Fatalf("Reply() error = %v", err)
		}
		if got != "Hi there!" {
			t.Fatalf("Reply() = %q", got)
		}
	}

	history := a.History()
	if len(history) != 4 {
		t.Fatalf("len(History()) = %d, want 4", len(history))
	}
	roles := []string{llm.RoleUser, llm.RoleAssistant, llm.RoleUser, llm.RoleAssistant}
	for i, want := range roles {
		if history[i].Role != want {
			t.Fatalf("history[%d].Role = %q, want %q", i, history[i].Role, want)
		}
	}
	n, _ := mem.Count(context.Background(), "clara_stone")
	if n < 2 {
		t.Fatalf("memory records = %d, want >= 2", n)
	}
	for _, rec := range mem.All("clara_stone") {
		if rec.Type() != memory.TypeConversation {
			t.Fatalf("record type = %q", rec.Type())
		}
	}

	last := client.chats[1]
	if last.Model != persona.DefaultModel {
		t.Fatalf("model = %q", last.Model)
	}
	if last.Messages[0].Role != llm.RoleSystem || !strings.Contains(last.Messages[0].Content, "cheerful gardener") {
		t.Fatalf("system message = %+v", last.Messages[0])
	}
	if !strings.Contains(last.Messages[0].Content, "Hi there!") {
		t.Fatalf("second call should include recalled memory")
	}
	if len(last.Messages) != 4 {
		t.Fatalf("second call sent %d messages, want system + 3 turns", len(last.Messages))
	}
	if last.Parameters["temperature"] != 0.8 || last.Parameters["num_predict"] != 256 {
		t.Fatalf("reply parameters = %v", last.Parameters)
	}
}

func TestReplyUnavailableKeepsUserTurn(t *testing.T) {
	t.Parallel()

	client := &stubLLMClient{err: fmt.Errorf("dial tcp: refused")}
	mem := memory.NewInMemoryStore(nil)
	a := New(testPersona(), client, mem)

	_, err := a.Reply(context.Background(), "Hello")
	if !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("Reply() error = %v, want ErrUnavailable", err)
	}
	if got := a.History(); len(got) != 1 || got[0].Role != llm.RoleUser {
		t.Fatalf("History() = %+v", got)
	}
	if n, _ := mem.Count(context.Background(), "clara_stone"); n != 0 {
		t.Fatalf("failed exchange should not be remembered, got %d records", n)
	}
}

func TestHistoryIsBounded(t *testing.T) {
	t.Parallel()

	client := &stubLLMClient{chatReply: "ok"}
	a := New(testPersona(), client, nil, WithHistoryLimit(4))
	for i := 0; i < 5; i++ {
		if _, err := a.Reply(context.Background(), fmt.Sprintf("msg %d", i)); err != nil {
			t.Fatalf("Reply() error = %v", err)
		}
	}
	history := a.History()
	if len(history) != 4 {
		t.Fatalf("len(History()) = %d, want 4", len(history))
	}
	if history[0].Content != "msg 3" || history[2].Content != "msg 4" {
		t.Fatalf("History() kept the wrong turns: %+v", history)
	}
	if a.DroppedTurns() != 6 {
		t.Fatalf("DroppedTurns() = %d, want 6", a.DroppedTurns())
	}
}

func TestDecideInteraction(t *testing.T) {
	t.Parallel()

	cases := []struct {
		reply  string
		want   Action
		reason string
	}{
		{"LIKE | nice garden", ActionLike, "nice garden"},
		{"I think COMMENT is right | because", ActionComment, "because"},
		{"BOTH", ActionBoth, ""},
		{"maybe later", ActionIgnore, "later"},
		{"PASS | not my thing", ActionIgnore, "not my thing"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.reply, func(t *testing.T) {
			t.Parallel()
			client := &stubLLMClient{genReply: tc.reply}
			a := New(testPersona(), client, nil)
			d, err := a.DecideInteraction(context.Background(), "Look at my tomatoes", "Bo")
			if err != nil {
				t.Fatalf("DecideInteraction() error = %v", err)
			}
			if d.Action != tc.want || d.Reason != tc.reason {
				t.Fatalf("DecideInteraction() = %+v, want %s/%q", d, tc.want, tc.reason)
			}
			if got := client.gens[0].Parameters["num_predict"]; got != 40 {
				t.Fatalf("num_predict = %v", got)
			}
		})
	}
}

func TestDecideInteractionOwnPostSkipsGeneration(t *testing.T) {
	t.Parallel()

	client := &stubLLMClient{genReply: "LIKE | ok"}
	a := New(testPersona(), client, nil)
	d, err := a.DecideInteraction(context.Background(), "my post", "clara stone")
	if err != nil {
		t.Fatalf("DecideInteraction() error = %v", err)
	}
	if d.Action != ActionIgnore || d.Reason != "own post" {
		t.Fatalf("DecideInteraction() = %+v", d)
	}
	if len(client.gens) != 0 {
		t.Fatalf("own post should not call the model")
	}
}

func TestDecideInteractionFallbackIsActive(t *testing.T) {
	t.Parallel()

	client := &stubLLMClient{err: llm.ErrUnavailable}
	a := New(testPersona(), client, nil, WithRand(rand.New(rand.NewPCG(1, 2))))
	seen := map[Action]bool{}
	for i := 0; i < 60; i++ {
		d, err := a.DecideInteraction(context.Background(), "post", "Bo")
		if err != nil {
			t.Fatalf("DecideInteraction() error = %v", err)
		}
		if d.Action == ActionIgnore {
			t.Fatalf("fallback must pick an active decision")
		}
		if d.Reason != "fallback: generation unavailable" {
			t.Fatalf("fallback reason = %q", d.Reason)
		}
		seen[d.Action] = true
	}
	if len(seen) != 3 {
		t.Fatalf("fallback covered %v, want all three active decisions", seen)
	}
}

func TestDecideReplyToComment(t *testing.T) {
	t.Parallel()

	client := &stubLLMClient{genReply: "YES | they asked a question"}
	a := New(testPersona(), client, nil)
	ok, reason, err := a.DecideReplyToComment(context.Background(), "How do you water them?", "My tomatoes")
	if err != nil || !ok || reason != "they asked a question" {
		t.Fatalf("DecideReplyToComment() = %v, %q, %v", ok, reason, err)
	}

	client.err = errors.New("boom")
	ok, reason, err = a.DecideReplyToComment(context.Background(), "x", "y")
	if err != nil || ok || reason != "fallback: generation unavailable" {
		t.Fatalf("fallback DecideReplyToComment() = %v, %q, %v", ok, reason, err)
	}
}

func TestScoreActions(t *testing.T) {
	t.Parallel()

	client := &stubLLMClient{genReply: "IGNORE=0.1, LIKE=0.9, COMMENT=0.3, BOTH=0.2"}
	a := New(testPersona(), client, nil)
	scores, err := a.ScoreActions(context.Background(), "post")
	if err != nil {
		t.Fatalf("ScoreActions() error = %v", err)
	}
	if scores.Best() != ActionLike {
		t.Fatalf("Best() = %s, scores = %+v", scores.Best(), scores)
	}

	client.err = errors.New("down")
	scores, _ = a.ScoreActions(context.Background(), "post")
	if scores != UniformScores() {
		t.Fatalf("fallback scores = %+v", scores)
	}
}

func TestGenerateFromStrategy(t *testing.T) {
	t.Parallel()

	client := &stubLLMClient{genReply: `Here's a post: "Tiny habits, big gardens."`}
	mem := memory.NewInMemoryStore(nil)
	a := New(testPersona(), client, mem)

	got, err := a.GenerateFromStrategy(context.Background(), "Inspirational-Story")
	if err != nil {
		t.Fatalf("GenerateFromStrategy() error = %v", err)
	}
	if got != "Tiny habits, big gardens." {
		t.Fatalf("GenerateFromStrategy() = %q", got)
	}
	prompt := client.gens[0].Prompt
	if !strings.Contains(prompt, "280 characters") || !strings.Contains(prompt, "uplifting story") {
		t.Fatalf("prompt missing instruction or budget: %s", prompt)
	}
	if client.gens[0].Parameters["temperature"] != 0.9 {
		t.Fatalf("strategy parameters = %v", client.gens[0].Parameters)
	}
	records := mem.All("clara_stone")
	if len(records) != 1 || records[0].Type() != memory.TypePost || records[0].Metadata["strategy"] != "Inspirational-Story" {
		t.Fatalf("post memory = %+v", records)
	}
}

func TestGenerateFromStrategyPlaceholder(t *testing.T) {
	t.Parallel()

	client := &stubLLMClient{err: llm.ErrUnavailable}
	mem := memory.NewInMemoryStore(nil)
	a := New(testPersona(), client, mem)
	got, err := a.GenerateFromStrategy(context.Background(), "Humorous-Meme")
	if err != nil {
		t.Fatalf("GenerateFromStrategy() error = %v", err)
	}
	if got != "[generation unavailable: Humorous-Meme]" {
		t.Fatalf("placeholder = %q", got)
	}
	if n, _ := mem.Count(context.Background(), "clara_stone"); n != 0 {
		t.Fatalf("placeholder should not be remembered")
	}
}

func TestRecordPostAndInteraction(t *testing.T) {
	t.Parallel()

	mem := memory.NewInMemoryStore(nil)
	a := New(testPersona(), nil, mem)
	if err := a.RecordPost(context.Background(), "hand written"); err != nil {
		t.Fatalf("RecordPost() error = %v", err)
	}
	if err := a.RecordInteraction(context.Background(), "Liked a post by Bo"); err != nil {
		t.Fatalf("RecordInteraction() error = %v", err)
	}
	records := mem.All("clara_stone")
	if len(records) != 2 || records[0].Type() != memory.TypeManualPost || records[1].Type() != memory.TypeInteraction {
		t.Fatalf("records = %+v", records)
	}
}

func TestReplyToCommentLeavesHistoryAlone(t *testing.T) {
	t.Parallel()

	client := &stubLLMClient{genReply: "Clara Stone: Thanks, I grow them myself!"}
	mem := memory.NewInMemoryStore(nil)
	a := New(testPersona(), client, mem)

	got, err := a.ReplyToComment(context.Background(), "Lovely tomatoes", "Ben")
	if err != nil {
		t.Fatalf("ReplyToComment() error = %v", err)
	}
	if got != "Thanks, I grow them myself!" {
		t.Fatalf("ReplyToComment() = %q", got)
	}
	if len(a.History()) != 0 {
		t.Fatalf("History() = %v, want empty", a.History())
	}
	if len(client.gens) != 1 || !strings.Contains(client.gens[0].Prompt, "Ben: Lovely tomatoes") {
		t.Fatalf("prompt = %+v", client.gens)
	}
	recs := mem.All("clara_stone")
	if len(recs) != 1 || recs[0].Type() != memory.TypeInteraction {
		t.Fatalf("memories = %+v", recs)
	}

	client.err = llm.ErrUnavailable
	if _, err := a.ReplyToComment(context.Background(), "again", "Ben"); !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("ReplyToComment() error = %v, want ErrUnavailable", err)
	}
}
