package interact

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quailyquaily/socialsim/agent"
	"github.com/quailyquaily/socialsim/llm"
	"github.com/quailyquaily/socialsim/persona"
	"github.com/quailyquaily/socialsim/post"
)

type stubLLMClient struct {
	mu       sync.Mutex
	decision string
	replyYes bool
	err      error
	chats    []llm.Request
	gens     []llm.GenerateRequest
}

func (s *stubLLMClient) Chat(_ context.Context, req llm.Request) (llm.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = append(s.chats, req)
	if s.err != nil {
		return llm.Result{}, s.err
	}
	last := req.Messages[len(req.Messages)-1].Content
	return llm.Result{Text: "re: " + last}, nil
}

func (s *stubLLMClient) Generate(_ context.Context, req llm.GenerateRequest) (llm.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens = append(s.gens, req)
	if s.err != nil {
		return llm.Result{}, s.err
	}
	switch {
	case strings.Contains(req.Prompt, "Decide how you want to interact"):
		return llm.Result{Text: s.decision}, nil
	case strings.Contains(req.Prompt, "Do you want to reply to this comment"):
		if s.replyYes {
			return llm.Result{Text: "YES | worth answering"}, nil
		}
		return llm.Result{Text: "NO | not interesting"}, nil
	default:
		return llm.Result{Text: "Thanks for stopping by!"}, nil
	}
}

func (s *stubLLMClient) decisionCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, g := range s.gens {
		if strings.Contains(g.Prompt, "Decide how you want to interact") {
			n++
		}
	}
	return n
}

func testRoster(t *testing.T, names ...string) *persona.Roster {
	t.Helper()
	ps := make([]persona.Persona, len(names))
	for i, n := range names {
		ps[i] = persona.New(n, "", persona.LegacyProfile("You are "+n+"."))
	}
	r, err := persona.NewRoster(ps)
	if err != nil {
		t.Fatalf("NewRoster() error = %v", err)
	}
	return r
}

func newTestOrchestrator(t *testing.T, client *stubLLMClient, names ...string) (*Orchestrator, *post.MemoryStore) {
	t.Helper()
	store := post.NewMemoryStore()
	factory := func(p persona.Persona) *agent.Agent {
		return agent.New(p, client, nil, agent.WithRand(rand.New(rand.NewPCG(1, 2))))
	}
	return New(store, testRoster(t, names...), factory, WithRand(rand.New(rand.NewPCG(3, 4)))), store
}

func mustCreate(t *testing.T, s post.Store, p post.Post) post.Post {
	t.Helper()
	got, err := s.Create(context.Background(), p)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return got
}

func TestRunAllBotsSkipsOwnPost(t *testing.T) {
	t.Parallel()

	client := &stubLLMClient{decision: "LIKE | nice"}
	o, store := newTestOrchestrator(t, client, "Ann", "Ben", "Cleo")
	p := mustCreate(t, store, post.Post{Author: "Ann", Text: "First harvest of the year"})

	sum, err := o.RunAllBots(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("RunAllBots() error = %v", err)
	}
	if sum.Total() != 3 || sum.Ignored != 1 || sum.Likes != 2 {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.Outcomes[0].Persona != "Ann" || sum.Outcomes[0].Reason != "own post" {
		t.Fatalf("first outcome = %+v", sum.Outcomes[0])
	}
	if got := client.decisionCalls(); got != 2 {
		t.Fatalf("decision calls = %d, want 2", got)
	}
	got, _ := store.Get(context.Background(), p.ID)
	if got.Likes != 2 {
		t.Fatalf("likes = %d, want 2", got.Likes)
	}
}

func TestRunPairOwnPostHasNoEffects(t *testing.T) {
	t.Parallel()

	client := &stubLLMClient{decision: "BOTH | love it"}
	o, store := newTestOrchestrator(t, client, "Ann")
	p := mustCreate(t, store, post.Post{Author: "ann", Text: "hello"})

	out, err := o.RunPair(context.Background(), p, o.roster.At(0))
	if err != nil {
		t.Fatalf("RunPair() error = %v", err)
	}
	if out.Type != agent.ActionIgnore {
		t.Fatalf("Type = %q, want IGNORE", out.Type)
	}
	got, _ := store.Get(context.Background(), p.ID)
	if got.Version != p.Version || len(client.gens)+len(client.chats) != 0 {
		t.Fatalf("own post mutated or generated: version %d, calls %d", got.Version, len(client.gens)+len(client.chats))
	}
}

func TestBothAppliesEffectsOnceAndNeverDuplicatesComments(t *testing.T) {
	t.Parallel()

	client := &stubLLMClient{decision: "BOTH | fun"}
	o, store := newTestOrchestrator(t, client, "Ann", "Ben", "Cleo")
	p := mustCreate(t, store, post.Post{Author: "Ann", Text: "Tomatoes!"})
	ctx := context.Background()

	first, err := o.RunAllBots(ctx, p.ID)
	if err != nil {
		t.Fatalf("RunAllBots() error = %v", err)
	}
	if first.Both != 2 {
		t.Fatalf("Both = %d, want 2", first.Both)
	}
	got, _ := store.Get(ctx, p.ID)
	if got.Likes != 2 || len(got.Comments) != 2 {
		t.Fatalf("after first pass likes=%d comments=%d", got.Likes, len(got.Comments))
	}

	second, err := o.RunAllBots(ctx, p.ID)
	if err != nil {
		t.Fatalf("RunAllBots() error = %v", err)
	}
	got, _ = store.Get(ctx, p.ID)
	if len(got.Comments) != 2 {
		t.Fatalf("comments = %d after second pass, want 2", len(got.Comments))
	}
	if second.Both != 2 || second.CommentsSkipped != 2 {
		t.Fatalf("second pass both=%d skipped=%d, want 2/2", second.Both, second.CommentsSkipped)
	}
	if first.CommentsSkipped != 0 {
		t.Fatalf("first pass skipped = %d, want 0", first.CommentsSkipped)
	}
	for _, out := range second.Outcomes {
		if out.Type == agent.ActionBoth && !out.CommentSkipped {
			t.Fatalf("second pass outcome %+v should skip the comment", out)
		}
	}
	authors := map[string]int{}
	for _, c := range got.Comments {
		authors[c.Author]++
	}
	if authors["Ben"] != 1 || authors["Cleo"] != 1 {
		t.Fatalf("comment authors = %v", authors)
	}
}

func TestUnavailableGenerationStillCompletesPass(t *testing.T) {
	t.Parallel()

	client := &stubLLMClient{err: llm.ErrUnavailable}
	o, store := newTestOrchestrator(t, client, "Ann", "Ben", "Cleo")
	p := mustCreate(t, store, post.Post{Author: "Ann", Text: "hello"})

	sum, err := o.RunAllBots(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("RunAllBots() error = %v", err)
	}
	if sum.Total() != 3 || sum.Ignored != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	got, _ := store.Get(context.Background(), p.ID)
	if len(got.Comments) != 0 {
		t.Fatalf("comments = %d, want 0", len(got.Comments))
	}
	for _, out := range sum.Outcomes[1:] {
		if out.Type == agent.ActionIgnore {
			t.Fatalf("fallback decision = IGNORE, want an active action")
		}
	}
}

func TestRunGlobalIsPostMajorNewestFirst(t *testing.T) {
	t.Parallel()

	client := &stubLLMClient{decision: "IGNORE | meh"}
	o, store := newTestOrchestrator(t, client, "Ann", "Ben")
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	older := mustCreate(t, store, post.Post{Author: "Ann", Text: "old", CreatedAt: base})
	newer := mustCreate(t, store, post.Post{Author: "Ben", Text: "new", CreatedAt: base.Add(time.Hour)})

	sum, err := o.RunGlobal(context.Background(), 0)
	if err != nil {
		t.Fatalf("RunGlobal() error = %v", err)
	}
	if sum.Total() != 4 {
		t.Fatalf("Total() = %d, want 4", sum.Total())
	}
	want := []string{newer.ID, newer.ID, older.ID, older.ID}
	for i, out := range sum.Outcomes {
		if out.PostID != want[i] {
			t.Fatalf("outcome %d post = %s, want %s", i, out.PostID, want[i])
		}
	}

	limited, err := o.RunGlobal(context.Background(), 1)
	if err != nil || limited.Total() != 2 {
		t.Fatalf("RunGlobal(limit 1) = %d, %v", limited.Total(), err)
	}
}

func TestRunRandomAndErrors(t *testing.T) {
	t.Parallel()

	client := &stubLLMClient{decision: "LIKE | ok"}
	o, store := newTestOrchestrator(t, client, "Ann", "Ben", "Cleo")
	p := mustCreate(t, store, post.Post{Author: "Dora", Text: "hi"})
	ctx := context.Background()

	sum, err := o.RunRandom(ctx, p.ID)
	if err != nil {
		t.Fatalf("RunRandom() error = %v", err)
	}
	if sum.Total() != 1 || sum.Likes != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if _, err := o.RunRandom(ctx, "missing"); !errors.Is(err, post.ErrNotFound) {
		t.Fatalf("RunRandom(missing) error = %v, want ErrNotFound", err)
	}

	empty := New(store, testRoster(t), nil)
	if _, err := empty.RunAllBots(ctx, p.ID); !errors.Is(err, ErrEmptyRoster) {
		t.Fatalf("RunAllBots(empty roster) error = %v", err)
	}
}

func TestAgentsAreReused(t *testing.T) {
	t.Parallel()

	built := 0
	factory := func(p persona.Persona) *agent.Agent {
		built++
		return agent.New(p, nil, nil)
	}
	o := New(post.NewMemoryStore(), testRoster(t, "Ann"), factory)
	who := o.roster.At(0)
	if o.Agent(who) != o.Agent(who) || built != 1 {
		t.Fatalf("factory called %d times, want 1", built)
	}
}

func TestOwnerRepliesIsIdempotent(t *testing.T) {
	t.Parallel()

	client := &stubLLMClient{replyYes: true}
	o, store := newTestOrchestrator(t, client, "Ann", "Ben", "Cleo")
	ctx := context.Background()
	p := mustCreate(t, store, post.Post{Author: "Ann", Text: "Soup recipe"})
	for _, c := range []post.Comment{
		{Author: "Ben", Text: "Yum"},
		{Author: "Ann", Text: "Thanks all"},
		{Author: "Cleo", Text: "Needs salt"},
	} {
		if _, err := store.AppendComment(ctx, p.ID, c, post.AppendOptions{}); err != nil {
			t.Fatalf("AppendComment() error = %v", err)
		}
	}

	first, err := o.OwnerReplies(ctx, p.ID)
	if err != nil {
		t.Fatalf("OwnerReplies() error = %v", err)
	}
	if first.Replied != 2 || first.Skipped != 1 {
		t.Fatalf("first run = %+v", first)
	}
	second, err := o.OwnerReplies(ctx, p.ID)
	if err != nil {
		t.Fatalf("OwnerReplies() error = %v", err)
	}
	if second.Replied != 0 || second.Skipped != 3 {
		t.Fatalf("second run = %+v", second)
	}
	got, _ := store.Get(ctx, p.ID)
	for _, c := range got.Comments {
		want := 1
		if c.Author == "Ann" {
			want = 0
		}
		if len(c.Replies) != want {
			t.Fatalf("comment by %s has %d replies, want %d", c.Author, len(c.Replies), want)
		}
	}
}

func TestOwnerRepliesDeclined(t *testing.T) {
	t.Parallel()

	client := &stubLLMClient{replyYes: false}
	o, store := newTestOrchestrator(t, client, "Ann", "Ben")
	ctx := context.Background()
	p := mustCreate(t, store, post.Post{Author: "Ann", Text: "Soup"})
	if _, err := store.AppendComment(ctx, p.ID, post.Comment{Author: "Ben", Text: "meh"}, post.AppendOptions{}); err != nil {
		t.Fatalf("AppendComment() error = %v", err)
	}
	sum, err := o.OwnerReplies(ctx, p.ID)
	if err != nil {
		t.Fatalf("OwnerReplies() error = %v", err)
	}
	if sum.Declined != 1 || sum.Replied != 0 {
		t.Fatalf("summary = %+v", sum)
	}

	orphan := mustCreate(t, store, post.Post{Author: "Zed", Text: "who am I"})
	if _, err := o.OwnerReplies(ctx, orphan.ID); !errors.Is(err, persona.ErrUnknownPersona) {
		t.Fatalf("OwnerReplies(unknown owner) error = %v", err)
	}
}

func TestConverseRoundRobin(t *testing.T) {
	t.Parallel()

	client := &stubLLMClient{}
	o, _ := newTestOrchestrator(t, client, "Ann", "Ben", "Cleo")

	turns, err := o.Converse(context.Background(), 4, "")
	if err != nil {
		t.Fatalf("Converse() error = %v", err)
	}
	names := []string{"Ann", "Ben", "Cleo", "Ann"}
	for i, turn := range turns {
		if turn.Persona != names[i] || turn.Round != i+1 {
			t.Fatalf("turn %d = %+v", i, turn)
		}
	}
	if turns[0].Reply != "re: "+DefaultOpening {
		t.Fatalf("first reply = %q", turns[0].Reply)
	}
	if turns[1].Reply != "re: "+turns[0].Reply {
		t.Fatalf("second reply = %q, want it to answer the first", turns[1].Reply)
	}
}
