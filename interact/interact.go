// Package interact drives persona decisions over stored posts. Each
// (post, persona) pair runs a small state machine whose store effects go
// through atomic store primitives, so a pair never adds a second comment.
package interact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/quailyquaily/socialsim/agent"
	"github.com/quailyquaily/socialsim/internal/logutil"
	"github.com/quailyquaily/socialsim/persona"
	"github.com/quailyquaily/socialsim/post"
)

var ErrEmptyRoster = errors.New("interact: roster is empty")

// AgentFactory builds the agent for a persona. It is called at most once per
// persona for the lifetime of an Orchestrator.
type AgentFactory func(p persona.Persona) *agent.Agent

type Option func(*Orchestrator)

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

func WithRand(r *rand.Rand) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.rng = r
		}
	}
}

type Orchestrator struct {
	store   post.Store
	roster  *persona.Roster
	factory AgentFactory
	log     *slog.Logger

	mu     sync.Mutex
	rng    *rand.Rand
	agents map[string]*agent.Agent
}

func New(store post.Store, roster *persona.Roster, factory AgentFactory, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:   store,
		roster:  roster,
		factory: factory,
		log:     logutil.Discard(),
		agents:  map[string]*agent.Agent{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.rng == nil {
		seed := uint64(time.Now().UnixNano())
		o.rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	if o.factory == nil {
		o.factory = func(p persona.Persona) *agent.Agent {
			return agent.New(p, nil, nil, agent.WithLogger(o.log))
		}
	}
	return o
}

// Agent returns the cached agent for p, creating it on first use.
func (o *Orchestrator) Agent(p persona.Persona) *agent.Agent {
	key := persona.CollectionKey(p.Name)
	o.mu.Lock()
	defer o.mu.Unlock()
	if a, ok := o.agents[key]; ok {
		return a
	}
	a := o.factory(p)
	o.agents[key] = a
	return a
}

// Outcome is the result of one (post, persona) pair.
type Outcome struct {
	PostID  string
	Type    agent.Action
	Persona string
	Reason  string
	Message string

	// CommentID is set when a comment was appended.
	CommentID string

	// CommentSkipped is true when a COMMENT or BOTH decision did not produce a
	// comment because the persona already commented or no reply text could
	// be generated.
	CommentSkipped bool
}

// Summary tallies decisions, not applied effects. CommentsSkipped counts the
// COMMENT and BOTH decisions that left no comment behind.
type Summary struct {
	Outcomes        []Outcome
	Likes           int
	Comments        int
	Both            int
	Ignored         int
	CommentsSkipped int
}

func (s *Summary) add(out Outcome) {
	s.Outcomes = append(s.Outcomes, out)
	if out.CommentSkipped {
		s.CommentsSkipped++
	}
	switch out.Type {
	case agent.ActionLike:
		s.Likes++
	case agent.ActionComment:
		s.Comments++
	case agent.ActionBoth:
		s.Both++
	default:
		s.Ignored++
	}
}

// Total is the number of pairs that ran.
func (s Summary) Total() int {
	return s.Likes + s.Comments + s.Both + s.Ignored
}

// RunPair runs the state machine for one persona against one post. Only
// store failures are returned; generation problems resolve to fallbacks.
func (o *Orchestrator) RunPair(ctx context.Context, p post.Post, who persona.Persona) (Outcome, error) {
	out := Outcome{PostID: p.ID, Persona: who.Name}
	if strings.EqualFold(strings.TrimSpace(p.Author), strings.TrimSpace(who.Name)) {
		out.Type = agent.ActionIgnore
		out.Reason = "own post"
		out.Message = fmt.Sprintf("%s skipped their own post.", who.Name)
		o.log.Debug("interaction_own_post", "post_id", p.ID, "persona", who.Name)
		return out, nil
	}

	ag := o.Agent(who)
	d, err := ag.DecideInteraction(ctx, p.Text, p.Author)
	if err != nil {
		return out, err
	}
	out.Type = d.Action
	out.Reason = d.Reason

	if d.Action.Likes() {
		if err := o.store.IncrementLikes(ctx, p.ID, 1); err != nil {
			return out, fmt.Errorf("like post %s: %w", p.ID, err)
		}
	}
	var commentText string
	if d.Action.Comments() {
		commentText, err = o.comment(ctx, ag, p, &out)
		if err != nil {
			return out, err
		}
	}

	out.Message = describe(who.Name, p.Author, out, commentText)
	if d.Action != agent.ActionIgnore {
		if err := ag.RecordInteraction(ctx, out.Message); err != nil {
			o.log.Warn("interaction_memory_failed", "persona", who.Name, "error", err.Error())
		}
	}
	o.log.Info("interaction_applied",
		"post_id", p.ID,
		"persona", who.Name,
		"action", out.Type,
		"comment_skipped", out.CommentSkipped,
	)
	return out, nil
}

func (o *Orchestrator) comment(ctx context.Context, ag *agent.Agent, p post.Post, out *Outcome) (string, error) {
	if post.HasCommentBy(p, ag.Name()) {
		out.CommentSkipped = true
		return "", nil
	}
	text, err := ag.Reply(ctx, p.Text)
	if err != nil || strings.TrimSpace(text) == "" {
		o.log.Warn("comment_unavailable", "post_id", p.ID, "persona", ag.Name())
		out.CommentSkipped = true
		return "", nil
	}
	c, err := o.store.AppendComment(ctx, p.ID, post.Comment{Author: ag.Name(), Text: text}, post.AppendOptions{UniqueAuthor: true})
	if errors.Is(err, post.ErrDuplicate) {
		out.CommentSkipped = true
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("comment on post %s: %w", p.ID, err)
	}
	out.CommentID = c.ID
	return text, nil
}

func describe(name, author string, out Outcome, comment string) string {
	commented := !out.CommentSkipped && out.CommentID != ""
	switch {
	case out.Type == agent.ActionBoth && commented:
		return fmt.Sprintf("%s liked and commented on %s's post: %s", name, author, comment)
	case out.Type.Likes():
		return fmt.Sprintf("%s liked %s's post.", name, author)
	case out.Type == agent.ActionComment && commented:
		return fmt.Sprintf("%s commented on %s's post: %s", name, author, comment)
	case out.Type == agent.ActionComment:
		return fmt.Sprintf("%s wanted to comment on %s's post but did not.", name, author)
	default:
		return fmt.Sprintf("%s ignored %s's post.", name, author)
	}
}

// RunRandom runs one uniformly chosen persona against the post.
func (o *Orchestrator) RunRandom(ctx context.Context, postID string) (Summary, error) {
	if o.roster.Len() == 0 {
		return Summary{}, ErrEmptyRoster
	}
	p, err := o.store.Get(ctx, postID)
	if err != nil {
		return Summary{}, err
	}
	o.mu.Lock()
	i := o.rng.IntN(o.roster.Len())
	o.mu.Unlock()

	var sum Summary
	out, err := o.RunPair(ctx, p, o.roster.At(i))
	if err != nil {
		return sum, err
	}
	sum.add(out)
	return sum, nil
}

// RunAllBots runs every persona in roster order against one post.
func (o *Orchestrator) RunAllBots(ctx context.Context, postID string) (Summary, error) {
	if o.roster.Len() == 0 {
		return Summary{}, ErrEmptyRoster
	}
	var sum Summary
	if err := o.runPost(ctx, postID, &sum); err != nil {
		return sum, err
	}
	return sum, nil
}

// RunGlobal runs every (post, persona) pair, post-major, posts newest first.
// The first store error stops the pass; earlier effects stay committed.
func (o *Orchestrator) RunGlobal(ctx context.Context, limit int) (Summary, error) {
	if o.roster.Len() == 0 {
		return Summary{}, ErrEmptyRoster
	}
	posts, err := o.store.List(ctx, post.ListOptions{Order: post.OrderNewest, Limit: limit})
	if err != nil {
		return Summary{}, err
	}
	var sum Summary
	for _, p := range posts {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if err := o.runPost(ctx, p.ID, &sum); err != nil {
			o.log.Warn("global_pass_aborted", "post_id", p.ID, "completed", sum.Total(), "error", err.Error())
			return sum, err
		}
	}
	o.log.Info("global_pass_done", "posts", len(posts), "pairs", sum.Total())
	return sum, nil
}

// runPost reloads the post before each persona so later personas see the
// comments earlier ones added.
func (o *Orchestrator) runPost(ctx context.Context, postID string, sum *Summary) error {
	for _, who := range o.roster.All() {
		p, err := o.store.Get(ctx, postID)
		if err != nil {
			return err
		}
		out, err := o.RunPair(ctx, p, who)
		if err != nil {
			return err
		}
		sum.add(out)
	}
	return nil
}
