package post

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps posts in process. All mutations run under one mutex.
type MemoryStore struct {
	mu    sync.Mutex
	now   func() time.Time
	order []string
	posts map[string]*Post
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now, posts: map[string]*Post{}}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Post, error) {
	if err := ctx.Err(); err != nil {
		return Post{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return Post{}, fmt.Errorf("%w: post %s", ErrNotFound, id)
	}
	return Clone(*p), nil
}

func (s *MemoryStore) Create(ctx context.Context, p Post) (Post, error) {
	if err := ctx.Err(); err != nil {
		return Post{}, err
	}
	p, err := Prepare(Clone(p), s.now())
	if err != nil {
		return Post{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.posts[p.ID]; exists {
		return Post{}, fmt.Errorf("%w: post id %s", ErrDuplicate, p.ID)
	}
	s.posts[p.ID] = &p
	s.order = append(s.order, p.ID)
	return Clone(p), nil
}

func (s *MemoryStore) mutate(ctx context.Context, id string, fn func(p *Post) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return fmt.Errorf("%w: post %s", ErrNotFound, id)
	}
	next := Clone(*p)
	if err := fn(&next); err != nil {
		return err
	}
	*p = next
	return nil
}

func (s *MemoryStore) IncrementLikes(ctx context.Context, id string, delta int) error {
	return s.mutate(ctx, id, func(p *Post) error { return AddLikes(p, delta) })
}

func (s *MemoryStore) AppendComment(ctx context.Context, postID string, c Comment, opts AppendOptions) (Comment, error) {
	var out Comment
	err := s.mutate(ctx, postID, func(p *Post) error {
		var err error
		out, err = AddComment(p, c, opts, s.now())
		return err
	})
	return out, err
}

func (s *MemoryStore) AppendReply(ctx context.Context, postID string, commentID string, r Reply, opts AppendOptions) error {
	return s.mutate(ctx, postID, func(p *Post) error { return AddReply(p, commentID, r, opts, s.now()) })
}

func (s *MemoryStore) DeleteComment(ctx context.Context, postID string, index int, ifVersion int64) error {
	return s.mutate(ctx, postID, func(p *Post) error { return RemoveComment(p, index, ifVersion) })
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return fmt.Errorf("%w: post %s", ErrNotFound, id)
	}
	delete(s.posts, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) List(ctx context.Context, opts ListOptions) ([]Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	out := make([]Post, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, Clone(*s.posts[id]))
	}
	s.mu.Unlock()
	return Sort(out, opts), nil
}

var _ Store = (*MemoryStore)(nil)
