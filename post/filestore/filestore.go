// Package filestore keeps every post in a single JSON document. Each
// mutation is a read-modify-write under an exclusive file lock followed by an
// atomic rename, so concurrent writers (goroutines or processes) never lose
// updates.
package filestore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/quailyquaily/socialsim/internal/fsstore"
	"github.com/quailyquaily/socialsim/post"
)

const documentVersion = 1

type document struct {
	Version int         `json:"version"`
	Posts   []post.Post `json:"posts"`
}

type Store struct {
	path     string
	lockPath string
	now      func() time.Time
	mu       sync.Mutex
}

func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	lockPath, err := fsstore.LockPathFor(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, lockPath: lockPath, now: time.Now}, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) load() (document, error) {
	var doc document
	if _, err := fsstore.ReadJSON(s.path, &doc); err != nil {
		return document{}, err
	}
	return doc, nil
}

func (s *Store) update(ctx context.Context, fn func(doc *document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fsstore.MutateJSON(ctx, s.path, s.lockPath, fsstore.FileOptions{}, func(doc *document) error {
		doc.Version = documentVersion
		return fn(doc)
	})
}

func (s *Store) mutatePost(ctx context.Context, id string, fn func(p *post.Post) error) error {
	return s.update(ctx, func(doc *document) error {
		for i := range doc.Posts {
			if doc.Posts[i].ID == id {
				return fn(&doc.Posts[i])
			}
		}
		return fmt.Errorf("%w: post %s", post.ErrNotFound, id)
	})
}

func (s *Store) Get(ctx context.Context, id string) (post.Post, error) {
	if err := ctx.Err(); err != nil {
		return post.Post{}, err
	}
	doc, err := s.load()
	if err != nil {
		return post.Post{}, err
	}
	for _, p := range doc.Posts {
		if p.ID == id {
			return p, nil
		}
	}
	return post.Post{}, fmt.Errorf("%w: post %s", post.ErrNotFound, id)
}

func (s *Store) Create(ctx context.Context, p post.Post) (post.Post, error) {
	p, err := post.Prepare(post.Clone(p), s.now())
	if err != nil {
		return post.Post{}, err
	}
	err = s.update(ctx, func(doc *document) error {
		for _, existing := range doc.Posts {
			if existing.ID == p.ID {
				return fmt.Errorf("%w: post id %s", post.ErrDuplicate, p.ID)
			}
		}
		doc.Posts = append(doc.Posts, p)
		return nil
	})
	if err != nil {
		return post.Post{}, err
	}
	return p, nil
}

func (s *Store) IncrementLikes(ctx context.Context, id string, delta int) error {
	return s.mutatePost(ctx, id, func(p *post.Post) error { return post.AddLikes(p, delta) })
}

func (s *Store) AppendComment(ctx context.Context, postID string, c post.Comment, opts post.AppendOptions) (post.Comment, error) {
	var out post.Comment
	err := s.mutatePost(ctx, postID, func(p *post.Post) error {
		var err error
		out, err = post.AddComment(p, c, opts, s.now())
		return err
	})
	return out, err
}

func (s *Store) AppendReply(ctx context.Context, postID string, commentID string, r post.Reply, opts post.AppendOptions) error {
	return s.mutatePost(ctx, postID, func(p *post.Post) error {
		return post.AddReply(p, commentID, r, opts, s.now())
	})
}

func (s *Store) DeleteComment(ctx context.Context, postID string, index int, ifVersion int64) error {
	return s.mutatePost(ctx, postID, func(p *post.Post) error {
		return post.RemoveComment(p, index, ifVersion)
	})
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.update(ctx, func(doc *document) error {
		for i := range doc.Posts {
			if doc.Posts[i].ID == id {
				doc.Posts = append(doc.Posts[:i:i], doc.Posts[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: post %s", post.ErrNotFound, id)
	})
}

func (s *Store) List(ctx context.Context, opts post.ListOptions) ([]post.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	return post.Sort(doc.Posts, opts), nil
}

var _ post.Store = (*Store)(nil)
