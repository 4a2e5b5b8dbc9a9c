// Package post is the document store for posts, comments and replies.
package post

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("post: not found")
	ErrConflict  = errors.New("post: version conflict")
	ErrDuplicate = errors.New("post: duplicate")
	ErrInvalid   = errors.New("post: invalid")
)

type Post struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Likes     int       `json:"likes"`
	Comments  []Comment `json:"comments"`
	CreatedAt time.Time `json:"created_at"`
	// Version increases with every mutation and serves as the optimistic
	// concurrency token.
	Version int64 `json:"version"`
}

type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Replies   []Reply   `json:"replies"`
	CreatedAt time.Time `json:"created_at"`
}

type Reply struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// AppendOptions guards automated writes. With UniqueAuthor a second comment
// (or reply) by the same author is refused with ErrDuplicate.
type AppendOptions struct {
	UniqueAuthor bool
}

type Order string

const (
	OrderNewest Order = "newest"
	OrderOldest Order = "oldest"
)

type ListOptions struct {
	Order Order
	// Limit <= 0 returns every post.
	Limit int
}

type Store interface {
	Get(ctx context.Context, id string) (Post, error)
	Create(ctx context.Context, p Post) (Post, error)
	IncrementLikes(ctx context.Context, id string, delta int) error
	AppendComment(ctx context.Context, postID string, c Comment, opts AppendOptions) (Comment, error)
	AppendReply(ctx context.Context, postID string, commentID string, r Reply, opts AppendOptions) error
	// DeleteComment removes the comment at index. A positive ifVersion must
	// match the post's current Version.
	DeleteComment(ctx context.Context, postID string, index int, ifVersion int64) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, opts ListOptions) ([]Post, error)
}
