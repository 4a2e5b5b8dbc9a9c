package post

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// The helpers below hold the mutation rules shared by every Store
// implementation. Each one edits p in place and bumps its Version.

func Prepare(p Post, now time.Time) (Post, error) {
	p.Author = strings.TrimSpace(p.Author)
	p.Text = strings.TrimSpace(p.Text)
	if p.Author == "" {
		return Post{}, fmt.Errorf("%w: author is required", ErrInvalid)
	}
	if p.Text == "" {
		return Post{}, fmt.Errorf("%w: text is required", ErrInvalid)
	}
	if p.Likes < 0 {
		return Post{}, fmt.Errorf("%w: negative likes", ErrInvalid)
	}
	if strings.TrimSpace(p.ID) == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.CreatedAt = p.CreatedAt.UTC()
	for i := range p.Comments {
		if p.Comments[i].ID == "" {
			p.Comments[i].ID = uuid.NewString()
		}
		if p.Comments[i].CreatedAt.IsZero() {
			p.Comments[i].CreatedAt = p.CreatedAt
		}
	}
	p.Version = 1
	return p, nil
}

func AddLikes(p *Post, delta int) error {
	if delta <= 0 {
		return fmt.Errorf("%w: like delta must be positive, got %d", ErrInvalid, delta)
	}
	p.Likes += delta
	p.Version++
	return nil
}

func AddComment(p *Post, c Comment, opts AppendOptions, now time.Time) (Comment, error) {
	c.Author = strings.TrimSpace(c.Author)
	if c.Author == "" {
		return Comment{}, fmt.Errorf("%w: comment author is required", ErrInvalid)
	}
	if opts.UniqueAuthor && HasCommentBy(*p, c.Author) {
		return Comment{}, fmt.Errorf("%w: %s already commented on %s", ErrDuplicate, c.Author, p.ID)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.CreatedAt = c.CreatedAt.UTC()
	if c.Replies == nil {
		c.Replies = []Reply{}
	}
	p.Comments = append(p.Comments, c)
	p.Version++
	return c, nil
}

func AddReply(p *Post, commentID string, r Reply, opts AppendOptions, now time.Time) error {
	idx := CommentIndex(*p, commentID)
	if idx < 0 {
		return fmt.Errorf("%w: comment %s on post %s", ErrNotFound, commentID, p.ID)
	}
	r.Author = strings.TrimSpace(r.Author)
	if r.Author == "" {
		return fmt.Errorf("%w: reply author is required", ErrInvalid)
	}
	c := &p.Comments[idx]
	if opts.UniqueAuthor && HasReplyBy(*c, r.Author) {
		return fmt.Errorf("%w: %s already replied to comment %s", ErrDuplicate, r.Author, commentID)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.CreatedAt = r.CreatedAt.UTC()
	c.Replies = append(c.Replies, r)
	p.Version++
	return nil
}

func RemoveComment(p *Post, index int, ifVersion int64) error {
	if ifVersion > 0 && ifVersion != p.Version {
		return fmt.Errorf("%w: post %s is at version %d, not %d", ErrConflict, p.ID, p.Version, ifVersion)
	}
	if index < 0 || index >= len(p.Comments) {
		return fmt.Errorf("%w: comment index %d on post %s", ErrNotFound, index, p.ID)
	}
	p.Comments = append(p.Comments[:index:index], p.Comments[index+1:]...)
	p.Version++
	return nil
}

func HasCommentBy(p Post, author string) bool {
	for _, c := range p.Comments {
		if strings.EqualFold(c.Author, author) {
			return true
		}
	}
	return false
}

func HasReplyBy(c Comment, author string) bool {
	for _, r := range c.Replies {
		if strings.EqualFold(r.Author, author) {
			return true
		}
	}
	return false
}

func CommentIndex(p Post, commentID string) int {
	for i, c := range p.Comments {
		if c.ID == commentID {
			return i
		}
	}
	return -1
}

// Clone deep-copies comments and replies so callers cannot alias store state.
func Clone(p Post) Post {
	if p.Comments == nil {
		return p
	}
	comments := make([]Comment, len(p.Comments))
	for i, c := range p.Comments {
		c.Replies = append([]Reply(nil), c.Replies...)
		comments[i] = c
	}
	p.Comments = comments
	return p
}

// Sort orders posts by creation time. Equal timestamps keep insertion order
// for oldest-first and reverse it for newest-first.
func Sort(posts []Post, opts ListOptions) []Post {
	newest := opts.Order != OrderOldest
	if newest {
		for i, j := 0, len(posts)-1; i < j; i, j = i+1, j-1 {
			posts[i], posts[j] = posts[j], posts[i]
		}
	}
	sort.SliceStable(posts, func(i, j int) bool {
		if newest {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].CreatedAt.Before(posts[j].CreatedAt)
	})
	if opts.Limit > 0 && len(posts) > opts.Limit {
		posts = posts[:opts.Limit]
	}
	return posts
}
