// Package storetest is the behaviour every post.Store implementation must
// share. Implementations call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/quailyquaily/socialsim/post"
)

func Run(t *testing.T, newStore func(t *testing.T) post.Store) {
	t.Helper()
	cases := []struct {
		name string
		fn   func(t *testing.T, s post.Store)
	}{
		{"CreateAssignsIDAndVersion", testCreate},
		{"GetMissing", testGetMissing},
		{"IncrementLikes", testIncrementLikes},
		{"AppendCommentUniqueAuthor", testAppendCommentUniqueAuthor},
		{"AppendReply", testAppendReply},
		{"DeleteCommentVersionToken", testDeleteComment},
		{"DeletePost", testDeletePost},
		{"ListOrder", testListOrder},
		{"ConcurrentUniqueComments", testConcurrentUniqueComments},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t))
		})
	}
}

func mustCreate(t *testing.T, s post.Store, p post.Post) post.Post {
	t.Helper()
	created, err := s.Create(context.Background(), p)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return created
}

func testCreate(t *testing.T, s post.Store) {
	ctx := context.Background()
	p := mustCreate(t, s, post.Post{Author: "Ann", Text: "hello"})
	if p.ID == "" || p.CreatedAt.IsZero() || p.Version != 1 {
		t.Fatalf("Create() = %+v", p)
	}
	got, err := s.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Author != "Ann" || got.Text != "hello" || got.Likes != 0 || len(got.Comments) != 0 {
		t.Fatalf("Get() = %+v", got)
	}
	if _, err := s.Create(ctx, post.Post{Author: "", Text: "x"}); !errors.Is(err, post.ErrInvalid) {
		t.Fatalf("Create(no author) error = %v", err)
	}
}

func testGetMissing(t *testing.T, s post.Store) {
	ctx := context.Background()
	if _, err := s.Get(ctx, "nope"); !errors.Is(err, post.ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
	if err := s.IncrementLikes(ctx, "nope", 1); !errors.Is(err, post.ErrNotFound) {
		t.Fatalf("IncrementLikes() error = %v, want ErrNotFound", err)
	}
	if _, err := s.AppendComment(ctx, "nope", post.Comment{Author: "A", Text: "x"}, post.AppendOptions{}); !errors.Is(err, post.ErrNotFound) {
		t.Fatalf("AppendComment() error = %v, want ErrNotFound", err)
	}
}

func testIncrementLikes(t *testing.T, s post.Store) {
	ctx := context.Background()
	p := mustCreate(t, s, post.Post{Author: "Ann", Text: "hello"})
	for i := 0; i < 3; i++ {
		if err := s.IncrementLikes(ctx, p.ID, 1); err != nil {
			t.Fatalf("IncrementLikes() error = %v", err)
		}
	}
	if err := s.IncrementLikes(ctx, p.ID, 0); !errors.Is(err, post.ErrInvalid) {
		t.Fatalf("IncrementLikes(0) error = %v", err)
	}
	got, _ := s.Get(ctx, p.ID)
	if got.Likes != 3 || got.Version != 4 {
		t.Fatalf("likes = %d version = %d, want 3 and 4", got.Likes, got.Version)
	}
}

func testAppendCommentUniqueAuthor(t *testing.T, s post.Store) {
	ctx := context.Background()
	p := mustCreate(t, s, post.Post{Author: "Ann", Text: "hello"})
	c, err := s.AppendComment(ctx, p.ID, post.Comment{Author: "Ben", Text: "hi"}, post.AppendOptions{UniqueAuthor: true})
	if err != nil {
		t.Fatalf("AppendComment() error = %v", err)
	}
	if c.ID == "" || c.Replies == nil {
		t.Fatalf("AppendComment() = %+v", c)
	}
	_, err = s.AppendComment(ctx, p.ID, post.Comment{Author: "ben", Text: "again"}, post.AppendOptions{UniqueAuthor: true})
	if !errors.Is(err, post.ErrDuplicate) {
		t.Fatalf("second AppendComment() error = %v, want ErrDuplicate", err)
	}
	if _, err := s.AppendComment(ctx, p.ID, post.Comment{Author: "Ben", Text: "manual"}, post.AppendOptions{}); err != nil {
		t.Fatalf("unguarded AppendComment() error = %v", err)
	}
	got, _ := s.Get(ctx, p.ID)
	if len(got.Comments) != 2 || got.Comments[0].Text != "hi" || got.Comments[1].Text != "manual" {
		t.Fatalf("comments = %+v", got.Comments)
	}
}

func testAppendReply(t *testing.T, s post.Store) {
	ctx := context.Background()
	p := mustCreate(t, s, post.Post{Author: "Ann", Text: "hello"})
	c, err := s.AppendComment(ctx, p.ID, post.Comment{Author: "Ben", Text: "hi"}, post.AppendOptions{})
	if err != nil {
		t.Fatalf("AppendComment() error = %v", err)
	}
	guard := post.AppendOptions{UniqueAuthor: true}
	if err := s.AppendReply(ctx, p.ID, c.ID, post.Reply{Author: "Ann", Text: "thanks"}, guard); err != nil {
		t.Fatalf("AppendReply() error = %v", err)
	}
	if err := s.AppendReply(ctx, p.ID, c.ID, post.Reply{Author: "Ann", Text: "again"}, guard); !errors.Is(err, post.ErrDuplicate) {
		t.Fatalf("second AppendReply() error = %v, want ErrDuplicate", err)
	}
	if err := s.AppendReply(ctx, p.ID, "missing", post.Reply{Author: "Ann", Text: "x"}, guard); !errors.Is(err, post.ErrNotFound) {
		t.Fatalf("AppendReply(missing comment) error = %v, want ErrNotFound", err)
	}
	got, _ := s.Get(ctx, p.ID)
	if replies := got.Comments[0].Replies; len(replies) != 1 || replies[0].Text != "thanks" || replies[0].CreatedAt.IsZero() {
		t.Fatalf("replies = %+v", replies)
	}
}

func testDeleteComment(t *testing.T, s post.Store) {
	ctx := context.Background()
	p := mustCreate(t, s, post.Post{Author: "Ann", Text: "hello"})
	for _, author := range []string{"Ben", "Cat"} {
		if _, err := s.AppendComment(ctx, p.ID, post.Comment{Author: author, Text: "hi"}, post.AppendOptions{}); err != nil {
			t.Fatalf("AppendComment() error = %v", err)
		}
	}
	current, _ := s.Get(ctx, p.ID)
	if err := s.DeleteComment(ctx, p.ID, 0, current.Version-1); !errors.Is(err, post.ErrConflict) {
		t.Fatalf("DeleteComment(stale) error = %v, want ErrConflict", err)
	}
	if err := s.DeleteComment(ctx, p.ID, 5, 0); !errors.Is(err, post.ErrNotFound) {
		t.Fatalf("DeleteComment(out of range) error = %v, want ErrNotFound", err)
	}
	if err := s.DeleteComment(ctx, p.ID, 0, current.Version); err != nil {
		t.Fatalf("DeleteComment() error = %v", err)
	}
	got, _ := s.Get(ctx, p.ID)
	if len(got.Comments) != 1 || got.Comments[0].Author != "Cat" || got.Version != current.Version+1 {
		t.Fatalf("after delete = %+v", got)
	}
}

func testDeletePost(t *testing.T, s post.Store) {
	ctx := context.Background()
	p := mustCreate(t, s, post.Post{Author: "Ann", Text: "hello"})
	if err := s.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, p.ID); !errors.Is(err, post.ErrNotFound) {
		t.Fatalf("second Delete() error = %v, want ErrNotFound", err)
	}
	posts, _ := s.List(ctx, post.ListOptions{})
	if len(posts) != 0 {
		t.Fatalf("List() after delete = %d posts", len(posts))
	}
}

func testListOrder(t *testing.T, s post.Store) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		mustCreate(t, s, post.Post{Author: "Ann", Text: fmt.Sprintf("p%d", i), CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}
	newest, err := s.List(ctx, post.ListOptions{Order: post.OrderNewest, Limit: 3})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(newest) != 3 || newest[0].Text != "p3" || newest[2].Text != "p1" {
		t.Fatalf("newest = %v", texts(newest))
	}
	oldest, _ := s.List(ctx, post.ListOptions{Order: post.OrderOldest})
	if len(oldest) != 4 || oldest[0].Text != "p0" {
		t.Fatalf("oldest = %v", texts(oldest))
	}
}

func testConcurrentUniqueComments(t *testing.T, s post.Store) {
	ctx := context.Background()
	p := mustCreate(t, s, post.Post{Author: "Ann", Text: "hello"})
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.AppendComment(ctx, p.ID, post.Comment{Author: "Ben", Text: fmt.Sprintf("c%d", i)}, post.AppendOptions{UniqueAuthor: true})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			} else if !errors.Is(err, post.ErrDuplicate) {
				t.Errorf("AppendComment() error = %v", err)
			}
		}(i)
	}
	wg.Wait()
	got, _ := s.Get(ctx, p.ID)
	if accepted != 1 || len(got.Comments) != 1 {
		t.Fatalf("accepted = %d, comments = %d; want exactly one", accepted, len(got.Comments))
	}
}

func texts(posts []post.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.Text
	}
	return out
}
