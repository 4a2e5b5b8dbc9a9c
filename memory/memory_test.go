package memory

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHashEmbedderIsDeterministicAndNormalized(t *testing.T) {
	t.Parallel()

	emb := NewHashEmbedder(64)
	a, _ := emb.Embed(context.Background(), "Coffee and code")
	b, _ := emb.Embed(context.Background(), "coffee AND code!")
	if got := cosine(a, b); got < 0.999 {
		t.Fatalf("cosine(same tokens) = %v, want ~1", got)
	}
	var norm float64
	for _, v := range a {
		norm += v * v
	}
	if norm < 0.999 || norm > 1.001 {
		t.Fatalf("squared norm = %v, want 1", norm)
	}
	empty, _ := emb.Embed(context.Background(), "   ")
	if cosine(empty, a) != 0 {
		t.Fatalf("empty text should have zero similarity")
	}
}

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	t.Cleanup(func() { _ = fs.Close() })
	return map[string]Store{
		"memory": NewInMemoryStore(nil),
		"file":   fs,
	}
}

func TestStoreSearchRanksBySimilarity(t *testing.T) {
	t.Parallel()

	for name, store := range testStores(t) {
		store := store
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			texts := []string{
				"I love hiking in the mountains",
				"Rust versus Go for backend services",
				"Weekend baking: sourdough bread",
				"Go generics make backend code cleaner",
			}
			for _, text := range texts {
				if err := store.Add(ctx, "clara_stone", text, map[string]string{"type": TypePost}); err != nil {
					t.Fatalf("Add() error = %v", err)
				}
			}
			got, err := store.Search(ctx, "clara_stone", "backend go code", 2)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("Search() returned %d records, want 2", len(got))
			}
			if got[0].Text != texts[3] {
				t.Fatalf("top hit = %q, want %q", got[0].Text, texts[3])
			}
			if got[0].Type() != TypePost {
				t.Fatalf("metadata type = %q", got[0].Type())
			}
			n, err := store.Count(ctx, "clara_stone")
			if err != nil || n != 4 {
				t.Fatalf("Count() = %d, %v", n, err)
			}
			if n, _ := store.Count(ctx, "nobody"); n != 0 {
				t.Fatalf("Count(empty collection) = %d", n)
			}
		})
	}
}

func TestStoreSearchDefaultsAndTies(t *testing.T) {
	t.Parallel()

	for name, store := range testStores(t) {
		store := store
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, text := range []string{"one", "two", "three", "four", "five"} {
				if err := store.Add(ctx, "bo", text, nil); err != nil {
					t.Fatalf("Add() error = %v", err)
				}
			}
			got, err := store.Search(ctx, "bo", "", 0)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if len(got) != DefaultTopK {
				t.Fatalf("Search(k=0) returned %d records, want %d", len(got), DefaultTopK)
			}
			if got[0].Text != "five" || got[2].Text != "three" {
				t.Fatalf("ties should be broken newest first, got %q %q %q", got[0].Text, got[1].Text, got[2].Text)
			}
		})
	}
}

func TestStoreRejectsInvalidCollection(t *testing.T) {
	t.Parallel()

	for name, store := range testStores(t) {
		for _, collection := range []string{"", "../escape", "Upper"} {
			if err := store.Add(context.Background(), collection, "x", nil); !errors.Is(err, ErrInvalidCollection) {
				t.Fatalf("%s Add(%q) error = %v, want ErrInvalidCollection", name, collection, err)
			}
		}
	}
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first, err := NewFileStore(dir, nil)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	first.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }
	if err := first.Add(context.Background(), "ada", "remember the launch", map[string]string{"type": TypeConversation}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	second, err := NewFileStore(dir, nil)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	defer second.Close()
	got, err := second.Search(context.Background(), "ada", "launch", 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0].ID == "" || !got[0].CreatedAt.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("Search() = %+v", got)
	}
}
