package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	embedder Embedder
	now      func() time.Time
	records  map[string][]Record
}

func NewInMemoryStore(embedder Embedder) *InMemoryStore {
	if embedder == nil {
		embedder = NewHashEmbedder(0)
	}
	return &InMemoryStore{
		embedder: embedder,
		now:      time.Now,
		records:  map[string][]Record{},
	}
}

func (s *InMemoryStore) Add(_ context.Context, collection string, text string, metadata map[string]string) error {
	collection, err := validateCollection(collection)
	if err != nil {
		return err
	}
	rec := Record{
		ID:        uuid.NewString(),
		Text:      text,
		Metadata:  cloneMetadata(metadata),
		CreatedAt: s.now().UTC(),
	}
	s.mu.Lock()
	s.records[collection] = append(s.records[collection], rec)
	s.mu.Unlock()
	return nil
}

func (s *InMemoryStore) Search(ctx context.Context, collection string, query string, k int) ([]Record, error) {
	collection, err := validateCollection(collection)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	snapshot := append([]Record(nil), s.records[collection]...)
	s.mu.RUnlock()
	return rank(ctx, s.embedder, snapshot, query, k)
}

func (s *InMemoryStore) Count(_ context.Context, collection string) (int, error) {
	collection, err := validateCollection(collection)
	if err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[collection]), nil
}

// All returns every record of collection in insertion order.
func (s *InMemoryStore) All(collection string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Record(nil), s.records[collection]...)
}
