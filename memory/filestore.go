package memory

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quailyquaily/socialsim/internal/fsstore"
)

// FileStore keeps one JSONL file per collection under Dir.
type FileStore struct {
	Dir string

	embedder Embedder
	now      func() time.Time

	mu      sync.Mutex
	writers map[string]*fsstore.JSONLWriter
	closed  bool
}

func NewFileStore(dir string, embedder Embedder) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("memory: empty dir")
	}
	if err := fsstore.EnsureDir(dir, 0o700); err != nil {
		return nil, err
	}
	if embedder == nil {
		embedder = NewHashEmbedder(0)
	}
	return &FileStore{
		Dir:      dir,
		embedder: embedder,
		now:      time.Now,
		writers:  map[string]*fsstore.JSONLWriter{},
	}, nil
}

func (s *FileStore) path(collection string) string {
	return filepath.Join(s.Dir, collection+".jsonl")
}

func (s *FileStore) Add(_ context.Context, collection string, text string, metadata map[string]string) error {
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
	defer s.mu.Unlock()
	if s.closed {
		return fsstore.ErrClosed
	}
	w, ok := s.writers[collection]
	if !ok {
		w, err = fsstore.NewJSONLWriter(s.path(collection), fsstore.JSONLOptions{})
		if err != nil {
			return err
		}
		s.writers[collection] = w
	}
	return w.AppendJSON(rec)
}

func (s *FileStore) Search(ctx context.Context, collection string, query string, k int) ([]Record, error) {
	records, err := s.load(collection)
	if err != nil {
		return nil, err
	}
	return rank(ctx, s.embedder, records, query, k)
}

func (s *FileStore) Count(_ context.Context, collection string) (int, error) {
	records, err := s.load(collection)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func (s *FileStore) load(collection string) ([]Record, error) {
	collection, err := validateCollection(collection)
	if err != nil {
		return nil, err
	}
	return fsstore.ReadJSONL[Record](s.path(collection))
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var errs []error
	for _, w := range s.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.writers = nil
	return errors.Join(errs...)
}
