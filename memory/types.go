// Package memory is the long-term, append-only memory of each persona.
// Records are grouped into collections (one per persona) and retrieved by
// nearest-neighbour text search.
package memory

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	TypeConversation = "conversation"
	TypePost         = "post"
	TypeInteraction  = "interaction"
	TypeManualPost   = "manual_post"
)

const DefaultTopK = 3

var ErrInvalidCollection = errors.New("memory: invalid collection")

type Record struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`

	// Score is the similarity to the query of the Search call that returned
	// the record. It is never persisted.
	Score float64 `json:"-"`
}

func (r Record) Type() string {
	return r.Metadata["type"]
}

type Store interface {
	Add(ctx context.Context, collection string, text string, metadata map[string]string) error
	Search(ctx context.Context, collection string, query string, k int) ([]Record, error)
	Count(ctx context.Context, collection string) (int, error)
}

func validateCollection(collection string) (string, error) {
	collection = strings.TrimSpace(collection)
	if collection == "" {
		return "", ErrInvalidCollection
	}
	for _, r := range collection {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			continue
		}
		return "", ErrInvalidCollection
	}
	return collection, nil
}

func cloneMetadata(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
