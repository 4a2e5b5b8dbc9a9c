package memory

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"
)

const DefaultEmbeddingDim = 256

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// HashEmbedder is a deterministic bag-of-words embedder. Each lowercased token
// is hashed into one of Dim buckets and the vector is L2-normalized, so texts
// sharing vocabulary land close together without a remote model.
type HashEmbedder struct {
	Dim int
}

func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultEmbeddingDim
	}
	return &HashEmbedder{Dim: dim}
}

func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	dim := h.Dim
	if dim <= 0 {
		dim = DefaultEmbeddingDim
	}
	vec := make([]float64, dim)
	for _, tok := range tokenize(text) {
		hasher := fnv.New32a()
		_, _ = hasher.Write([]byte(tok))
		vec[hasher.Sum32()%uint32(dim)]++
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec, nil
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// rank orders records by similarity to query, newest first on ties, and
// keeps the top k. records must be in insertion order.
func rank(ctx context.Context, emb Embedder, records []Record, query string, k int) ([]Record, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	if len(records) == 0 {
		return nil, nil
	}
	q, err := emb.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	type scored struct {
		rec Record
		seq int
	}
	items := make([]scored, 0, len(records))
	for i, rec := range records {
		v, err := emb.Embed(ctx, rec.Text)
		if err != nil {
			return nil, err
		}
		rec.Score = cosine(q, v)
		items = append(items, scored{rec: rec, seq: i})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].rec.Score != items[j].rec.Score {
			return items[i].rec.Score > items[j].rec.Score
		}
		return items[i].seq > items[j].seq
	})
	if len(items) > k {
		items = items[:k]
	}
	out := make([]Record, len(items))
	for i, it := range items {
		out[i] = it.rec
	}
	return out, nil
}
