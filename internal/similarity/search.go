package similarity

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/facet-cli/internal/store"
)

// Searcher finds the products closest to a given product in embedding
// space. Responses are served through the LRU cache: an orchestration
// pass asks about the same products repeatedly when building few-shot
// prompt examples.
type Searcher struct {
	store store.Store
	cache *Cache
	topK  int
}

func NewSearcher(st store.Store, cache *Cache, topK int) *Searcher {
	if topK <= 0 {
		topK = 5
	}
	return &Searcher{store: st, cache: cache, topK: topK}
}

// SimilarProducts returns the topK nearest neighbors of productKey by
// cosine similarity. Fails with store.ErrNotFound when the product has
// no stored embedding.
func (s *Searcher) SimilarProducts(ctx context.Context, productKey string) (*Response, error) {
	return s.cache.GetOrFetch(ctx, productKey, func(ctx context.Context) (any, error) {
		embeddings, err := s.store.ListProductEmbeddings(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "similarity: load embeddings")
		}

		var target []float32
		for _, e := range embeddings {
			if e.ProductKey == productKey {
				target = e.Vector
				break
			}
		}
		if target == nil {
			return nil, eris.Wrapf(store.ErrNotFound, "similarity: no embedding for %s", productKey)
		}

		matches := make([]Match, 0, len(embeddings))
		for _, e := range embeddings {
			if e.ProductKey == productKey {
				continue
			}
			matches = append(matches, Match{
				ProductKey: e.ProductKey,
				Score:      Cosine(target, e.Vector),
			})
		}
		sort.Slice(matches, func(i, j int) bool {
			if matches[i].Score != matches[j].Score {
				return matches[i].Score > matches[j].Score
			}
			return matches[i].ProductKey < matches[j].ProductKey
		})
		if len(matches) > s.topK {
			matches = matches[:s.topK]
		}

		return &Response{ProductKey: productKey, Matches: matches}, nil
	})
}

// CacheStats reports hit/miss counters for the response cache.
func (s *Searcher) CacheStats() CacheStats {
	return s.cache.Stats()
}

// Cosine computes the cosine similarity of two vectors. Mismatched
// lengths and zero vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
