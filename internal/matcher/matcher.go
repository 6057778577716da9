package matcher

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/mhutchins/arbmon/internal/cache"
	"github.com/mhutchins/arbmon/internal/hashutil"
	"github.com/mhutchins/arbmon/internal/logging"
	"github.com/mhutchins/arbmon/internal/store"
	"github.com/mhutchins/arbmon/internal/venues"
)

// Embedder turns market text into fixed-size vectors. Both venues must go
// through the same embedder so similarities are comparable.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Config controls how the matcher is constructed.
type Config struct {
	Embedder  Embedder
	Cache     cache.EmbeddingCache // optional; nil disables caching
	Threshold float64
}

// Matcher pairs markets across venues by embedding similarity.
type Matcher struct {
	embedder  Embedder
	cache     cache.EmbeddingCache
	threshold float64
}

func New(cfg Config) (*Matcher, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("matcher: embedder is required")
	}
	threshold := cfg.Threshold
	if threshold <= 0 || threshold > 1 {
		threshold = 0.85
	}
	return &Matcher{
		embedder:  cfg.Embedder,
		cache:     cfg.Cache,
		threshold: threshold,
	}, nil
}

func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// FindMatches pairs each source market with its single best-scoring target
// market. A candidate is emitted only when the best cosine similarity is at
// least threshold (pass 0 to use the configured default); ties keep the
// earliest target in list order. A target may be claimed by more than one
// source market; no exclusive assignment is attempted.
//
// Empty inputs, or inputs with no usable text, yield an empty result rather
// than an error.
func (m *Matcher) FindMatches(ctx context.Context, source, target []venues.MarketDescriptor, threshold float64) ([]store.Candidate, error) {
	if threshold <= 0 || threshold > 1 {
		threshold = m.threshold
	}
	src := filterWithText(source)
	tgt := filterWithText(target)
	if len(src) == 0 || len(tgt) == 0 {
		logging.Infof("[matcher] nothing to match (source=%d target=%d after text filter)", len(src), len(tgt))
		return nil, nil
	}

	logging.Infof("[matcher] embedding %d source and %d target markets", len(src), len(tgt))
	srcVecs, err := m.embedAll(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("embed source markets: %w", err)
	}
	tgtVecs, err := m.embedAll(ctx, tgt)
	if err != nil {
		return nil, fmt.Errorf("embed target markets: %w", err)
	}

	var candidates []store.Candidate
	for i, sv := range srcVecs {
		bestIdx := -1
		bestScore := math.Inf(-1)
		for j, tv := range tgtVecs {
			if score := Cosine(sv, tv); score > bestScore {
				bestScore = score
				bestIdx = j
			}
		}
		if bestIdx < 0 || bestScore < threshold {
			continue
		}
		best := tgt[bestIdx]
		logging.Debugf("[matcher] %s -> %s similarity=%.4f", src[i].ExternalID, best.ExternalID, bestScore)
		candidates = append(candidates, store.Candidate{
			SourceText: src[i].Text,
			TargetText: best.Text,
			SourceID:   src[i].ExternalID,
			TargetID:   best.ExternalID,
			Similarity: bestScore,
		})
	}

	logging.Infof("[matcher] found %d candidates with similarity >= %.2f", len(candidates), threshold)
	return candidates, nil
}

// ValidateMatch computes the similarity of a single text pair.
func (m *Matcher) ValidateMatch(ctx context.Context, sourceText, targetText string) (float64, error) {
	vecs, err := m.embedder.EmbedBatch(ctx, []string{sourceText, targetText})
	if err != nil {
		return 0, fmt.Errorf("embed pair: %w", err)
	}
	return Cosine(vecs[0], vecs[1]), nil
}

// embedAll returns one vector per market, consulting the cache by text hash
// before hitting the embedding API. Cache failures degrade to re-embedding.
func (m *Matcher) embedAll(ctx context.Context, markets []venues.MarketDescriptor) ([][]float32, error) {
	vecs := make([][]float32, len(markets))
	var missTexts []string
	var missIdx []int

	for i, mk := range markets {
		if m.cache == nil {
			missTexts = append(missTexts, mk.Text)
			missIdx = append(missIdx, i)
			continue
		}
		key := hashutil.HashStrings(mk.Text)
		vec, ok, err := m.cache.Get(ctx, key)
		if err != nil {
			logging.Errorf("[matcher] embedding cache get %s: %v", mk.ExternalID, err)
		}
		if ok {
			vecs[i] = vec
			continue
		}
		missTexts = append(missTexts, mk.Text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) > 0 {
		fresh, err := m.embedder.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		for k, i := range missIdx {
			vecs[i] = fresh[k]
			if m.cache != nil {
				key := hashutil.HashStrings(markets[i].Text)
				if err := m.cache.Set(ctx, key, fresh[k]); err != nil {
					logging.Errorf("[matcher] embedding cache set %s: %v", markets[i].ExternalID, err)
				}
			}
		}
	}
	return vecs, nil
}

// Cosine returns the cosine similarity of two vectors, or 0 when either has
// zero norm or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
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

func filterWithText(markets []venues.MarketDescriptor) []venues.MarketDescriptor {
	out := make([]venues.MarketDescriptor, 0, len(markets))
	for _, mk := range markets {
		if strings.TrimSpace(mk.Text) == "" {
			continue
		}
		out = append(out, mk)
	}
	return out
}
