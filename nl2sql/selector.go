package nl2sql

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/DachengChen/shelfcare/ai"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultTopK is the number of examples (and the row limit) used when
// none is configured.
const DefaultTopK = 3

// Selector picks the examples most relevant to a question.
type Selector interface {
	Select(ctx context.Context, question string, k int) ([]Example, error)
}

// VectorCache persists example embeddings between runs, keyed by
// embedding model and text.
type VectorCache interface {
	LoadVectors(ctx context.Context, model string, texts []string) (map[string][]float32, error)
	SaveVectors(ctx context.Context, model string, vectors map[string][]float32) error
}

const indexChunkSize = 16

// VectorSelector ranks corpus examples by cosine similarity between the
// question embedding and each example question's embedding.
type VectorSelector struct {
	corpus   *Corpus
	embedder ai.Embedder
	cache    VectorCache
	logger   zerolog.Logger

	mu      sync.Mutex
	vectors [][]float32
}

var _ Selector = (*VectorSelector)(nil)

// NewVectorSelector creates a selector over corpus. cache may be nil.
func NewVectorSelector(corpus *Corpus, embedder ai.Embedder, cache VectorCache, logger zerolog.Logger) *VectorSelector {
	return &VectorSelector{
		corpus:   corpus,
		embedder: embedder,
		cache:    cache,
		logger:   logger.With().Str("component", "selector").Logger(),
	}
}

// Index embeds every example question. Vectors found in the cache are
// reused; new ones are written back. Safe to call more than once.
func (s *VectorSelector) Index(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vectors != nil {
		return nil
	}

	questions := s.corpus.Questions()
	model := s.embedder.Model()

	cached := map[string][]float32{}
	if s.cache != nil {
		loaded, err := s.cache.LoadVectors(ctx, model, questions)
		if err != nil {
			s.logger.Warn().Err(err).Msg("load cached vectors")
		} else {
			cached = loaded
		}
	}

	var missing []string
	for _, q := range questions {
		if _, ok := cached[q]; !ok {
			missing = append(missing, q)
		}
	}

	fresh, err := s.embedChunks(ctx, missing)
	if err != nil {
		return stageErr(StageSelect, ErrEmbeddingUnavailable, err)
	}
	if s.cache != nil && len(fresh) > 0 {
		if err := s.cache.SaveVectors(ctx, model, fresh); err != nil {
			s.logger.Warn().Err(err).Msg("save vectors")
		}
	}

	vectors := make([][]float32, len(questions))
	for i, q := range questions {
		if v, ok := cached[q]; ok {
			vectors[i] = v
		} else {
			vectors[i] = fresh[q]
		}
	}
	s.vectors = vectors
	s.logger.Info().
		Str("model", model).
		Int("examples", len(questions)).
		Int("cached", len(questions)-len(missing)).
		Msg("example index ready")
	return nil
}

func (s *VectorSelector) embedChunks(ctx context.Context, texts []string) (map[string][]float32, error) {
	out := make(map[string][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for start := 0; start < len(texts); start += indexChunkSize {
		chunk := texts[start:min(start+indexChunkSize, len(texts))]
		g.Go(func() error {
			vecs, err := s.embedder.EmbedBatch(gctx, chunk)
			if err != nil {
				return err
			}
			if len(vecs) != len(chunk) {
				return fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(chunk))
			}
			mu.Lock()
			for i, t := range chunk {
				out[t] = vecs[i]
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Select returns the k most similar examples, highest first. Ties keep
// corpus order. k <= 0 means DefaultTopK.
func (s *VectorSelector) Select(ctx context.Context, question string, k int) ([]Example, error) {
	if err := s.Index(ctx); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = DefaultTopK
	}

	query, err := s.embedder.Embed(ctx, strings.TrimSpace(question))
	if err != nil {
		return nil, stageErr(StageSelect, ErrEmbeddingUnavailable, err)
	}

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, 0, len(s.vectors))
	for i, v := range s.vectors {
		score, err := ai.CosineSimilarity(query, v)
		if err != nil {
			// Zero or mismatched vectors rank last rather than failing the request.
			score = -2
		}
		ranked = append(ranked, scored{idx: i, score: score})
	}
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })

	k = min(k, len(ranked))
	examples := s.corpus.examples
	out := make([]Example, k)
	for i := 0; i < k; i++ {
		out[i] = examples[ranked[i].idx]
	}
	return out, nil
}
