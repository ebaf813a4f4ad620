package ai

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"net/http"
	"strings"
	"time"
	"unicode"
)

// Embedding backends.
const (
	EmbeddingProviderAPI    = "api"
	EmbeddingProviderOllama = "ollama"
	EmbeddingProviderLocal  = "local"

	defaultOllamaEmbeddingBaseURL = "http://127.0.0.1:11434"
	defaultEmbeddingTimeout       = 15 * time.Second
	defaultEmbeddingBatchSize     = 64
	defaultHashDimension          = 256
)

// Embedder turns text into vectors for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Model identifies the vector space; vectors from different models
	// are never compared.
	Model() string
}

// HTTPEmbedderOptions configures an HTTPEmbedder.
type HTTPEmbedderOptions struct {
	Provider  string // "api" or "ollama"
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
	BatchSize int
	Timeout   time.Duration
}

// HTTPEmbedder calls an OpenAI-compatible /v1/embeddings endpoint.
type HTTPEmbedder struct {
	provider    string
	baseURL     string
	apiKey      string
	model       string
	expectedDim int
	batchSize   int
	httpClient  *http.Client
}

var _ Embedder = (*HTTPEmbedder)(nil)

type embeddingRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type embeddingResponse struct {
	Data []embeddingData `json:"data"`
}

type embeddingData struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

// NewHTTPEmbedder creates an embedder for a remote or Ollama backend.
func NewHTTPEmbedder(opts HTTPEmbedderOptions) *HTTPEmbedder {
	e := &HTTPEmbedder{
		provider:    strings.ToLower(strings.TrimSpace(opts.Provider)),
		baseURL:     strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		apiKey:      strings.TrimSpace(opts.APIKey),
		model:       strings.TrimSpace(opts.Model),
		expectedDim: opts.Dimension,
		batchSize:   opts.BatchSize,
		httpClient:  &http.Client{Timeout: opts.Timeout},
	}
	if e.provider == "" {
		e.provider = EmbeddingProviderAPI
	}
	if e.batchSize <= 0 {
		e.batchSize = defaultEmbeddingBatchSize
	}
	if e.httpClient.Timeout <= 0 {
		e.httpClient.Timeout = defaultEmbeddingTimeout
	}
	if e.provider == EmbeddingProviderOllama && e.baseURL == "" {
		e.baseURL = defaultOllamaEmbeddingBaseURL
	}
	return e
}

func (e *HTTPEmbedder) Model() string { return e.provider + ":" + e.model }

func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("embed: empty text")
	}

	vectors, err := e.requestEmbeddings(ctx, trimmed, 1)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return vectors[0], nil
}

func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("embed batch: empty texts")
	}

	normalized := make([]string, len(texts))
	for i, text := range texts {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil, fmt.Errorf("embed batch: empty text at index %d", i)
		}
		normalized[i] = trimmed
	}

	vectors := make([][]float32, 0, len(normalized))
	for start := 0; start < len(normalized); start += e.batchSize {
		end := min(start+e.batchSize, len(normalized))
		chunk, err := e.requestEmbeddings(ctx, normalized[start:end], end-start)
		if err != nil {
			return nil, fmt.Errorf("embed batch: %w", err)
		}
		vectors = append(vectors, chunk...)
	}
	return vectors, nil
}

func (e *HTTPEmbedder) requestEmbeddings(ctx context.Context, input any, expectedCount int) ([][]float32, error) {
	if e.model == "" {
		return nil, fmt.Errorf("missing embedding model")
	}
	if e.baseURL == "" {
		return nil, fmt.Errorf("missing embedding base url")
	}
	if e.provider == EmbeddingProviderAPI && e.apiKey == "" {
		return nil, fmt.Errorf("missing embedding api key")
	}

	headers := map[string]string{}
	if e.apiKey != "" {
		headers["Authorization"] = "Bearer " + e.apiKey
	}

	var decoded embeddingResponse
	err := postJSON(ctx, e.httpClient, "embedding", e.baseURL+"/v1/embeddings", headers,
		embeddingRequest{Model: e.model, Input: input}, &decoded)
	if err != nil {
		return nil, err
	}

	vectors, err := e.validateEmbeddingData(decoded.Data, expectedCount)
	if err != nil {
		return nil, fmt.Errorf("validate response: %w", err)
	}
	return vectors, nil
}

func (e *HTTPEmbedder) validateEmbeddingData(data []embeddingData, expectedCount int) ([][]float32, error) {
	if len(data) != expectedCount {
		return nil, fmt.Errorf("response count mismatch: got %d want %d", len(data), expectedCount)
	}

	vectors := make([][]float32, expectedCount)
	responseDim := 0
	for _, item := range data {
		if item.Index < 0 || item.Index >= expectedCount {
			return nil, fmt.Errorf("invalid embedding index %d", item.Index)
		}
		if vectors[item.Index] != nil {
			return nil, fmt.Errorf("duplicate embedding index %d", item.Index)
		}
		if len(item.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding vector at index %d", item.Index)
		}
		if responseDim == 0 {
			responseDim = len(item.Embedding)
		} else if len(item.Embedding) != responseDim {
			return nil, fmt.Errorf("inconsistent embedding dimension at index %d: got %d want %d", item.Index, len(item.Embedding), responseDim)
		}
		if e.expectedDim > 0 && len(item.Embedding) != e.expectedDim {
			return nil, fmt.Errorf("embedding dimension at index %d: got %d want %d", item.Index, len(item.Embedding), e.expectedDim)
		}
		vectors[item.Index] = append([]float32(nil), item.Embedding...)
	}
	return vectors, nil
}

// ─────────────────────────────────────────────────────────────────
// Offline embedder
// ─────────────────────────────────────────────────────────────────

// HashEmbedder maps text to a bag of hashed word unigrams and bigrams.
// It needs no network and is deterministic, which makes it the default
// for a fresh install and for tests.
type HashEmbedder struct {
	dim int
}

var _ Embedder = (*HashEmbedder)(nil)

// NewHashEmbedder creates a HashEmbedder with dim buckets.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = defaultHashDimension
	}
	return &HashEmbedder{dim: dim}
}

func (h *HashEmbedder) Model() string { return fmt.Sprintf("local:hash-%d", h.dim) }

func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	words := tokenize(text)
	if len(words) == 0 {
		return nil, fmt.Errorf("embed: empty text")
	}

	vec := make([]float32, h.dim)
	add := func(term string, weight float32) {
		f := fnv.New32a()
		_, _ = f.Write([]byte(term))
		sum := f.Sum32()
		sign := float32(1)
		if sum&1 == 1 {
			sign = -1
		}
		vec[int(sum>>1)%h.dim] += sign * weight
	}
	for i, w := range words {
		add(w, 1)
		if i > 0 {
			add(words[i-1]+" "+w, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("embed batch: empty texts")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := h.Embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("embed batch: index %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
