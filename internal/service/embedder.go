package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/docpipeline/docpipeline/internal/hash"
	"github.com/docpipeline/docpipeline/internal/pipelineerr"
)

// EmbeddingCache is implemented by internal/cache.Client. It is optional:
// a nil cache simply disables the read-through lookup.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, key string) ([]float32, error)
	SetEmbedding(ctx context.Context, key string, vec []float32, ttl time.Duration) error
}

// EmbedderService calls an OpenAI-compatible embeddings endpoint over
// HTTP, classifying failures into the pipeline error taxonomy so the
// engine can decide whether a stage attempt is worth retrying.
type EmbedderService struct {
	httpClient *http.Client
	cache      EmbeddingCache
	cacheTTL   time.Duration

	baseURL    string
	apiKey     string
	model      string
	dimensions int
	maxBatch   int
}

// NewEmbedderService builds an EmbedderService. cache may be nil to
// disable caching.
func NewEmbedderService(baseURL, apiKey, model string, dimensions int, timeout time.Duration, cache EmbeddingCache, cacheTTL time.Duration) *EmbedderService {
	if dimensions <= 0 {
		dimensions = 1536
	}
	return &EmbedderService{
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
		cacheTTL:   cacheTTL,
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		dimensions: dimensions,
		maxBatch:   250,
	}
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingDatum struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type embeddingUsage struct {
	TotalTokens int `json:"total_tokens"`
}

type embeddingResponse struct {
	Data  []embeddingDatum `json:"data"`
	Usage embeddingUsage   `json:"usage"`
}

// EmbedResult carries the vectors for a batch plus the token usage the
// provider reported, for downstream cost accounting.
type EmbedResult struct {
	Vectors    [][]float32
	TokensUsed int
	CacheHits  int
}

// Embed returns one embedding vector per input text, preserving order.
// Texts already present in the cache are served without a network call;
// the remainder is sent to the provider in batches of at most maxBatch.
func (s *EmbedderService) Embed(ctx context.Context, texts []string) (*EmbedResult, error) {
	if len(texts) == 0 {
		return &EmbedResult{}, nil
	}

	result := &EmbedResult{Vectors: make([][]float32, len(texts))}
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		if vec, ok := s.lookupCache(ctx, text); ok {
			result.Vectors[i] = vec
			result.CacheHits++
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	for start := 0; start < len(missTexts); start += s.maxBatch {
		end := start + s.maxBatch
		if end > len(missTexts) {
			end = len(missTexts)
		}
		vecs, tokens, err := s.embedBatch(ctx, missTexts[start:end])
		if err != nil {
			return nil, err
		}
		result.TokensUsed += tokens
		for j, vec := range vecs {
			idx := missIdx[start+j]
			result.Vectors[idx] = vec
			s.storeCache(ctx, missTexts[start+j], vec)
		}
	}

	return result, nil
}

func (s *EmbedderService) lookupCache(ctx context.Context, text string) ([]float32, bool) {
	if s.cache == nil {
		return nil, false
	}
	vec, err := s.cache.GetEmbedding(ctx, s.cacheKey(text))
	if err != nil {
		return nil, false
	}
	return vec, true
}

func (s *EmbedderService) storeCache(ctx context.Context, text string, vec []float32) {
	if s.cache == nil {
		return
	}
	_ = s.cache.SetEmbedding(ctx, s.cacheKey(text), vec, s.cacheTTL)
}

func (s *EmbedderService) cacheKey(text string) string {
	return s.model + ":" + hash.String(text)
}

// embedBatch sends one request to the provider and returns vectors in
// request order. HTTP and network failures are classified through the
// shared pipelineerr taxonomy so callers can tell a rate limit apart
// from a malformed response.
func (s *EmbedderService) embedBatch(ctx context.Context, texts []string) ([][]float32, int, error) {
	body, err := json.Marshal(embeddingRequest{Model: s.model, Input: texts})
	if err != nil {
		return nil, 0, pipelineerr.Wrap(pipelineerr.KindEmbedding, "embedder: marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, 0, pipelineerr.Wrap(pipelineerr.KindEmbedding, "embedder: build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, 0, pipelineerr.ClassifyNetworkError("embedding", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, pipelineerr.ClassifyHTTPStatus(resp.StatusCode, "embedding", fmt.Errorf("status %d", resp.StatusCode))
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, 0, pipelineerr.Wrap(pipelineerr.KindEmbedding, "embedder: decode response", err)
	}

	sort.Slice(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })

	vectors := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		if len(d.Embedding) != s.dimensions {
			return nil, 0, pipelineerr.New(pipelineerr.KindEmbedding,
				fmt.Sprintf("embedder: expected %d dimensions, got %d", s.dimensions, len(d.Embedding)))
		}
		vectors[i] = l2Normalize(d.Embedding)
	}

	return vectors, parsed.Usage.TotalTokens, nil
}

// l2Normalize normalizes a vector to unit length (L2 norm = 1).
func l2Normalize(vec []float32) []float32 {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return vec
	}
	result := make([]float32, len(vec))
	for i, v := range vec {
		result[i] = float32(float64(v) / norm)
	}
	return result
}
