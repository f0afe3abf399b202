package service

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/docpipeline/docpipeline/internal/pipelineerr"
)

// ChunkResult is one chunk produced by ChunkerService.Chunk, before a
// repository assigns it a document id and a database-generated id.
type ChunkResult struct {
	Text       string
	TokenCount int
}

// ChunkerService splits document text into paragraph-aware chunks bounded
// by a token budget, with a single trailing paragraph carried forward as
// overlap between adjacent chunks.
type ChunkerService struct {
	chunkSize    int
	chunkOverlap int
	minChunkSize int
}

// NewChunkerService creates a ChunkerService with the given budget.
// chunkOverlap only gates whether overlap is applied at all: when
// positive, the last paragraph of a flushed chunk seeds the next one,
// matching the pipeline's reference chunker.
func NewChunkerService(chunkSize, chunkOverlap, minChunkSize int) *ChunkerService {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if minChunkSize < 0 {
		minChunkSize = 0
	}
	return &ChunkerService{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		minChunkSize: minChunkSize,
	}
}

var paragraphSplitRe = regexp.MustCompile(`\n\s*\n`)

// Chunk splits text into a dense, 0-indexed sequence of chunks. It never
// returns an empty slice for non-empty input: when every paragraph is
// dropped by the min-size gate, it falls back to a single truncated
// chunk of the first chunkSize runes of text.
func (s *ChunkerService) Chunk(ctx context.Context, text string) ([]ChunkResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, pipelineerr.New(pipelineerr.KindChunking, "chunker: text is empty")
	}

	var paragraphs []string
	for _, p := range paragraphSplitRe.Split(text, -1) {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}
	if len(paragraphs) == 0 {
		return nil, pipelineerr.New(pipelineerr.KindChunking, "chunker: no content after splitting")
	}

	var results []ChunkResult
	var current []string
	currentSize := 0

	flush := func() {
		text := strings.Join(current, "\n\n")
		if len(text) >= s.minChunkSize {
			results = append(results, ChunkResult{Text: text, TokenCount: estimateTokens(text)})
		}
	}

	for _, para := range paragraphs {
		select {
		case <-ctx.Done():
			return nil, pipelineerr.Wrap(pipelineerr.KindChunking, "chunker: context canceled", ctx.Err())
		default:
		}

		paraTokens := estimateTokens(para)

		if currentSize+paraTokens > s.chunkSize && len(current) > 0 {
			flush()
			if s.chunkOverlap > 0 {
				last := current[len(current)-1]
				current = []string{last}
				currentSize = estimateTokens(last)
			} else {
				current = nil
				currentSize = 0
			}
		}

		current = append(current, para)
		currentSize += paraTokens
	}

	if len(current) > 0 {
		flush()
	}

	if len(results) == 0 {
		runes := []rune(text)
		cut := s.chunkSize
		if cut > len(runes) {
			cut = len(runes)
		}
		truncated := string(runes[:cut])
		results = []ChunkResult{{Text: truncated, TokenCount: estimateTokens(truncated)}}
	}

	return results, nil
}

// estimateTokens approximates a BPE token count as words * 1.3 rounded up.
// No cl100k_base-equivalent tokenizer is available in this module's
// dependency set, so this mirrors the pipeline's own documented fallback
// rather than reaching for an exact encoder.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	return int(math.Ceil(float64(words) * 1.3))
}
