package stages

import (
	"context"

	"github.com/docpipeline/docpipeline/internal/model"
	"github.com/docpipeline/docpipeline/internal/pipelineerr"
	"github.com/docpipeline/docpipeline/internal/repository"
	"github.com/docpipeline/docpipeline/internal/service"
)

// ChunkingStage splits a document's normalized text into chunks.
// ChunkRepo.ReplaceAll deletes any chunks left by a prior attempt before
// inserting the fresh set in the same transaction, which is what makes
// a re-run idempotent.
type ChunkingStage struct {
	documents  *repository.DocumentRepo
	rawContent *repository.RawContentRepo
	chunks     *repository.ChunkRepo
	chunker    *service.ChunkerService
}

// NewChunkingStage builds a ChunkingStage.
func NewChunkingStage(documents *repository.DocumentRepo, rawContent *repository.RawContentRepo, chunks *repository.ChunkRepo, chunker *service.ChunkerService) *ChunkingStage {
	return &ChunkingStage{documents: documents, rawContent: rawContent, chunks: chunks, chunker: chunker}
}

// Name implements service.Stage.
func (s *ChunkingStage) Name() string { return "chunking" }

// Run implements service.Stage.
func (s *ChunkingStage) Run(ctx context.Context, documentID int64) error {
	rc, err := s.rawContent.GetByDocumentID(ctx, documentID)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.KindPipelineState, "chunking: load raw content", err)
	}

	results, err := s.chunker.Chunk(ctx, string(rc.Content))
	if err != nil {
		return err
	}

	toInsert := make([]model.Chunk, len(results))
	for i, r := range results {
		toInsert[i] = model.Chunk{Sequence: i, Text: r.Text, TokenCount: r.TokenCount}
	}

	if _, err := s.chunks.ReplaceAll(ctx, documentID, toInsert); err != nil {
		return pipelineerr.Wrap(pipelineerr.KindStorage, "chunking: replace chunks", err)
	}
	if err := s.documents.UpdateStatus(ctx, documentID, model.StatusChunked); err != nil {
		return pipelineerr.Wrap(pipelineerr.KindStorage, "chunking: update status", err)
	}
	return nil
}
