package stages

import (
	"context"

	"github.com/docpipeline/docpipeline/internal/model"
	"github.com/docpipeline/docpipeline/internal/pipelineerr"
	"github.com/docpipeline/docpipeline/internal/repository"
)

// PersistenceStage is the terminal confirmation step before audit: it
// verifies that every chunk produced an extraction record (the fan-out
// in structured_extraction committed completely) before advancing the
// document's advisory status. It does not write to any external
// storage backend — spec.md names "persistence" only by its contract
// with the engine, not a concrete sink.
type PersistenceStage struct {
	documents   *repository.DocumentRepo
	chunks      *repository.ChunkRepo
	extractions *repository.ExtractionRepo
}

// NewPersistenceStage builds a PersistenceStage.
func NewPersistenceStage(documents *repository.DocumentRepo, chunks *repository.ChunkRepo, extractions *repository.ExtractionRepo) *PersistenceStage {
	return &PersistenceStage{documents: documents, chunks: chunks, extractions: extractions}
}

// Name implements service.Stage.
func (s *PersistenceStage) Name() string { return "persistence" }

// Run implements service.Stage.
func (s *PersistenceStage) Run(ctx context.Context, documentID int64) error {
	chunkList, err := s.chunks.ListByDocument(ctx, documentID)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.KindPipelineState, "persistence: list chunks", err)
	}
	extractionList, err := s.extractions.ListByDocument(ctx, documentID)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.KindPipelineState, "persistence: list extractions", err)
	}

	if len(extractionList) != len(chunkList) {
		return pipelineerr.New(pipelineerr.KindPipelineState, "persistence: extraction count does not match chunk count")
	}

	if err := s.documents.UpdateStatus(ctx, documentID, model.StatusPersisted); err != nil {
		return pipelineerr.Wrap(pipelineerr.KindStorage, "persistence: update status", err)
	}
	return nil
}
