// Package stages holds the concrete Stage implementations the engine
// drives in fixed order. Each stage is opaque to the engine: it knows
// its own storage contract against a document_id and nothing else.
package stages

import (
	"context"
	"fmt"

	"github.com/docpipeline/docpipeline/internal/hash"
	"github.com/docpipeline/docpipeline/internal/model"
	"github.com/docpipeline/docpipeline/internal/pipelineerr"
	"github.com/docpipeline/docpipeline/internal/repository"
)

// IngestStage verifies the invariant that submission already
// established: the stored raw bytes hash to the document's recorded
// content_hash. Reading a source path or URL into bytes happens at
// submission time, before the engine ever sees a document_id, so this
// stage's only job is to confirm that contract before later stages
// trust the content.
type IngestStage struct {
	documents  *repository.DocumentRepo
	rawContent *repository.RawContentRepo
}

// NewIngestStage builds an IngestStage.
func NewIngestStage(documents *repository.DocumentRepo, rawContent *repository.RawContentRepo) *IngestStage {
	return &IngestStage{documents: documents, rawContent: rawContent}
}

// Name implements service.Stage.
func (s *IngestStage) Name() string { return "ingest" }

// Run implements service.Stage.
func (s *IngestStage) Run(ctx context.Context, documentID int64) error {
	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.KindPipelineState, "ingest: load document", err)
	}

	rc, err := s.rawContent.GetByDocumentID(ctx, documentID)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.KindPipelineState, "ingest: load raw content", err)
	}

	if got := hash.Content(rc.Content); got != doc.ContentHash {
		return pipelineerr.New(pipelineerr.KindIngestion,
			fmt.Sprintf("ingest: content hash mismatch, recorded %s got %s", doc.ContentHash, got))
	}

	if err := s.documents.UpdateStatus(ctx, documentID, model.StatusIngested); err != nil {
		return pipelineerr.Wrap(pipelineerr.KindStorage, "ingest: update status", err)
	}
	return nil
}
