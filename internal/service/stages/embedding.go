package stages

import (
	"context"

	"github.com/docpipeline/docpipeline/internal/model"
	"github.com/docpipeline/docpipeline/internal/pipelineerr"
	"github.com/docpipeline/docpipeline/internal/repository"
	"github.com/docpipeline/docpipeline/internal/service"
)

// EmbeddingStage generates one vector per chunk against the configured
// embedding model. It deletes any embeddings left by a prior attempt
// before inserting the fresh batch, since chunking may have replaced the
// chunk set (and its ids) since the last attempt.
type EmbeddingStage struct {
	documents  *repository.DocumentRepo
	chunks     *repository.ChunkRepo
	embeddings *repository.EmbeddingRepo
	embedder   *service.EmbedderService
	modelName  string
}

// NewEmbeddingStage builds an EmbeddingStage.
func NewEmbeddingStage(documents *repository.DocumentRepo, chunks *repository.ChunkRepo, embeddings *repository.EmbeddingRepo, embedder *service.EmbedderService, modelName string) *EmbeddingStage {
	return &EmbeddingStage{documents: documents, chunks: chunks, embeddings: embeddings, embedder: embedder, modelName: modelName}
}

// Name implements service.Stage.
func (s *EmbeddingStage) Name() string { return "embedding" }

// Run implements service.Stage.
func (s *EmbeddingStage) Run(ctx context.Context, documentID int64) error {
	chunkList, err := s.chunks.ListByDocument(ctx, documentID)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.KindPipelineState, "embedding: list chunks", err)
	}
	if len(chunkList) == 0 {
		return pipelineerr.New(pipelineerr.KindPipelineState, "embedding: document has no chunks")
	}

	texts := make([]string, len(chunkList))
	for i, c := range chunkList {
		texts[i] = c.Text
	}

	result, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}

	if err := s.embeddings.DeleteByDocument(ctx, documentID); err != nil {
		return pipelineerr.Wrap(pipelineerr.KindStorage, "embedding: delete prior embeddings", err)
	}

	toInsert := make([]model.Embedding, len(chunkList))
	for i, c := range chunkList {
		toInsert[i] = model.Embedding{ChunkID: c.ID, Model: s.modelName, Vector: result.Vectors[i]}
	}
	if err := s.embeddings.BulkInsert(ctx, toInsert); err != nil {
		return pipelineerr.Wrap(pipelineerr.KindStorage, "embedding: insert embeddings", err)
	}

	if err := s.documents.UpdateStatus(ctx, documentID, model.StatusEmbedded); err != nil {
		return pipelineerr.Wrap(pipelineerr.KindStorage, "embedding: update status", err)
	}
	return nil
}
