package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/docpipeline/docpipeline/internal/model"
)

// EmbeddingRepo stores one embedding vector per (chunk, model).
type EmbeddingRepo struct {
	pool *pgxpool.Pool
}

// NewEmbeddingRepo creates an EmbeddingRepo.
func NewEmbeddingRepo(pool *pgxpool.Pool) *EmbeddingRepo {
	return &EmbeddingRepo{pool: pool}
}

// BulkInsert stores embeddings for a batch of chunks produced by a single
// embedding model, using pgx batching the way chunk inserts do.
func (r *EmbeddingRepo) BulkInsert(ctx context.Context, embeddings []model.Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range embeddings {
		vec := pgvector.NewVector(e.Vector)
		batch.Queue(`
			INSERT INTO embeddings (chunk_id, model, vector)
			VALUES ($1, $2, $3)`,
			e.ChunkID, e.Model, vec,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range embeddings {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("repository.EmbeddingRepo.BulkInsert: embedding %d: %w", i, err)
		}
	}
	return nil
}

// DeleteByDocument removes every embedding belonging to a document's
// chunks, so a re-run of the embedding stage starts from a clean slate
// instead of accumulating stale vectors once chunking has produced a
// fresh chunk set with new ids.
func (r *EmbeddingRepo) DeleteByDocument(ctx context.Context, documentID int64) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM embeddings WHERE chunk_id IN (
			SELECT id FROM chunks WHERE document_id = $1
		)`, documentID)
	if err != nil {
		return fmt.Errorf("repository.EmbeddingRepo.DeleteByDocument: %w", err)
	}
	return nil
}

// ListByChunk returns every embedding recorded for a chunk (one per
// model it has been embedded with).
func (r *EmbeddingRepo) ListByChunk(ctx context.Context, chunkID int64) ([]model.Embedding, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, chunk_id, model, vector, created_at FROM embeddings WHERE chunk_id = $1`,
		chunkID,
	)
	if err != nil {
		return nil, fmt.Errorf("repository.EmbeddingRepo.ListByChunk: %w", err)
	}
	defer rows.Close()

	var out []model.Embedding
	for rows.Next() {
		var e model.Embedding
		var vec pgvector.Vector
		if err := rows.Scan(&e.ID, &e.ChunkID, &e.Model, &vec, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository.EmbeddingRepo.ListByChunk: scan: %w", err)
		}
		e.Vector = vec.Slice()
		out = append(out, e)
	}
	return out, nil
}
