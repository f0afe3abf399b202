package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docpipeline/docpipeline/internal/model"
)

// RawContentRepo stores the immutable bytes submitted for a document.
type RawContentRepo struct {
	pool *pgxpool.Pool
}

// NewRawContentRepo creates a RawContentRepo.
func NewRawContentRepo(pool *pgxpool.Pool) *RawContentRepo {
	return &RawContentRepo{pool: pool}
}

// Create stores the raw bytes for a document. One row per document; a
// second call for the same document_id fails on the unique constraint.
func (r *RawContentRepo) Create(ctx context.Context, documentID int64, content []byte, isHashed bool) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO raw_content (document_id, content, is_hashed)
		VALUES ($1, $2, $3)`,
		documentID, content, isHashed,
	)
	if err != nil {
		return fmt.Errorf("repository.RawContentRepo.Create: %w", err)
	}
	return nil
}

// UpdateContent overwrites the stored bytes for a document in place.
// text_extraction uses this to replace the original submission with its
// decoded plain text, so layout_normalization and chunking can read the
// same column idempotently on a resumed run without re-decoding.
func (r *RawContentRepo) UpdateContent(ctx context.Context, documentID int64, content []byte) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE raw_content SET content = $1 WHERE document_id = $2`,
		content, documentID,
	)
	if err != nil {
		return fmt.Errorf("repository.RawContentRepo.UpdateContent: %w", err)
	}
	return nil
}

// GetByDocumentID fetches the raw content row for a document.
func (r *RawContentRepo) GetByDocumentID(ctx context.Context, documentID int64) (*model.RawContent, error) {
	rc := &model.RawContent{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, document_id, content, is_hashed, created_at
		FROM raw_content WHERE document_id = $1`, documentID,
	).Scan(&rc.ID, &rc.DocumentID, &rc.Content, &rc.IsHashed, &rc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository.RawContentRepo.GetByDocumentID: %w", err)
	}
	return rc, nil
}
