package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docpipeline/docpipeline/internal/model"
)

// ErrNotFound is returned by Get-style methods when no row matches.
var ErrNotFound = errors.New("repository: not found")

// DocumentRepo implements the document half of the store adapter: create
// with dedup-on-conflict, status transitions, and lookup by id or by
// (content_hash, schema_version).
type DocumentRepo struct {
	pool *pgxpool.Pool
}

// NewDocumentRepo creates a DocumentRepo.
func NewDocumentRepo(pool *pgxpool.Pool) *DocumentRepo {
	return &DocumentRepo{pool: pool}
}

// FindByHash looks up a document by its natural de-duplication key. It
// returns ErrNotFound when no document matches, so callers can distinguish
// "create a new one" from a genuine storage failure.
func (r *DocumentRepo) FindByHash(ctx context.Context, contentHash, schemaVersion string) (*model.Document, error) {
	d := &model.Document{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, source, content_hash, schema_version, status, file_size_bytes, mime_type, created_at, updated_at
		FROM documents WHERE content_hash = $1 AND schema_version = $2`,
		contentHash, schemaVersion,
	).Scan(&d.ID, &d.Source, &d.ContentHash, &d.SchemaVersion, &d.Status, &d.FileSizeBytes, &d.MimeType, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository.FindByHash: %w", err)
	}
	return d, nil
}

// Create inserts a new document row with status pending and returns its
// assigned id.
func (r *DocumentRepo) Create(ctx context.Context, d *model.Document) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO documents (source, content_hash, schema_version, status, file_size_bytes, mime_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		d.Source, d.ContentHash, d.SchemaVersion, d.Status, d.FileSizeBytes, d.MimeType,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("repository.Create: %w", err)
	}
	return id, nil
}

// GetByID loads a single document by id.
func (r *DocumentRepo) GetByID(ctx context.Context, id int64) (*model.Document, error) {
	d := &model.Document{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, source, content_hash, schema_version, status, file_size_bytes, mime_type, created_at, updated_at
		FROM documents WHERE id = $1`, id,
	).Scan(&d.ID, &d.Source, &d.ContentHash, &d.SchemaVersion, &d.Status, &d.FileSizeBytes, &d.MimeType, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository.GetByID: %w", err)
	}
	return d, nil
}

// UpdateMimeType overwrites a document's recorded mime type. The
// text_extraction stage uses this after flattening raw_content to plain
// text, so later stages read the same column without re-detecting format.
func (r *DocumentRepo) UpdateMimeType(ctx context.Context, id int64, mimeType string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE documents SET mime_type = $1, updated_at = now() WHERE id = $2`,
		mimeType, id,
	)
	if err != nil {
		return fmt.Errorf("repository.UpdateMimeType: %w", err)
	}
	return nil
}

// UpdateStatus advances a document's lifecycle status. Each stage calls
// this after its own work succeeds, and the engine calls it once more with
// completed after every stage has succeeded or been skipped.
func (r *DocumentRepo) UpdateStatus(ctx context.Context, id int64, status model.DocumentStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE documents SET status = $1, updated_at = now() WHERE id = $2`,
		string(status), id,
	)
	if err != nil {
		return fmt.Errorf("repository.UpdateStatus: %w", err)
	}
	return nil
}
