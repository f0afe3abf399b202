package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docpipeline/docpipeline/internal/model"
)

func getRepoTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping repository integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := NewPool(ctx, dbURL, 5)
	if err != nil {
		t.Fatalf("NewPool() error: %v", err)
	}
	return pool
}

func TestDocumentRepo_CreateFindUpdate(t *testing.T) {
	pool := getRepoTestPool(t)
	defer pool.Close()
	ctx := context.Background()
	repo := NewDocumentRepo(pool)

	doc := &model.Document{
		Source:        "repository_test.go",
		ContentHash:   "abc123",
		SchemaVersion: "v1",
		Status:        model.StatusPending,
		FileSizeBytes: 42,
		MimeType:      "text/plain",
	}
	id, err := repo.Create(ctx, doc)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	defer pool.Exec(ctx, "DELETE FROM documents WHERE id = $1", id)

	got, err := repo.FindByHash(ctx, "abc123", "v1")
	if err != nil {
		t.Fatalf("FindByHash() error: %v", err)
	}
	if got.ID != id {
		t.Errorf("FindByHash id = %d, want %d", got.ID, id)
	}

	if err := repo.UpdateStatus(ctx, id, model.StatusIngested); err != nil {
		t.Fatalf("UpdateStatus() error: %v", err)
	}
	got, err = repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if got.Status != model.StatusIngested {
		t.Errorf("Status = %q, want %q", got.Status, model.StatusIngested)
	}
}

func TestDocumentRepo_FindByHash_NotFound(t *testing.T) {
	pool := getRepoTestPool(t)
	defer pool.Close()
	ctx := context.Background()
	repo := NewDocumentRepo(pool)

	_, err := repo.FindByHash(ctx, "does-not-exist", "v1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPipelineRunRepo_AttemptAccountingAndCompletion(t *testing.T) {
	pool := getRepoTestPool(t)
	defer pool.Close()
	ctx := context.Background()
	docs := NewDocumentRepo(pool)
	runs := NewPipelineRunRepo(pool)

	id, err := docs.Create(ctx, &model.Document{
		Source: "x", ContentHash: "runhash", SchemaVersion: "v1", Status: model.StatusPending,
	})
	if err != nil {
		t.Fatalf("Create document: %v", err)
	}
	defer pool.Exec(ctx, "DELETE FROM documents WHERE id = $1", id)

	attempt, err := runs.NextAttempt(ctx, id, "chunking")
	if err != nil {
		t.Fatalf("NextAttempt: %v", err)
	}
	if attempt != 1 {
		t.Errorf("first NextAttempt = %d, want 1", attempt)
	}

	runID, err := runs.CreateRunning(ctx, id, "chunking", attempt, "corr-1")
	if err != nil {
		t.Fatalf("CreateRunning: %v", err)
	}

	if _, err := runs.FindCompleted(ctx, id, "chunking"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before completion, got %v", err)
	}

	if err := runs.MarkFailed(ctx, runID, "transient_external", "boom"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	attempt2, err := runs.NextAttempt(ctx, id, "chunking")
	if err != nil {
		t.Fatalf("NextAttempt 2: %v", err)
	}
	if attempt2 != 2 {
		t.Errorf("second NextAttempt = %d, want 2", attempt2)
	}

	runID2, err := runs.CreateRunning(ctx, id, "chunking", attempt2, "corr-1")
	if err != nil {
		t.Fatalf("CreateRunning 2: %v", err)
	}
	if err := runs.MarkCompleted(ctx, runID2); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	completed, err := runs.FindCompleted(ctx, id, "chunking")
	if err != nil {
		t.Fatalf("FindCompleted: %v", err)
	}
	if completed.Attempt != 2 {
		t.Errorf("completed.Attempt = %d, want 2", completed.Attempt)
	}

	all, err := runs.ListByDocument(ctx, id)
	if err != nil {
		t.Fatalf("ListByDocument: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("ListByDocument returned %d runs, want 2", len(all))
	}
}

func TestChunkRepo_ReplaceAllIsWholesale(t *testing.T) {
	pool := getRepoTestPool(t)
	defer pool.Close()
	ctx := context.Background()
	docs := NewDocumentRepo(pool)
	chunks := NewChunkRepo(pool)

	id, err := docs.Create(ctx, &model.Document{
		Source: "x", ContentHash: "chunkhash", SchemaVersion: "v1", Status: model.StatusPending,
	})
	if err != nil {
		t.Fatalf("Create document: %v", err)
	}
	defer pool.Exec(ctx, "DELETE FROM documents WHERE id = $1", id)

	first, err := chunks.ReplaceAll(ctx, id, []model.Chunk{
		{Sequence: 0, Text: "a", TokenCount: 1},
		{Sequence: 1, Text: "b", TokenCount: 1},
	})
	if err != nil {
		t.Fatalf("ReplaceAll first: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("len(first) = %d, want 2", len(first))
	}

	second, err := chunks.ReplaceAll(ctx, id, []model.Chunk{
		{Sequence: 0, Text: "only-one", TokenCount: 2},
	})
	if err != nil {
		t.Fatalf("ReplaceAll second: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("len(second) = %d, want 1", len(second))
	}

	listed, err := chunks.ListByDocument(ctx, id)
	if err != nil {
		t.Fatalf("ListByDocument: %v", err)
	}
	if len(listed) != 1 || listed[0].Text != "only-one" {
		t.Errorf("ListByDocument after replace = %+v, want single only-one chunk", listed)
	}
}
