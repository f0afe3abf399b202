package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/docpipeline/docpipeline/internal/hash"
	"github.com/docpipeline/docpipeline/internal/model"
	"github.com/docpipeline/docpipeline/internal/repository"
)

// submissionResponse is the body returned by POST /api/v1/documents.
type submissionResponse struct {
	DocumentID    int64  `json:"document_id"`
	CorrelationID string `json:"correlation_id"`
	Status        string `json:"status"`
}

// SubmitDocument handles POST /api/v1/documents: a multipart upload with
// a "file" part and a "schema_version" form field. Submissions whose
// (content_hash, schema_version) already exist return the existing
// document id rather than creating a duplicate.
func (d *Dependencies) SubmitDocument(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(d.Config.StorageMaxFileSizeMB) * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20) // leave room for multipart overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	schemaVersion := r.FormValue("schema_version")
	if schemaVersion == "" {
		writeError(w, http.StatusBadRequest, "schema_version is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read upload")
		return
	}
	if int64(len(content)) > maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "file exceeds maximum size")
		return
	}

	ctx := r.Context()
	contentHash := hash.Content(content)

	existing, err := d.Documents.FindByHash(ctx, contentHash, schemaVersion)
	if err == nil {
		writeJSON(w, http.StatusOK, submissionResponse{
			DocumentID:    existing.ID,
			CorrelationID: uuid.NewString(),
			Status:        string(existing.Status),
		})
		return
	}
	if err != repository.ErrNotFound {
		writeError(w, http.StatusInternalServerError, "failed to check for duplicate")
		return
	}

	doc := &model.Document{
		Source:        header.Filename,
		ContentHash:   contentHash,
		SchemaVersion: schemaVersion,
		Status:        model.StatusPending,
		FileSizeBytes: int64(len(content)),
		MimeType:      detectMimeType(header, content),
	}
	docID, err := d.Documents.Create(ctx, doc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create document")
		return
	}

	if err := d.RawContent.Create(ctx, docID, content, false); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store content")
		return
	}

	correlationID := uuid.NewString()
	go d.runPipelineAsync(docID, correlationID)

	writeJSON(w, http.StatusOK, submissionResponse{
		DocumentID:    docID,
		CorrelationID: correlationID,
		Status:        string(model.StatusPending),
	})
}

// runPipelineAsync drives the engine in the background so the HTTP
// request returns immediately with the document id; status and
// extractions are polled through their own endpoints.
func (d *Dependencies) runPipelineAsync(documentID int64, correlationID string) {
	ctx := context.Background()
	if err := d.Engine.Run(ctx, documentID, correlationID); err != nil {
		slog.Error("pipeline run failed", "document_id", documentID, "correlation_id", correlationID, "error", err)
	}
}

func detectMimeType(header *multipart.FileHeader, content []byte) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return http.DetectContentType(content)
}

// documentIDParam extracts and parses the {id} path parameter shared by
// every per-document endpoint.
func documentIDParam(r *http.Request) (int64, bool) {
	return parseInt64(chi.URLParam(r, "id"))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
