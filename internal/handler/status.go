package handler

import (
	"net/http"
	"time"

	"github.com/docpipeline/docpipeline/internal/repository"
)

type stageStatus struct {
	Stage        string     `json:"stage"`
	Status       string     `json:"status"`
	Attempt      int        `json:"attempt"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	ErrorType    *string    `json:"error_type,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
}

type documentStatusResponse struct {
	DocumentID    int64         `json:"document_id"`
	Source        string        `json:"source"`
	SchemaVersion string        `json:"schema_version"`
	Status        string        `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	Stages        []stageStatus `json:"stages"`
}

// DocumentStatus handles GET /api/v1/documents/{id}/status.
func (d *Dependencies) DocumentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := documentIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	ctx := r.Context()
	doc, err := d.Documents.GetByID(ctx, id)
	if err == repository.ErrNotFound {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load document")
		return
	}

	runs, err := d.PipelineRuns.ListByDocument(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load pipeline runs")
		return
	}

	stages := make([]stageStatus, len(runs))
	for i, run := range runs {
		stages[i] = stageStatus{
			Stage:        run.Stage,
			Status:       string(run.Status),
			Attempt:      run.Attempt,
			StartedAt:    run.StartedAt,
			FinishedAt:   run.FinishedAt,
			ErrorType:    run.ErrorType,
			ErrorMessage: run.ErrorMessage,
		}
	}

	writeJSON(w, http.StatusOK, documentStatusResponse{
		DocumentID:    doc.ID,
		Source:        doc.Source,
		SchemaVersion: doc.SchemaVersion,
		Status:        string(doc.Status),
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
		Stages:        stages,
	})
}
