package handler

import (
	"net/http"

	"github.com/docpipeline/docpipeline/internal/repository"
)

type validationErrorView struct {
	JSONPath string `json:"json_path"`
	Message  string `json:"message"`
}

type extractionView struct {
	ChunkID          int64                 `json:"chunk_id"`
	Sequence         int                   `json:"sequence"`
	JSONResult       string                `json:"json_result"`
	IsValid          bool                  `json:"is_valid"`
	ValidationErrors []validationErrorView `json:"validation_errors"`
	LatencyMs        float64               `json:"latency_ms"`
	TokensIn         int                   `json:"tokens_in"`
	TokensOut        int                   `json:"tokens_out"`
	CostUSD          float64               `json:"cost_usd"`
}

type extractionsResponse struct {
	DocumentID    int64            `json:"document_id"`
	SchemaVersion string           `json:"schema_version"`
	Extractions   []extractionView `json:"extractions"`
	TotalCostUSD  float64          `json:"total_cost_usd"`
}

// DocumentExtractions handles GET /api/v1/documents/{id}/extractions.
func (d *Dependencies) DocumentExtractions(w http.ResponseWriter, r *http.Request) {
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

	chunkList, err := d.Chunks.ListByDocument(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load chunks")
		return
	}
	sequenceByChunk := make(map[int64]int, len(chunkList))
	for _, c := range chunkList {
		sequenceByChunk[c.ID] = c.Sequence
	}

	extractionList, err := d.Extractions.ListByDocument(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load extractions")
		return
	}

	views := make([]extractionView, len(extractionList))
	var totalCost float64
	for i, e := range extractionList {
		violations, err := d.ValidationErrors.ListByExtraction(ctx, e.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load validation errors")
			return
		}
		violationViews := make([]validationErrorView, len(violations))
		for j, v := range violations {
			violationViews[j] = validationErrorView{JSONPath: v.JSONPath, Message: v.Message}
		}

		views[i] = extractionView{
			ChunkID:          e.ChunkID,
			Sequence:         sequenceByChunk[e.ChunkID],
			JSONResult:       e.JSONResult,
			IsValid:          e.IsValid,
			ValidationErrors: violationViews,
			LatencyMs:        e.LatencyMs,
			TokensIn:         e.TokensIn,
			TokensOut:        e.TokensOut,
			CostUSD:          e.CostUSD,
		}
		totalCost += e.CostUSD
	}

	writeJSON(w, http.StatusOK, extractionsResponse{
		DocumentID:    doc.ID,
		SchemaVersion: doc.SchemaVersion,
		Extractions:   views,
		TotalCostUSD:  totalCost,
	})
}
