package handler

import (
	"net/http"

	"github.com/docpipeline/docpipeline/internal/repository"
)

type stageMetricView struct {
	Stage     string   `json:"stage"`
	LatencyMs float64  `json:"latency_ms"`
	TokensIn  *int     `json:"tokens_in,omitempty"`
	TokensOut *int     `json:"tokens_out,omitempty"`
	CostUSD   *float64 `json:"cost_usd,omitempty"`
}

type documentMetricsResponse struct {
	DocumentID     int64             `json:"document_id"`
	TotalTokensIn  int               `json:"total_tokens_in"`
	TotalTokensOut int               `json:"total_tokens_out"`
	TotalCostUSD   float64           `json:"total_cost_usd"`
	ValidCount     int               `json:"valid_count"`
	InvalidCount   int               `json:"invalid_count"`
	StageMetrics   []stageMetricView `json:"stage_metrics"`
}

// DocumentMetrics handles GET /api/v1/documents/{id}/metrics.
func (d *Dependencies) DocumentMetrics(w http.ResponseWriter, r *http.Request) {
	id, ok := documentIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	ctx := r.Context()
	if _, err := d.Documents.GetByID(ctx, id); err == repository.ErrNotFound {
		writeError(w, http.StatusNotFound, "document not found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load document")
		return
	}

	samples, err := d.Metrics.ListByDocument(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load stage metrics")
		return
	}

	extractionList, err := d.Extractions.ListByDocument(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load extractions")
		return
	}

	resp := documentMetricsResponse{DocumentID: id}
	for _, e := range extractionList {
		resp.TotalTokensIn += e.TokensIn
		resp.TotalTokensOut += e.TokensOut
		resp.TotalCostUSD += e.CostUSD
		if e.IsValid {
			resp.ValidCount++
		} else {
			resp.InvalidCount++
		}
	}

	for _, m := range samples {
		resp.StageMetrics = append(resp.StageMetrics, stageMetricView{
			Stage:     m.Stage,
			LatencyMs: m.LatencyMs,
			TokensIn:  m.TokensIn,
			TokensOut: m.TokensOut,
			CostUSD:   m.CostUSD,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
