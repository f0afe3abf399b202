package stages

import (
	"context"
	"fmt"

	"github.com/docpipeline/docpipeline/internal/model"
	"github.com/docpipeline/docpipeline/internal/pipelineerr"
	"github.com/docpipeline/docpipeline/internal/repository"
)

// MetricsAndAuditStage closes out a document's run: it rolls up total
// modeled cost across every PipelineRun attempt and writes one audit_log
// row naming the field names the pipeline's configuration marks as
// sensitive (REDACT_FIELDS), so an auditor can see what was redacted
// without the audit trail itself needing to carry the redacted values.
// Structured-logging and redaction internals are out of scope; this
// stage only records which field names apply, the same list the log
// formatter consults elsewhere.
type MetricsAndAuditStage struct {
	documents    *repository.DocumentRepo
	metrics      *repository.MetricRepo
	auditLog     *repository.AuditLogRepo
	redactFields []string
}

// NewMetricsAndAuditStage builds a MetricsAndAuditStage.
func NewMetricsAndAuditStage(documents *repository.DocumentRepo, metrics *repository.MetricRepo, auditLog *repository.AuditLogRepo, redactFields []string) *MetricsAndAuditStage {
	return &MetricsAndAuditStage{documents: documents, metrics: metrics, auditLog: auditLog, redactFields: redactFields}
}

// Name implements service.Stage.
func (s *MetricsAndAuditStage) Name() string { return "metrics_and_audit" }

// Run implements service.Stage.
func (s *MetricsAndAuditStage) Run(ctx context.Context, documentID int64) error {
	totalCost, err := s.metrics.SumCostByDocument(ctx, documentID)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.KindStorage, "metrics_and_audit: sum cost", err)
	}

	event := fmt.Sprintf("pipeline_run_finished cost_usd=%.6f", totalCost)
	if err := s.auditLog.Record(ctx, documentID, event, s.redactFields); err != nil {
		return pipelineerr.Wrap(pipelineerr.KindStorage, "metrics_and_audit: record audit entry", err)
	}

	if err := s.documents.UpdateStatus(ctx, documentID, model.StatusCompleted); err != nil {
		return pipelineerr.Wrap(pipelineerr.KindStorage, "metrics_and_audit: update status", err)
	}
	return nil
}
