package stages

import (
	"context"

	"github.com/docpipeline/docpipeline/internal/model"
	"github.com/docpipeline/docpipeline/internal/pipelineerr"
	"github.com/docpipeline/docpipeline/internal/repository"
	"github.com/docpipeline/docpipeline/internal/service"
)

// ValidationStage validates every extraction belonging to a document
// against its schema, replacing any ValidationErrors left by a prior
// attempt before recording the fresh verdict.
type ValidationStage struct {
	documents        *repository.DocumentRepo
	extractions      *repository.ExtractionRepo
	validationErrors *repository.ValidationErrorRepo
	schemas          *service.SchemaRegistry
	validator        *service.SchemaValidator
}

// NewValidationStage builds a ValidationStage.
func NewValidationStage(
	documents *repository.DocumentRepo,
	extractions *repository.ExtractionRepo,
	validationErrors *repository.ValidationErrorRepo,
	schemas *service.SchemaRegistry,
	validator *service.SchemaValidator,
) *ValidationStage {
	return &ValidationStage{
		documents:        documents,
		extractions:      extractions,
		validationErrors: validationErrors,
		schemas:          schemas,
		validator:        validator,
	}
}

// Name implements service.Stage.
func (s *ValidationStage) Name() string { return "validation" }

// Run implements service.Stage.
func (s *ValidationStage) Run(ctx context.Context, documentID int64) error {
	extractionList, err := s.extractions.ListByDocument(ctx, documentID)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.KindPipelineState, "validation: list extractions", err)
	}

	for _, e := range extractionList {
		if err := s.validateOne(ctx, e); err != nil {
			return err
		}
	}

	if err := s.documents.UpdateStatus(ctx, documentID, model.StatusValidated); err != nil {
		return pipelineerr.Wrap(pipelineerr.KindStorage, "validation: update status", err)
	}
	return nil
}

func (s *ValidationStage) validateOne(ctx context.Context, e model.Extraction) error {
	schema, err := s.schemas.Get(e.SchemaVersion)
	if err != nil {
		return err
	}

	if err := s.validationErrors.DeleteByExtraction(ctx, e.ID); err != nil {
		return pipelineerr.Wrap(pipelineerr.KindStorage, "validation: delete prior violations", err)
	}

	result, err := s.validator.Validate(schema, e.JSONResult)
	if err != nil {
		return err
	}

	if err := s.extractions.SetValid(ctx, e.ID, result.IsValid); err != nil {
		return pipelineerr.Wrap(pipelineerr.KindStorage, "validation: set is_valid", err)
	}

	if len(result.Errors) == 0 {
		return nil
	}
	violations := make([]model.ValidationError, len(result.Errors))
	for i, v := range result.Errors {
		violations[i] = model.ValidationError{ExtractionID: e.ID, JSONPath: v.JSONPath, Message: v.Message}
	}
	if err := s.validationErrors.BulkInsert(ctx, e.ID, violations); err != nil {
		return pipelineerr.Wrap(pipelineerr.KindStorage, "validation: insert violations", err)
	}
	return nil
}
