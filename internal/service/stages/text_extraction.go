package stages

import (
	"context"

	"github.com/docpipeline/docpipeline/internal/model"
	"github.com/docpipeline/docpipeline/internal/pipelineerr"
	"github.com/docpipeline/docpipeline/internal/repository"
	"github.com/docpipeline/docpipeline/internal/service"
)

// TextExtractionStage decodes a document's raw bytes into plain text
// according to its mime type, then overwrites raw_content in place and
// flips the document's mime type to text/plain. Later stages read the
// same column without re-detecting format, and a resumed run after a
// crash sees the already-flattened text rather than re-decoding.
type TextExtractionStage struct {
	documents  *repository.DocumentRepo
	rawContent *repository.RawContentRepo
	extractor  *service.TextExtractor
}

// NewTextExtractionStage builds a TextExtractionStage.
func NewTextExtractionStage(documents *repository.DocumentRepo, rawContent *repository.RawContentRepo, extractor *service.TextExtractor) *TextExtractionStage {
	return &TextExtractionStage{documents: documents, rawContent: rawContent, extractor: extractor}
}

// Name implements service.Stage.
func (s *TextExtractionStage) Name() string { return "text_extraction" }

// Run implements service.Stage.
func (s *TextExtractionStage) Run(ctx context.Context, documentID int64) error {
	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.KindPipelineState, "text_extraction: load document", err)
	}

	rc, err := s.rawContent.GetByDocumentID(ctx, documentID)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.KindPipelineState, "text_extraction: load raw content", err)
	}

	text, err := s.extractor.Extract(doc.MimeType, rc.Content)
	if err != nil {
		return err
	}

	if err := s.rawContent.UpdateContent(ctx, documentID, []byte(text)); err != nil {
		return pipelineerr.Wrap(pipelineerr.KindStorage, "text_extraction: update content", err)
	}
	if err := s.documents.UpdateMimeType(ctx, documentID, "text/plain"); err != nil {
		return pipelineerr.Wrap(pipelineerr.KindStorage, "text_extraction: update mime type", err)
	}
	if err := s.documents.UpdateStatus(ctx, documentID, model.StatusTextExtracted); err != nil {
		return pipelineerr.Wrap(pipelineerr.KindStorage, "text_extraction: update status", err)
	}
	return nil
}
