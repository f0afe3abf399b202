package stages

import (
	"context"
	"regexp"
	"strings"

	"github.com/docpipeline/docpipeline/internal/model"
	"github.com/docpipeline/docpipeline/internal/pipelineerr"
	"github.com/docpipeline/docpipeline/internal/repository"
)

// LayoutNormalizationStage flattens whitespace noise left over from
// text extraction. It does not attempt real layout reconstruction
// (column detection, reading order, table structure) — those require a
// rendering backend this module does not depend on — so it is limited
// to the honest, deterministic subset: trimming trailing whitespace per
// line and collapsing runs of three or more blank lines down to one,
// so the chunker's paragraph splitter sees a consistent blank-line
// convention regardless of the source format.
type LayoutNormalizationStage struct {
	documents  *repository.DocumentRepo
	rawContent *repository.RawContentRepo
}

// NewLayoutNormalizationStage builds a LayoutNormalizationStage.
func NewLayoutNormalizationStage(documents *repository.DocumentRepo, rawContent *repository.RawContentRepo) *LayoutNormalizationStage {
	return &LayoutNormalizationStage{documents: documents, rawContent: rawContent}
}

// Name implements service.Stage.
func (s *LayoutNormalizationStage) Name() string { return "layout_normalization" }

var excessBlankLinesRe = regexp.MustCompile(`\n{3,}`)

// Run implements service.Stage.
func (s *LayoutNormalizationStage) Run(ctx context.Context, documentID int64) error {
	rc, err := s.rawContent.GetByDocumentID(ctx, documentID)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.KindPipelineState, "layout_normalization: load raw content", err)
	}

	normalized := normalizeWhitespace(string(rc.Content))

	if err := s.rawContent.UpdateContent(ctx, documentID, []byte(normalized)); err != nil {
		return pipelineerr.Wrap(pipelineerr.KindStorage, "layout_normalization: update content", err)
	}
	if err := s.documents.UpdateStatus(ctx, documentID, model.StatusLayoutNormalized); err != nil {
		return pipelineerr.Wrap(pipelineerr.KindStorage, "layout_normalization: update status", err)
	}
	return nil
}

func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	return excessBlankLinesRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
}
