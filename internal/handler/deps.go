// Package handler holds the thin HTTP drivers over the pipeline engine
// and store. Handlers do no business logic of their own: they parse a
// request, call into the engine or a repository, and serialize the
// result.
package handler

import (
	"github.com/docpipeline/docpipeline/internal/config"
	"github.com/docpipeline/docpipeline/internal/repository"
	"github.com/docpipeline/docpipeline/internal/service"
)

// Dependencies bundles everything the HTTP surface needs, wired once in
// cmd/server/main.go and threaded into every handler constructor.
type Dependencies struct {
	Config *config.Config

	Documents        *repository.DocumentRepo
	RawContent       *repository.RawContentRepo
	PipelineRuns     *repository.PipelineRunRepo
	Chunks           *repository.ChunkRepo
	Extractions      *repository.ExtractionRepo
	ValidationErrors *repository.ValidationErrorRepo
	Metrics          *repository.MetricRepo

	Engine *service.PipelineEngine
}
