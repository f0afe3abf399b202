package stages

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/docpipeline/docpipeline/internal/hash"
	"github.com/docpipeline/docpipeline/internal/model"
	"github.com/docpipeline/docpipeline/internal/pipelineerr"
	"github.com/docpipeline/docpipeline/internal/repository"
	"github.com/docpipeline/docpipeline/internal/service"
)

const structuredExtractionPrompt = "Return only valid JSON conforming to the schema below, " +
	"extracted from the following text.\n\nText:\n"

// StructuredExtractionStage fans out one model call per chunk, bounded
// by MaxConcurrentChunks. Each chunk writes disjoint rows keyed by
// chunk_id, so the fan-out is safe to run concurrently; a failure on
// one chunk does not undo a sibling's already-committed row.
type StructuredExtractionStage struct {
	documents        *repository.DocumentRepo
	chunks           *repository.ChunkRepo
	extractions      *repository.ExtractionRepo
	prompts          *repository.PromptRepo
	schemas          *service.SchemaRegistry
	llm              *service.LLMClient
	modelName        string
	temperature      float64
	maxTokens        int
	maxConcurrent    int
	costPerInput     float64
	costPerOutput    float64
	persistPrompts   bool
	persistResponses bool
}

// StructuredExtractionConfig carries the tunables read from config.Config.
type StructuredExtractionConfig struct {
	ModelName        string
	Temperature      float64
	MaxTokens        int
	MaxConcurrent    int
	CostPerInput     float64
	CostPerOutput    float64
	PersistPrompts   bool
	PersistResponses bool
}

// NewStructuredExtractionStage builds a StructuredExtractionStage.
func NewStructuredExtractionStage(
	documents *repository.DocumentRepo,
	chunks *repository.ChunkRepo,
	extractions *repository.ExtractionRepo,
	prompts *repository.PromptRepo,
	schemas *service.SchemaRegistry,
	llm *service.LLMClient,
	cfg StructuredExtractionConfig,
) *StructuredExtractionStage {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	return &StructuredExtractionStage{
		documents:        documents,
		chunks:           chunks,
		extractions:      extractions,
		prompts:          prompts,
		schemas:          schemas,
		llm:              llm,
		modelName:        cfg.ModelName,
		temperature:      cfg.Temperature,
		maxTokens:        cfg.MaxTokens,
		maxConcurrent:    maxConcurrent,
		costPerInput:     cfg.CostPerInput,
		costPerOutput:    cfg.CostPerOutput,
		persistPrompts:   cfg.PersistPrompts,
		persistResponses: cfg.PersistResponses,
	}
}

// Name implements service.Stage.
func (s *StructuredExtractionStage) Name() string { return "structured_extraction" }

// Run implements service.Stage.
func (s *StructuredExtractionStage) Run(ctx context.Context, documentID int64) error {
	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.KindPipelineState, "structured_extraction: load document", err)
	}

	schema, err := s.schemas.Get(doc.SchemaVersion)
	if err != nil {
		return err
	}

	chunkList, err := s.chunks.ListByDocument(ctx, documentID)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.KindPipelineState, "structured_extraction: list chunks", err)
	}
	if len(chunkList) == 0 {
		return pipelineerr.New(pipelineerr.KindPipelineState, "structured_extraction: document has no chunks")
	}

	if err := s.extractions.DeleteByDocument(ctx, documentID); err != nil {
		return pipelineerr.Wrap(pipelineerr.KindStorage, "structured_extraction: delete prior extractions", err)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)

	for _, chunk := range chunkList {
		chunk := chunk
		g.Go(func() error {
			return s.extractChunk(gCtx, doc.SchemaVersion, schema, chunk)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := s.documents.UpdateStatus(ctx, documentID, model.StatusExtracted); err != nil {
		return pipelineerr.Wrap(pipelineerr.KindStorage, "structured_extraction: update status", err)
	}
	return nil
}

func (s *StructuredExtractionStage) extractChunk(ctx context.Context, schemaVersion string, schema *service.Schema, chunk model.Chunk) error {
	prompt := structuredExtractionPrompt + chunk.Text
	promptHash := hash.String(prompt)

	result, err := s.llm.GenerateStructured(ctx, prompt, string(schema.Raw), s.temperature, s.maxTokens)
	if err != nil {
		return err
	}

	cost := service.CostUSD(result.TokensIn, result.TokensOut, s.costPerInput, s.costPerOutput)

	extraction := &model.Extraction{
		ChunkID:       chunk.ID,
		SchemaVersion: schemaVersion,
		Model:         s.modelName,
		JSONResult:    result.ParsedJSON,
		IsValid:       false,
		LatencyMs:     result.LatencyMs,
		TokensIn:      result.TokensIn,
		TokensOut:     result.TokensOut,
		CostUSD:       cost,
		PromptHash:    &promptHash,
	}
	if s.persistResponses {
		extraction.RawResponse = &result.RawResponse
	}

	extractionID, err := s.extractions.Create(ctx, extraction)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.KindStorage, "structured_extraction: insert extraction", err)
	}

	if s.persistPrompts {
		p := &model.Prompt{ExtractionID: extractionID, PromptText: prompt, PromptHash: promptHash}
		if err := s.prompts.Create(ctx, p); err != nil {
			return pipelineerr.Wrap(pipelineerr.KindStorage, "structured_extraction: insert prompt", err)
		}
	}
	return nil
}
