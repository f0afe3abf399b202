package model

import "time"

// DocumentStatus is the lifecycle status of a Document, advanced by the
// pipeline engine as stages complete.
type DocumentStatus string

const (
	StatusPending          DocumentStatus = "pending"
	StatusIngested         DocumentStatus = "ingested"
	StatusTextExtracted    DocumentStatus = "text_extracted"
	StatusLayoutNormalized DocumentStatus = "layout_normalized"
	StatusChunked          DocumentStatus = "chunked"
	StatusEmbedded         DocumentStatus = "embedded"
	StatusExtracted        DocumentStatus = "extracted"
	StatusValidated        DocumentStatus = "validated"
	StatusPersisted        DocumentStatus = "persisted"
	StatusCompleted        DocumentStatus = "completed"
	StatusFailed           DocumentStatus = "failed"
)

// Document is a single submitted blob plus its metadata.
// (content_hash, schema_version) is the natural de-duplication key: a
// submission matching an existing pair returns the existing id.
type Document struct {
	ID            int64          `json:"id"`
	Source        string         `json:"source"`
	ContentHash   string         `json:"contentHash"`
	SchemaVersion string         `json:"schemaVersion"`
	Status        DocumentStatus `json:"status"`
	FileSizeBytes int64          `json:"fileSizeBytes"`
	MimeType      string         `json:"mimeType"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// RawContent holds the immutable bytes submitted for a Document, one-to-one.
// SHA-256(Content) must equal Document.ContentHash at ingest time.
type RawContent struct {
	ID         int64     `json:"id"`
	DocumentID int64     `json:"documentId"`
	Content    []byte    `json:"-"`
	IsHashed   bool      `json:"isHashed"`
	CreatedAt  time.Time `json:"createdAt"`
}

// RunStatus is the status of a single PipelineRun attempt.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// MaxErrorMessageLen is the truncation length for PipelineRun.error_message.
const MaxErrorMessageLen = 1000

// PipelineRun is one row per (document_id, stage, attempt). It is the
// durable state machine the engine reasons about: the existence of a
// completed row for (document_id, stage) is the only "skip this stage"
// signal, so a crashed process resuming the same document converges on
// the same result.
type PipelineRun struct {
	ID            int64      `json:"id"`
	DocumentID    int64      `json:"documentId"`
	Stage         string     `json:"stage"`
	Status        RunStatus  `json:"status"`
	Attempt       int        `json:"attempt"`
	ErrorType     *string    `json:"errorType,omitempty"`
	ErrorMessage  *string    `json:"errorMessage,omitempty"`
	StartedAt     time.Time  `json:"startedAt"`
	FinishedAt    *time.Time `json:"finishedAt,omitempty"`
	CorrelationID string     `json:"correlationId"`
}

// Chunk is a contiguous text segment produced by the chunker, bounded by a
// token budget, with a dense 0-based sequence within its Document.
type Chunk struct {
	ID         int64     `json:"id"`
	DocumentID int64     `json:"documentId"`
	Sequence   int       `json:"sequence"`
	Text       string    `json:"text"`
	TokenCount int       `json:"tokenCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Embedding is one-to-one with a Chunk per model, storing a binary-packed
// float32 vector.
type Embedding struct {
	ID        int64     `json:"id"`
	ChunkID   int64     `json:"chunkId"`
	Model     string    `json:"model"`
	Vector    []float32 `json:"vector"`
	CreatedAt time.Time `json:"createdAt"`
}

// Extraction is the model's JSON answer for one chunk under one schema.
// The JSON stored is whatever the model returned parsed as a JSON value;
// no transformation beyond markdown-fence stripping.
type Extraction struct {
	ID            int64     `json:"id"`
	ChunkID       int64     `json:"chunkId"`
	SchemaVersion string    `json:"schemaVersion"`
	Model         string    `json:"model"`
	JSONResult    string    `json:"jsonResult"`
	IsValid       bool      `json:"isValid"`
	LatencyMs     float64   `json:"latencyMs"`
	TokensIn      int       `json:"tokensIn"`
	TokensOut     int       `json:"tokensOut"`
	CostUSD       float64   `json:"costUsd"`
	PromptHash    *string   `json:"promptHash,omitempty"`
	RawResponse   *string   `json:"rawResponse,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ValidationError is a child of Extraction describing one schema violation.
type ValidationError struct {
	ID           int64     `json:"id"`
	ExtractionID int64     `json:"extractionId"`
	JSONPath     string    `json:"jsonPath"`
	Message      string    `json:"message"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Metric captures one (stage, latency_ms, tokens_in?, tokens_out?, cost_usd?)
// sample, written at both success and failure of a run attempt.
type Metric struct {
	ID        int64     `json:"id"`
	RunID     int64     `json:"runId"`
	Stage     string    `json:"stage"`
	LatencyMs float64   `json:"latencyMs"`
	TokensIn  *int      `json:"tokensIn,omitempty"`
	TokensOut *int      `json:"tokensOut,omitempty"`
	CostUSD   *float64  `json:"costUsd,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Prompt is an optional child of Extraction storing the full prompt text
// plus its SHA-256 for provenance.
type Prompt struct {
	ID           int64     `json:"id"`
	ExtractionID int64     `json:"extractionId"`
	PromptText   string    `json:"promptText"`
	PromptHash   string    `json:"promptHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// MaxFileSizeBytes is the default maximum allowed upload size (100 MB),
// overridden by config.Config.StorageMaxFileSizeMB.
const MaxFileSizeBytes = 100 * 1024 * 1024
