// Package pipelineerr provides the unified error taxonomy for the pipeline
// engine and its stages.
package pipelineerr

import (
	"errors"
	"fmt"
)

// Kind identifies which category of failure a stage encountered. The
// engine's retry decision is a pure function of Kind: only
// KindTransientExternal is retryable.
type Kind string

const (
	// KindTransientExternal covers network timeouts, 5xx responses, and
	// connection resets from any external dependency (model service,
	// embedding service). Retryable.
	KindTransientExternal Kind = "transient_external"

	// KindModelOutput covers a model response that is not valid JSON, or
	// that is valid JSON but fails to parse into the expected shape
	// before schema validation even runs.
	KindModelOutput Kind = "model_output"

	// KindSchemaValidation covers a structurally valid JSON response
	// that fails Draft-07 validation against the target schema.
	KindSchemaValidation Kind = "schema_validation"

	// KindSchemaRegistry covers a missing, unreadable, or malformed
	// schema file.
	KindSchemaRegistry Kind = "schema_registry"

	// KindPipelineState covers a run-table invariant violation, such as
	// a stage being asked to run out of order or finding more than one
	// completed row for a (document, stage) pair.
	KindPipelineState Kind = "pipeline_state"

	// KindStorage covers any repository/database failure not better
	// classified as PipelineState.
	KindStorage Kind = "storage"

	// KindConfiguration covers missing or invalid configuration
	// discovered at startup or first use.
	KindConfiguration Kind = "configuration"

	// KindIngestion covers malformed or unreadable submitted content.
	KindIngestion Kind = "ingestion"

	// KindExtraction covers structured-extraction stage failures other
	// than model output or schema problems (for example, chunk fan-out
	// bookkeeping errors).
	KindExtraction Kind = "extraction"

	// KindChunking covers chunker invariant violations (for example, a
	// negative overlap or zero chunk budget).
	KindChunking Kind = "chunking"

	// KindEmbedding covers embedding-service failures other than
	// transient network errors (for example, a dimension mismatch).
	KindEmbedding Kind = "embedding"
)

// retryable is the fixed map from Kind to whether the engine should retry
// a stage that failed with that Kind. This is the only place that
// decision is made; callers must go through Retryable or IsRetryable.
var retryable = map[Kind]bool{
	KindTransientExternal: true,
	KindModelOutput:       false,
	KindSchemaValidation:  false,
	KindSchemaRegistry:    false,
	KindPipelineState:     false,
	KindStorage:           false,
	KindConfiguration:     false,
	KindIngestion:         false,
	KindExtraction:        false,
	KindChunking:          false,
	KindEmbedding:         false,
}

// Error is the structured error type returned by stages and the services
// they call. Stage is populated by the engine when it wraps a stage's
// returned error for persistence; callers constructing an Error directly
// may leave it empty.
type Error struct {
	Kind    Kind
	Stage   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error wrapping an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithStage returns a copy of e tagged with the stage that produced it.
func (e *Error) WithStage(stage string) *Error {
	cp := *e
	cp.Stage = stage
	return &cp
}

// Retryable reports whether this Kind's failures should be retried by the
// engine's backoff loop.
func (k Kind) Retryable() bool {
	return retryable[k]
}

// IsRetryable extracts a Kind from err (if any) and reports whether the
// engine should retry. An error that is not a *Error is treated as
// non-retryable, since it carries no classification.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind.Retryable()
	}
	return false
}

// KindOf extracts the Kind from err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
