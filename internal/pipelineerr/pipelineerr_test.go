package pipelineerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsRetryable_OnlyTransientExternal(t *testing.T) {
	cases := []struct {
		kind Kind
		want bool
	}{
		{KindTransientExternal, true},
		{KindModelOutput, false},
		{KindSchemaValidation, false},
		{KindSchemaRegistry, false},
		{KindPipelineState, false},
		{KindStorage, false},
		{KindConfiguration, false},
		{KindIngestion, false},
		{KindExtraction, false},
		{KindChunking, false},
		{KindEmbedding, false},
	}
	for _, c := range cases {
		err := New(c.kind, "boom")
		if got := IsRetryable(err); got != c.want {
			t.Errorf("IsRetryable(%s) = %v, want %v", c.kind, got, c.want)
		}
	}
}

func TestIsRetryable_NonTaxonomyError(t *testing.T) {
	if IsRetryable(errors.New("plain")) {
		t.Error("plain errors must never be treated as retryable")
	}
}

func TestError_UnwrapAndErrorsAs(t *testing.T) {
	cause := errors.New("connection reset")
	wrapped := Wrap(KindTransientExternal, "embedding call failed", cause)
	outer := fmt.Errorf("stage ingest: %w", wrapped)

	var pe *Error
	if !errors.As(outer, &pe) {
		t.Fatal("expected errors.As to find *Error through fmt.Errorf wrapping")
	}
	if pe.Kind != KindTransientExternal {
		t.Errorf("Kind = %s, want transient_external", pe.Kind)
	}
	if !errors.Is(outer, cause) {
		t.Error("expected errors.Is to find the original cause")
	}
}

func TestWithStage(t *testing.T) {
	base := New(KindChunking, "empty document")
	tagged := base.WithStage("chunking")
	if tagged.Stage != "chunking" {
		t.Errorf("Stage = %q, want chunking", tagged.Stage)
	}
	if base.Stage != "" {
		t.Error("WithStage must not mutate the receiver")
	}
}

func TestKindOf(t *testing.T) {
	err := New(KindSchemaValidation, "missing field")
	if got := KindOf(err); got != KindSchemaValidation {
		t.Errorf("KindOf = %s, want schema_validation", got)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}
}

func TestClassifyHTTPStatus(t *testing.T) {
	cases := []struct {
		status int
		want   Kind
	}{
		{429, KindTransientExternal},
		{500, KindTransientExternal},
		{503, KindTransientExternal},
		{401, KindModelOutput},
		{403, KindModelOutput},
		{400, KindModelOutput},
		{422, KindModelOutput},
	}
	for _, c := range cases {
		got := ClassifyHTTPStatus(c.status, "llm", errors.New("x"))
		if got.Kind != c.want {
			t.Errorf("ClassifyHTTPStatus(%d) = %s, want %s", c.status, got.Kind, c.want)
		}
	}
}
