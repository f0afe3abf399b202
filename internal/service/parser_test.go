package service

import (
	"strings"
	"testing"

	"github.com/docpipeline/docpipeline/internal/pipelineerr"
)

func TestExtract_PlainText(t *testing.T) {
	e := NewTextExtractor()
	text, err := e.Extract("text/plain", []byte("Plain text content.\nLine two."))
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if text != "Plain text content.\nLine two." {
		t.Errorf("unexpected text: %q", text)
	}
}

func TestExtract_Markdown(t *testing.T) {
	e := NewTextExtractor()
	text, err := e.Extract("text/markdown", []byte("# Heading\n\nBody text."))
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if !strings.Contains(text, "Heading") {
		t.Errorf("expected markdown text preserved, got %q", text)
	}
}

func TestExtract_JSON(t *testing.T) {
	e := NewTextExtractor()
	text, err := e.Extract("application/json", []byte(`{"key":"value"}`))
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if text != `{"key":"value"}` {
		t.Errorf("unexpected text: %q", text)
	}
}

func TestExtract_PDFIsUnsupported(t *testing.T) {
	e := NewTextExtractor()
	_, err := e.Extract("application/pdf", []byte("%PDF-1.4 ..."))
	if err == nil {
		t.Fatal("expected error for pdf extraction")
	}
	if pipelineerr.KindOf(err) != pipelineerr.KindExtraction {
		t.Errorf("expected KindExtraction, got %s", pipelineerr.KindOf(err))
	}
}

func TestExtract_ImageIsUnsupported(t *testing.T) {
	e := NewTextExtractor()
	_, err := e.Extract("image/png", []byte{0x89, 'P', 'N', 'G'})
	if err == nil {
		t.Fatal("expected error for image OCR extraction")
	}
	if pipelineerr.KindOf(err) != pipelineerr.KindExtraction {
		t.Errorf("expected KindExtraction, got %s", pipelineerr.KindOf(err))
	}
}

func TestExtract_UnknownMimeFallsBackToTextHeuristic(t *testing.T) {
	e := NewTextExtractor()
	text, err := e.Extract("application/octet-stream", []byte("looks like plain text to me"))
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if text != "looks like plain text to me" {
		t.Errorf("unexpected text: %q", text)
	}
}

func TestExtract_UnknownMimeBinaryRejected(t *testing.T) {
	e := NewTextExtractor()
	binary := make([]byte, 256)
	for i := range binary {
		binary[i] = byte(i)
	}
	_, err := e.Extract("application/octet-stream", binary)
	if err == nil {
		t.Fatal("expected error for binary content with unknown mime type")
	}
	if pipelineerr.KindOf(err) != pipelineerr.KindExtraction {
		t.Errorf("expected KindExtraction, got %s", pipelineerr.KindOf(err))
	}
}

func TestExtract_InvalidUTF8IsDroppedNotFailed(t *testing.T) {
	e := NewTextExtractor()
	data := []byte("valid text \xff\xfe more text")
	text, err := e.Extract("text/plain", data)
	if err != nil {
		t.Fatalf("Extract() should not fail on invalid utf-8: %v", err)
	}
	if !strings.Contains(text, "valid text") || !strings.Contains(text, "more text") {
		t.Errorf("expected surrounding valid text preserved, got %q", text)
	}
}

func TestIsLikelyText(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want bool
	}{
		{"normal text", []byte("Hello, world! This is a normal text file.\nWith multiple lines."), true},
		{"json", []byte(`{"key": "value", "count": 42}`), true},
		{"csv", []byte("name,age,city\nAlice,30,NYC\nBob,25,LA"), true},
		{"empty", []byte(""), false},
		{"binary null bytes", []byte("hello\x00\x00\x00world\x00\x01\x02\x03"), false},
		{"whitespace only", []byte("   \t\n\r  "), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isLikelyText(tt.in)
			if got != tt.want {
				t.Errorf("isLikelyText(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}
