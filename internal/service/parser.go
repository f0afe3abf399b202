package service

import (
	"strings"
	"unicode/utf8"

	"github.com/docpipeline/docpipeline/internal/pipelineerr"
)

// TextExtractor turns raw submitted bytes into plain text, branching on
// MIME type the way the ingestion contract requires. It deliberately
// treats PDF/OCR internals as out of scope: the engine only needs a
// stage that honors the (document_id) -> extracted text contract, not a
// particular rendering pipeline behind it.
type TextExtractor struct{}

// NewTextExtractor builds a TextExtractor.
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

// Extract decodes data according to mimeType and returns plain text.
// Binary formats that require a rendering/OCR step (PDF, images) are
// rejected with pipelineerr.KindExtraction rather than silently
// producing garbage text.
func (e *TextExtractor) Extract(mimeType string, data []byte) (string, error) {
	switch {
	case isTextMimeType(mimeType):
		return decodeUTF8Lossy(data), nil
	case mimeType == "application/pdf":
		return "", pipelineerr.New(pipelineerr.KindExtraction, "pdf text extraction requires a rendering backend that is not configured")
	case strings.HasPrefix(mimeType, "image/"):
		return "", pipelineerr.New(pipelineerr.KindExtraction, "image OCR extraction requires an OCR backend that is not configured")
	default:
		if isLikelyText(data) {
			return decodeUTF8Lossy(data), nil
		}
		return "", pipelineerr.New(pipelineerr.KindExtraction, "unsupported mime type "+mimeType+" with no plausible text fallback")
	}
}

func isTextMimeType(mimeType string) bool {
	switch mimeType {
	case "text/plain", "text/markdown", "text/csv", "text/html", "text/xml",
		"application/json", "application/xml", "application/yaml":
		return true
	}
	return strings.HasPrefix(mimeType, "text/")
}

// decodeUTF8Lossy decodes data as UTF-8, dropping invalid byte sequences
// rather than failing the stage — matching the original extractor's
// errors="ignore" behavior.
func decodeUTF8Lossy(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	var b strings.Builder
	b.Grow(len(data))
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			i++
			continue
		}
		b.WriteRune(r)
		i += size
	}
	return b.String()
}

// isLikelyText checks whether content is readable text rather than
// binary data, for mime types outside the known text/binary lists.
func isLikelyText(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	sample := data
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	if !utf8.Valid(sample) {
		return false
	}
	nonPrintable := 0
	total := 0
	for _, b := range sample {
		total++
		if b < 0x20 && b != '\n' && b != '\r' && b != '\t' {
			nonPrintable++
		}
	}
	if total == 0 {
		return false
	}
	return float64(nonPrintable)/float64(total) < 0.05
}
