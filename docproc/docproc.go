// Package docproc turns uploaded RFP document bytes into chunked, retrievable
// text (spec §4.5's index path: "file bytes → text (direct or vision) →
// chunking strategy"). Parsing of binary formats (PDF, DOCX) is out of scope
// for this module — callers are expected to supply already-extracted text
// for those, since no document-parsing library appears anywhere in the
// example pack; vision extraction is the one binary path this package
// implements, via the LLM Gateway's multimodal completion.
package docproc

import (
	"context"
	"fmt"
	"strings"

	"github.com/proposalforge/rfpflow/graph/model"
	"github.com/proposalforge/rfpflow/llm"
)

// ContentType names how the source bytes should be interpreted.
type ContentType string

const (
	ContentPlainText ContentType = "text/plain"
	ContentImagePNG  ContentType = "image/png"
	ContentImageJPEG ContentType = "image/jpeg"
)

// Document is a single uploaded file awaiting extraction.
type Document struct {
	Bytes       []byte
	ContentType ContentType
}

// longContextThreshold is the character budget spec §4.3's analyzer node
// uses to decide between long-context and truncated-plus-retrieval modes.
const longContextThreshold = 10_000

// Extractor turns a Document into plain text, using vision when configured
// and the content is an image.
type Extractor struct {
	gateway            *llm.Gateway
	useVisionExtraction bool
}

// NewExtractor builds an Extractor. useVisionExtraction mirrors the
// use_vision_extraction configuration flag (spec §6.4); when false, image
// documents are rejected rather than silently skipped.
func NewExtractor(gateway *llm.Gateway, useVisionExtraction bool) *Extractor {
	return &Extractor{gateway: gateway, useVisionExtraction: useVisionExtraction}
}

// Extract returns plain text for doc.
func (e *Extractor) Extract(ctx context.Context, doc Document) (string, error) {
	switch doc.ContentType {
	case ContentPlainText, "":
		return string(doc.Bytes), nil
	case ContentImagePNG, ContentImageJPEG:
		if !e.useVisionExtraction {
			return "", fmt.Errorf("docproc: vision extraction disabled, cannot extract %s", doc.ContentType)
		}
		return e.extractViaVision(ctx, doc)
	default:
		return "", fmt.Errorf("docproc: unsupported content type %q", doc.ContentType)
	}
}

func (e *Extractor) extractViaVision(ctx context.Context, doc Document) (string, error) {
	result, err := e.gateway.CompleteWithImages(ctx, llm.CompletionRequest{
		Task: llm.TaskAnalysis,
		Messages: []model.Message{
			{Role: "user", Content: "Transcribe all readable text from this document image, preserving reading order."},
		},
		Images: []llm.Image{{MimeType: string(doc.ContentType), Data: doc.Bytes}},
	})
	if err != nil {
		return "", fmt.Errorf("docproc: vision extraction: %w", err)
	}
	return result.Text, nil
}

// AnalyzerWindow returns the text the analyzer node should read: the whole
// document when useLongContext is set, otherwise the first ~10k characters.
func AnalyzerWindow(text string, useLongContext bool) string {
	if useLongContext || len(text) <= longContextThreshold {
		return text
	}
	return text[:longContextThreshold]
}

// NeedsRetrievalSupplement reports whether the analyzer should also pull
// retrieved context for "What is this project about?" because the document
// was truncated.
func NeedsRetrievalSupplement(text string, useLongContext bool) bool {
	return !useLongContext && len(text) > longContextThreshold
}

// NormalizeWhitespace collapses runs of whitespace, used before chunking so
// extracted text (especially vision output) chunks cleanly.
func NormalizeWhitespace(text string) string {
	fields := strings.Fields(text)
	return strings.Join(fields, " ")
}
