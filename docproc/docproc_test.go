package docproc

import (
	"context"
	"strings"
	"testing"

	"github.com/proposalforge/rfpflow/graph/model"
	"github.com/proposalforge/rfpflow/llm"
)

func testGateway(t *testing.T, mock model.ChatModel) *llm.Gateway {
	t.Helper()
	router := llm.NewRouter(map[llm.TaskType]llm.Route{
		llm.TaskAnalysis: {Provider: "openai", Model: "gpt-4o-mini"},
	}, llm.Route{Provider: "openai", Model: "gpt-4o-mini"})
	return llm.NewGateway(router, map[string]model.ChatModel{"openai": mock}, llm.DefaultBreakerConfig())
}

func TestExtract_PlainText(t *testing.T) {
	e := NewExtractor(testGateway(t, &model.MockChatModel{}), false)
	text, err := e.Extract(context.Background(), Document{Bytes: []byte("hello world"), ContentType: ContentPlainText})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hello world" {
		t.Errorf("expected plain text passthrough, got %q", text)
	}
}

func TestExtract_ImageWithoutVisionIsRejected(t *testing.T) {
	e := NewExtractor(testGateway(t, &model.MockChatModel{}), false)
	_, err := e.Extract(context.Background(), Document{Bytes: []byte{0xFF}, ContentType: ContentImagePNG})
	if err == nil {
		t.Fatal("expected an error when vision extraction is disabled for an image document")
	}
}

func TestExtract_ImageWithVisionEnabled(t *testing.T) {
	mock := &model.MockChatModel{Responses: []model.ChatOut{{Text: "transcribed text"}}}
	e := NewExtractor(testGateway(t, mock), true)

	text, err := e.Extract(context.Background(), Document{Bytes: []byte{0xFF}, ContentType: ContentImagePNG})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "transcribed text" {
		t.Errorf("expected vision transcription, got %q", text)
	}
}

func TestExtract_UnsupportedContentType(t *testing.T) {
	e := NewExtractor(testGateway(t, &model.MockChatModel{}), true)
	_, err := e.Extract(context.Background(), Document{Bytes: []byte("x"), ContentType: "application/pdf"})
	if err == nil {
		t.Fatal("expected an error for an unsupported content type")
	}
}

func TestAnalyzerWindow_TruncatesWhenLong(t *testing.T) {
	long := strings.Repeat("a", longContextThreshold+500)

	if got := AnalyzerWindow(long, false); len(got) != longContextThreshold {
		t.Errorf("expected truncation to %d chars, got %d", longContextThreshold, len(got))
	}
	if got := AnalyzerWindow(long, true); len(got) != len(long) {
		t.Errorf("expected no truncation with useLongContext, got %d chars", len(got))
	}

	short := "short document"
	if got := AnalyzerWindow(short, false); got != short {
		t.Errorf("expected short documents to pass through untruncated, got %q", got)
	}
}

func TestNeedsRetrievalSupplement(t *testing.T) {
	long := strings.Repeat("a", longContextThreshold+1)
	if !NeedsRetrievalSupplement(long, false) {
		t.Error("expected a truncated long document to need retrieval supplement")
	}
	if NeedsRetrievalSupplement(long, true) {
		t.Error("expected useLongContext to skip the retrieval supplement")
	}
	if NeedsRetrievalSupplement("short", false) {
		t.Error("expected a short document to not need supplementing")
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	got := NormalizeWhitespace("hello   \n\n world\t\tfoo")
	if got != "hello world foo" {
		t.Errorf("expected collapsed whitespace, got %q", got)
	}
}
