package knowledgegraph

import (
	"context"
	"testing"

	"github.com/proposalforge/rfpflow/graph/model"
	"github.com/proposalforge/rfpflow/llm"
)

func testGateway(t *testing.T, mock model.ChatModel) *llm.Gateway {
	t.Helper()
	router := llm.NewRouter(map[llm.TaskType]llm.Route{
		llm.TaskStructuredOutput: {Provider: "openai", Model: "gpt-4o-mini"},
	}, llm.Route{Provider: "openai", Model: "gpt-4o-mini"})
	return llm.NewGateway(router, map[string]model.ChatModel{"openai": mock}, llm.DefaultBreakerConfig())
}

func TestLLMExtractor_ParsesJSONArray(t *testing.T) {
	mock := &model.MockChatModel{Responses: []model.ChatOut{{
		Text: `[{"type": "Technology", "name": "Kubernetes"}, {"type": "challenge", "name": "Legacy downtime"}]`,
	}}}
	extractor := NewLLMExtractor(testGateway(t, mock))

	entities, err := extractor.Extract(context.Background(), "some case study text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entities) != 2 {
		t.Fatalf("expected 2 entities, got %d: %+v", len(entities), entities)
	}
	if entities[0].Type != EntityTechnology || entities[0].Name != "Kubernetes" {
		t.Errorf("expected normalized technology entity, got %+v", entities[0])
	}
}

func TestLLMExtractor_StripsCodeFence(t *testing.T) {
	mock := &model.MockChatModel{Responses: []model.ChatOut{{
		Text: "```json\n[{\"type\": \"outcome\", \"name\": \"30% cost reduction\"}]\n```",
	}}}
	extractor := NewLLMExtractor(testGateway(t, mock))

	entities, err := extractor.Extract(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entities) != 1 || entities[0].Name != "30% cost reduction" {
		t.Errorf("expected the fenced JSON to parse, got %+v", entities)
	}
}

func TestLLMExtractor_InvalidJSONReturnsEmptyNotError(t *testing.T) {
	mock := &model.MockChatModel{Responses: []model.ChatOut{{Text: "not json at all"}}}
	extractor := NewLLMExtractor(testGateway(t, mock))

	entities, err := extractor.Extract(context.Background(), "text")
	if err != nil {
		t.Fatalf("expected malformed JSON to fall back silently, got error: %v", err)
	}
	if len(entities) != 0 {
		t.Errorf("expected no entities from unparseable output, got %+v", entities)
	}
}

func TestLLMExtractor_SkipsBlankNames(t *testing.T) {
	mock := &model.MockChatModel{Responses: []model.ChatOut{{
		Text: `[{"type": "solution", "name": ""}, {"type": "solution", "name": "Real Entity"}]`,
	}}}
	extractor := NewLLMExtractor(testGateway(t, mock))

	entities, err := extractor.Extract(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entities) != 1 || entities[0].Name != "Real Entity" {
		t.Errorf("expected blank-named entities to be skipped, got %+v", entities)
	}
}
