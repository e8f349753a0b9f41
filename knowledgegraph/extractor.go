package knowledgegraph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/proposalforge/rfpflow/graph/model"
	"github.com/proposalforge/rfpflow/llm"
)

// llmExtractor extracts typed entities from text via the LLM gateway's
// structured_output task type, asking for a strict JSON array and falling
// back to an empty result (never an error) on parse failure, matching the
// node-level "fallback schema" requirement from spec §4.3.
type llmExtractor struct {
	gateway *llm.Gateway
}

// NewLLMExtractor builds an Extractor backed by gateway.
func NewLLMExtractor(gateway *llm.Gateway) Extractor {
	return &llmExtractor{gateway: gateway}
}

type extractedEntity struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

const extractionPrompt = `Extract named entities from the following case study text. Return a JSON array of objects, each with "type" (one of: challenge, solution, technology, industry, outcome) and "name" (short phrase). Return ONLY the JSON array, no commentary.

Text:
%s`

func (e *llmExtractor) Extract(ctx context.Context, text string) ([]Entity, error) {
	result, err := e.gateway.Complete(ctx, llm.CompletionRequest{
		Task:        llm.TaskStructuredOutput,
		Messages:    []model.Message{{Role: "user", Content: fmt.Sprintf(extractionPrompt, text)}},
		Temperature: 0,
	})
	if err != nil {
		return nil, err
	}

	raw := strings.TrimSpace(result.Text)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var parsed []extractedEntity
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil {
		return nil, nil
	}

	entities := make([]Entity, 0, len(parsed))
	for i, p := range parsed {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			continue
		}
		entities = append(entities, Entity{
			ID:   fmt.Sprintf("entity:%s:%d", strings.ToLower(p.Type), i),
			Type: EntityType(strings.ToLower(p.Type)),
			Name: name,
		})
	}
	return entities, nil
}
