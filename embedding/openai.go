package embedding

import (
	"context"
	"fmt"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIModel implements Model over OpenAI's embeddings endpoint, grounded
// on the teacher's graph/model/openai adapter's client-construction idiom
// (option.WithAPIKey), extended to the embeddings resource.
type OpenAIModel struct {
	client    openaisdk.Client
	modelName string
	dimension int
}

// NewOpenAIModel builds an embedding Model for the given OpenAI model name.
// text-embedding-3-small produces 1536-dimensional vectors.
func NewOpenAIModel(apiKey, modelName string) *OpenAIModel {
	if modelName == "" {
		modelName = "text-embedding-3-small"
	}
	return &OpenAIModel{
		client:    openaisdk.NewClient(option.WithAPIKey(apiKey)),
		modelName: modelName,
		dimension: dimensionFor(modelName),
	}
}

func dimensionFor(modelName string) int {
	switch modelName {
	case "text-embedding-3-large":
		return 3072
	default:
		return 1536
	}
}

func (m *OpenAIModel) Dimension() int { return m.dimension }

func (m *OpenAIModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := m.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Model: openaisdk.EmbeddingModel(m.modelName),
		Input: openaisdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, f := range d.Embedding {
			vec[j] = float32(f)
		}
		out[i] = vec
	}
	return out, nil
}
