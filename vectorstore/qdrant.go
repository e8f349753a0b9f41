package vectorstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantStore implements Store over Qdrant's gRPC client.
type QdrantStore struct {
	client         *qdrant.Client
	collectionName string
}

// QdrantOptions configures the Qdrant connection.
type QdrantOptions struct {
	Host           string
	Port           int
	APIKey         string
	UseTLS         bool
	CollectionName string
}

// NewQdrantStore dials a Qdrant instance.
func NewQdrantStore(opts QdrantOptions) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   opts.Host,
		Port:   opts.Port,
		APIKey: opts.APIKey,
		UseTLS: opts.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: connect: %w", err)
	}
	return &QdrantStore{client: client, collectionName: opts.CollectionName}, nil
}

func (s *QdrantStore) EnsureCollection(ctx context.Context, dimension int) error {
	info, err := s.client.GetCollectionInfo(ctx, s.collectionName)
	if err == nil && info != nil {
		existingDim := int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())
		if existingDim == dimension {
			return nil
		}
		if err := s.client.DeleteCollection(ctx, s.collectionName); err != nil {
			return fmt.Errorf("qdrant: delete mismatched collection: %w", err)
		}
	}

	return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

func toPayload(metadata map[string]string) map[string]*qdrant.Value {
	payload := make(map[string]*qdrant.Value, len(metadata))
	for k, v := range metadata {
		payload[k] = qdrant.NewValueString(v)
	}
	return payload
}

func fromPayload(payload map[string]*qdrant.Value) map[string]string {
	metadata := make(map[string]string, len(payload))
	for k, v := range payload {
		metadata[k] = v.GetStringValue()
	}
	return metadata
}

func (s *QdrantStore) Upsert(ctx context.Context, chunks []Chunk) error {
	points := make([]*qdrant.PointStruct, len(chunks))
	for i, c := range chunks {
		payload := toPayload(c.Metadata)
		payload["text"] = qdrant.NewValueString(c.Text)
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(c.ID),
			Vectors: qdrant.NewVectors(c.Embedding...),
			Payload: payload,
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collectionName,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert: %w", err)
	}
	return nil
}

func buildFilter(filter Filter) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}
	must := make([]*qdrant.Condition, 0, len(filter))
	for k, v := range filter {
		must = append(must, qdrant.NewMatch(k, v))
	}
	return &qdrant.Filter{Must: must}
}

func (s *QdrantStore) Query(ctx context.Context, embedding []float32, topK int, filter Filter) ([]ScoredChunk, error) {
	limit := uint64(topK)
	resp, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collectionName,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          &limit,
		Filter:         buildFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: query: %w", err)
	}

	out := make([]ScoredChunk, len(resp))
	for i, p := range resp {
		metadata := fromPayload(p.GetPayload())
		text := metadata["text"]
		delete(metadata, "text")
		out[i] = ScoredChunk{
			Chunk: Chunk{ID: p.GetId().GetUuid(), Text: text, Metadata: metadata},
			Score: float64(p.GetScore()),
		}
	}
	return out, nil
}

func (s *QdrantStore) Delete(ctx context.Context, filter Filter) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collectionName,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: buildFilter(filter)},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete: %w", err)
	}
	return nil
}
