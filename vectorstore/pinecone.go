package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pinecone-io/go-pinecone/v4/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// PineconeStore implements Store over Pinecone's managed vector index.
type PineconeStore struct {
	client    *pinecone.Client
	indexName string
	namespace string
	conn      *pinecone.IndexConnection
}

// NewPineconeStore builds a PineconeStore bound to the named index.
func NewPineconeStore(ctx context.Context, apiKey, indexName, namespace string) (*PineconeStore, error) {
	client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("pinecone: client: %w", err)
	}

	idx, err := client.DescribeIndex(ctx, indexName)
	if err != nil {
		return nil, fmt.Errorf("pinecone: describe index: %w", err)
	}

	conn, err := client.Index(pinecone.NewIndexConnParams{Host: idx.Host, Namespace: namespace})
	if err != nil {
		return nil, fmt.Errorf("pinecone: connect index: %w", err)
	}

	return &PineconeStore{client: client, indexName: indexName, namespace: namespace, conn: conn}, nil
}

// EnsureCollection recreates the index when the live embedding dimension
// differs from the index's configured dimension, per spec §4.5's
// dimension-safety rule.
func (s *PineconeStore) EnsureCollection(ctx context.Context, dimension int) error {
	idx, err := s.client.DescribeIndex(ctx, s.indexName)
	if err != nil {
		return fmt.Errorf("pinecone: describe index: %w", err)
	}
	if int(idx.Dimension) == dimension {
		return nil
	}

	if err := s.client.DeleteIndex(ctx, s.indexName); err != nil {
		return fmt.Errorf("pinecone: delete mismatched index: %w", err)
	}
	metric := pinecone.Cosine
	_, err = s.client.CreateServerlessIndex(ctx, &pinecone.CreateServerlessIndexRequest{
		Name:      s.indexName,
		Dimension: pointerTo(int32(dimension)),
		Metric:    &metric,
		Cloud:     pinecone.Aws,
		Region:    "us-east-1",
	})
	return err
}

func pointerTo[T any](v T) *T { return &v }

func metadataToStruct(metadata map[string]string) (*structpb.Struct, error) {
	fields := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		fields[k] = v
	}
	return structpb.NewStruct(fields)
}

func (s *PineconeStore) Upsert(ctx context.Context, chunks []Chunk) error {
	vectors := make([]*pinecone.Vector, len(chunks))
	for i, c := range chunks {
		metadata := make(map[string]string, len(c.Metadata)+1)
		for k, v := range c.Metadata {
			metadata[k] = v
		}
		metadata["text"] = c.Text

		meta, err := metadataToStruct(metadata)
		if err != nil {
			return fmt.Errorf("pinecone: encode metadata: %w", err)
		}

		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		vectors[i] = &pinecone.Vector{Id: id, Values: &c.Embedding, Metadata: meta}
	}

	_, err := s.conn.UpsertVectors(ctx, vectors)
	if err != nil {
		return fmt.Errorf("pinecone: upsert: %w", err)
	}
	return nil
}

func (s *PineconeStore) Query(ctx context.Context, embedding []float32, topK int, filter Filter) ([]ScoredChunk, error) {
	var filterStruct *structpb.Struct
	if len(filter) > 0 {
		var err error
		filterStruct, err = metadataToStruct(filter)
		if err != nil {
			return nil, fmt.Errorf("pinecone: encode filter: %w", err)
		}
	}

	resp, err := s.conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          embedding,
		TopK:            uint32(topK),
		MetadataFilter:  filterStruct,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("pinecone: query: %w", err)
	}

	out := make([]ScoredChunk, len(resp.Matches))
	for i, m := range resp.Matches {
		metadata := map[string]string{}
		if m.Vector.Metadata != nil {
			for k, v := range m.Vector.Metadata.AsMap() {
				if s, ok := v.(string); ok {
					metadata[k] = s
				}
			}
		}
		text := metadata["text"]
		delete(metadata, "text")
		out[i] = ScoredChunk{
			Chunk: Chunk{ID: m.Vector.Id, Text: text, Metadata: metadata},
			Score: float64(m.Score),
		}
	}
	return out, nil
}

func (s *PineconeStore) Delete(ctx context.Context, filter Filter) error {
	filterStruct, err := metadataToStruct(filter)
	if err != nil {
		return fmt.Errorf("pinecone: encode filter: %w", err)
	}
	return s.conn.DeleteVectorsByFilter(ctx, filterStruct)
}
