package vectorstore

import (
	"context"
	"fmt"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
)

// ChromaStore implements Store over a Chroma server.
type ChromaStore struct {
	client         chroma.Client
	collectionName string
	collection     chroma.Collection
}

// NewChromaStore connects to a Chroma server at baseURL.
func NewChromaStore(ctx context.Context, baseURL, collectionName string) (*ChromaStore, error) {
	client, err := chroma.NewHTTPClient(chroma.WithBaseURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("chroma: client: %w", err)
	}
	return &ChromaStore{client: client, collectionName: collectionName}, nil
}

func (s *ChromaStore) EnsureCollection(ctx context.Context, dimension int) error {
	existing, err := s.client.GetCollection(ctx, s.collectionName)
	if err == nil && existing != nil {
		meta := existing.Metadata()
		if dim, ok := meta.GetInt("dimension"); ok && int(dim) == dimension {
			s.collection = existing
			return nil
		}
		if err := s.client.DeleteCollection(ctx, s.collectionName); err != nil {
			return fmt.Errorf("chroma: delete mismatched collection: %w", err)
		}
	}

	col, err := s.client.GetOrCreateCollection(ctx, s.collectionName,
		chroma.WithCollectionMetadataCreate(chroma.NewMetadata(chroma.NewIntAttribute("dimension", int64(dimension)))))
	if err != nil {
		return fmt.Errorf("chroma: create collection: %w", err)
	}
	s.collection = col
	return nil
}

func toChromaMetadatas(metadatas []map[string]string) []chroma.DocumentMetadata {
	out := make([]chroma.DocumentMetadata, len(metadatas))
	for i, m := range metadatas {
		attrs := make([]*chroma.MetaAttribute, 0, len(m))
		for k, v := range m {
			attrs = append(attrs, chroma.NewStringAttribute(k, v))
		}
		out[i] = chroma.NewDocumentMetadata(attrs...)
	}
	return out
}

func (s *ChromaStore) Upsert(ctx context.Context, chunks []Chunk) error {
	ids := make([]chroma.DocumentID, len(chunks))
	texts := make([]string, len(chunks))
	embeddings := make([]chroma.Embedding, len(chunks))
	metadatas := make([]map[string]string, len(chunks))

	for i, c := range chunks {
		ids[i] = chroma.DocumentID(c.ID)
		texts[i] = c.Text
		embeddings[i] = chroma.NewEmbeddingFromFloat32(c.Embedding)
		metadatas[i] = c.Metadata
	}

	return s.collection.Upsert(ctx,
		chroma.WithIDs(ids...),
		chroma.WithTexts(texts...),
		chroma.WithEmbeddings(embeddings...),
		chroma.WithMetadatas(toChromaMetadatas(metadatas)...),
	)
}

func toChromaWhere(filter Filter) chroma.WhereFilter {
	if len(filter) == 0 {
		return nil
	}
	clauses := make([]chroma.WhereFilter, 0, len(filter))
	for k, v := range filter {
		clauses = append(clauses, chroma.EqString(k, v))
	}
	if len(clauses) == 1 {
		return clauses[0]
	}
	return chroma.And(clauses...)
}

func (s *ChromaStore) Query(ctx context.Context, embedding []float32, topK int, filter Filter) ([]ScoredChunk, error) {
	result, err := s.collection.Query(ctx,
		chroma.WithQueryEmbeddings(chroma.NewEmbeddingFromFloat32(embedding)),
		chroma.WithNResults(topK),
		chroma.WithWhereQuery(toChromaWhere(filter)),
	)
	if err != nil {
		return nil, fmt.Errorf("chroma: query: %w", err)
	}

	docs := result.GetDocumentsGroups()
	if len(docs) == 0 {
		return nil, nil
	}

	ids := result.GetIDGroups()[0]
	texts := docs[0]
	distances := result.GetDistancesGroups()[0]
	metadatas := result.GetMetadatasGroups()[0]

	out := make([]ScoredChunk, len(ids))
	for i := range ids {
		metadata := map[string]string{}
		if i < len(metadatas) && metadatas[i] != nil {
			for _, k := range metadatas[i].Keys() {
				if v, ok := metadatas[i].GetString(k); ok {
					metadata[k] = v
				}
			}
		}
		out[i] = ScoredChunk{
			Chunk: Chunk{ID: string(ids[i]), Text: string(texts[i]), Metadata: metadata},
			Score: 1 - float64(distances[i]),
		}
	}
	return out, nil
}

func (s *ChromaStore) Delete(ctx context.Context, filter Filter) error {
	return s.collection.Delete(ctx, chroma.WithWhereDelete(toChromaWhere(filter)))
}
