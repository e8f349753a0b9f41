package vectorstore

import (
	"context"
	"testing"
)

func TestMemoryStore_UpsertAndQuery(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.EnsureCollection(ctx, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := s.Upsert(ctx, []Chunk{
		{ID: "a", Text: "alpha", Embedding: []float32{1, 0}, Metadata: map[string]string{"project_id": "p1"}},
		{ID: "b", Text: "beta", Embedding: []float32{0, 1}, Metadata: map[string]string{"project_id": "p1"}},
		{ID: "c", Text: "gamma", Embedding: []float32{1, 0}, Metadata: map[string]string{"project_id": "p2"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, err := s.Query(ctx, []float32{1, 0}, 5, Filter{"project_id": "p1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results restricted to project p1, got %d", len(results))
	}
	if results[0].ID != "a" {
		t.Errorf("expected closest match 'a' (identical vector) ranked first, got %q", results[0].ID)
	}
}

func TestMemoryStore_QueryRespectsTopK(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.EnsureCollection(ctx, 1)
	_ = s.Upsert(ctx, []Chunk{
		{ID: "1", Embedding: []float32{1}},
		{ID: "2", Embedding: []float32{1}},
		{ID: "3", Embedding: []float32{1}},
	})

	results, err := s.Query(ctx, []float32{1}, 2, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected topK=2 to cap results, got %d", len(results))
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.EnsureCollection(ctx, 1)
	_ = s.Upsert(ctx, []Chunk{
		{ID: "a", Embedding: []float32{1}, Metadata: map[string]string{"rfp_document_id": "doc1"}},
		{ID: "b", Embedding: []float32{1}, Metadata: map[string]string{"rfp_document_id": "doc2"}},
	})

	if err := s.Delete(ctx, Filter{"rfp_document_id": "doc1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, err := s.Query(ctx, []float32{1}, 10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].ID != "b" {
		t.Errorf("expected only 'b' to remain after delete, got %+v", results)
	}
}

func TestMemoryStore_EnsureCollection_DimensionChangeClears(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.EnsureCollection(ctx, 2)
	_ = s.Upsert(ctx, []Chunk{{ID: "a", Embedding: []float32{1, 0}}})

	if err := s.EnsureCollection(ctx, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, err := s.Query(ctx, []float32{1, 0, 0}, 10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected dimension change to clear prior vectors, got %+v", results)
	}
}
