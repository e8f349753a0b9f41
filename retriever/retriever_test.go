package retriever

import (
	"context"
	"strings"
	"testing"

	"github.com/proposalforge/rfpflow/cache"
	"github.com/proposalforge/rfpflow/vectorstore"
)

// bagOfWordsEmbedder is a deterministic stand-in for a real embedding model:
// each dimension counts occurrences of one vocabulary term, so cosine
// similarity tracks word overlap closely enough to exercise ranking.
type bagOfWordsEmbedder struct {
	vocab []string
}

func (e *bagOfWordsEmbedder) Dimension() int { return len(e.vocab) }

func (e *bagOfWordsEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		vec := make([]float32, len(e.vocab))
		for j, term := range e.vocab {
			vec[j] = float32(strings.Count(lower, term))
		}
		out[i] = vec
	}
	return out, nil
}

func newTestRetriever() *Retriever {
	embedder := &bagOfWordsEmbedder{vocab: []string{"timeline", "budget", "security", "migration"}}
	return New(embedder, vectorstore.NewMemoryStore(), cache.NewMemoryCache(), nil)
}

func TestRetriever_BuildIndexAndQuery(t *testing.T) {
	r := newTestRetriever()
	ctx := context.Background()

	chunks := []Chunk{
		{ID: "1", Text: "The project timeline spans six months."},
		{ID: "2", Text: "Our security posture includes annual audits."},
	}
	n, err := r.BuildIndex(ctx, "p1", "doc1", chunks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 chunks indexed, got %d", n)
	}

	results, err := r.Query(ctx, "timeline", QueryOptions{TopK: 5, ProjectID: "p1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	if !strings.Contains(results[0].Text, "timeline") {
		t.Errorf("expected the timeline chunk to rank first, got %q", results[0].Text)
	}
}

func TestRetriever_BuildIndex_EmptyChunksIsNoop(t *testing.T) {
	r := newTestRetriever()
	n, err := r.BuildIndex(context.Background(), "p1", "doc1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 chunks indexed for an empty input, got %d", n)
	}
}

func TestRetriever_Query_IsolatesByProject(t *testing.T) {
	r := newTestRetriever()
	ctx := context.Background()

	if _, err := r.BuildIndex(ctx, "p1", "doc1", []Chunk{{ID: "1", Text: "migration plan for p1"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.BuildIndex(ctx, "p2", "doc2", []Chunk{{ID: "2", Text: "migration plan for p2"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, err := r.Query(ctx, "migration", QueryOptions{TopK: 5, ProjectID: "p1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, res := range results {
		if strings.Contains(res.Text, "p2") {
			t.Errorf("expected project isolation, got cross-project result: %q", res.Text)
		}
	}
}

func TestRetriever_Query_CachesPlainQueries(t *testing.T) {
	r := newTestRetriever()
	ctx := context.Background()
	if _, err := r.BuildIndex(ctx, "p1", "doc1", []Chunk{{ID: "1", Text: "budget details for the migration"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, err := r.Query(ctx, "budget", QueryOptions{TopK: 5, ProjectID: "p1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Remove the backing chunk; a cache hit should still return the old result.
	if err := r.store.Delete(ctx, vectorstore.Filter{"project_id": "p1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := r.Query(ctx, "budget", QueryOptions{TopK: 5, ProjectID: "p1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second) != len(first) {
		t.Errorf("expected cached query result to be served despite the index change, got %+v vs %+v", first, second)
	}
}

func TestRetriever_Query_HybridBM25DoesNotError(t *testing.T) {
	r := newTestRetriever()
	ctx := context.Background()
	if _, err := r.BuildIndex(ctx, "p1", "doc1", []Chunk{
		{ID: "1", Text: "security review and migration timeline"},
		{ID: "2", Text: "budget planning document"},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, err := r.Query(ctx, "security migration", QueryOptions{TopK: 5, ProjectID: "p1", HybridBM25: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected hybrid BM25 fusion to still return results")
	}
}

func TestRerankByLexicalOverlap_PrefersMoreMatchingTerms(t *testing.T) {
	candidates := []vectorstore.ScoredChunk{
		{Chunk: vectorstore.Chunk{ID: "low", Text: "unrelated content"}, Score: 0.9},
		{Chunk: vectorstore.Chunk{ID: "high", Text: "security and migration timeline"}, Score: 0.1},
	}
	ranked := rerankByLexicalOverlap("security migration", candidates)
	if ranked[0].ID != "high" {
		t.Errorf("expected the chunk with more query-term overlap to rank first, got %+v", ranked)
	}
}
