// Package retriever implements spec §4.5: chunked document indexing and a
// query pipeline with optional expansion, hybrid BM25+vector fusion via
// Reciprocal Rank Fusion, and result caching.
package retriever

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/proposalforge/rfpflow/cache"
	"github.com/proposalforge/rfpflow/embedding"
	"github.com/proposalforge/rfpflow/graph/model"
	"github.com/proposalforge/rfpflow/llm"
	"github.com/proposalforge/rfpflow/vectorstore"
)

// rrfConstant is the Reciprocal Rank Fusion constant spec §4.5 fixes at 60.
const rrfConstant = 60

// Result is one ranked chunk returned to a caller.
type Result struct {
	Text     string
	Score    float64
	Metadata map[string]string
}

// QueryOptions toggles the optional query-path stages (spec §4.5, step 1-5).
// Any optional stage being active bypasses the result cache.
type QueryOptions struct {
	TopK           int
	ExpandQuery    bool
	MaxExpansions  int
	Rerank         bool
	HybridBM25     bool
	ProjectID      string
}

// Retriever ties together embeddings, a vector backend, an optional BM25
// lexical index, the LLM gateway for query expansion, and the cache layer.
type Retriever struct {
	embedder embedding.Model
	store    vectorstore.Store
	cache    cache.Cache
	gateway  *llm.Gateway
	bm25     map[string]*bm25Index // per project_id, rebuilt by each BuildIndex call from that call's chunks
}

// New builds a Retriever. gateway may be nil if query expansion/chat are
// never requested by callers.
func New(embedder embedding.Model, store vectorstore.Store, c cache.Cache, gateway *llm.Gateway) *Retriever {
	return &Retriever{embedder: embedder, store: store, cache: c, gateway: gateway, bm25: map[string]*bm25Index{}}
}

// BuildIndex chunks text, embeds the chunks, and upserts them for
// (projectID, rfpDocumentID). Rebuilding is idempotent: prior vectors
// matching the filter are deleted before the new chunks are inserted.
func (r *Retriever) BuildIndex(ctx context.Context, projectID, rfpDocumentID string, chunks []Chunk) (int, error) {
	if err := r.store.EnsureCollection(ctx, r.embedder.Dimension()); err != nil {
		return 0, fmt.Errorf("retriever: ensure collection: %w", err)
	}

	filter := vectorstore.Filter{"project_id": projectID, "rfp_document_id": rfpDocumentID}
	if err := r.store.Delete(ctx, filter); err != nil {
		return 0, fmt.Errorf("retriever: delete prior vectors: %w", err)
	}

	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("retriever: embed chunks: %w", err)
	}

	vsChunks := make([]vectorstore.Chunk, len(chunks))
	bm25Docs := make(map[string]string, len(chunks))
	for i, c := range chunks {
		metadata := map[string]string{"project_id": projectID, "rfp_document_id": rfpDocumentID}
		for k, v := range c.Metadata {
			metadata[k] = v
		}
		vsChunks[i] = vectorstore.Chunk{ID: c.ID, Text: c.Text, Embedding: vectors[i], Metadata: metadata}
		bm25Docs[c.ID] = c.Text
	}

	if err := r.store.Upsert(ctx, vsChunks); err != nil {
		return 0, fmt.Errorf("retriever: upsert chunks: %w", err)
	}

	r.bm25[projectID] = newBM25Index(bm25Docs)
	return len(chunks), nil
}

func resultCacheKey(query, projectID string, topK int) string {
	return cache.Namespace("retrieval", fmt.Sprintf("%s:%s:%d", projectID, query, topK))
}

// Query executes the ranked retrieval pipeline from spec §4.5.
func (r *Retriever) Query(ctx context.Context, query string, opts QueryOptions) ([]Result, error) {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}

	cacheable := !opts.ExpandQuery && !opts.Rerank && !opts.HybridBM25
	if cacheable && r.cache != nil {
		if raw, ok, err := r.cache.Get(ctx, resultCacheKey(query, opts.ProjectID, opts.TopK)); err == nil && ok {
			var cached []Result
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		}
	}

	variants := []string{query}
	if opts.ExpandQuery && r.gateway != nil {
		expanded, err := r.expandQuery(ctx, query, opts.MaxExpansions)
		if err == nil {
			variants = append(variants, expanded...)
		}
	}

	candidateFetch := opts.TopK * 2
	union := map[string]vectorstore.ScoredChunk{}
	textPrefixSeen := map[string]bool{}

	for _, v := range variants {
		vec, err := r.embedder.Embed(ctx, []string{v})
		if err != nil {
			return nil, fmt.Errorf("retriever: embed query: %w", err)
		}
		matches, err := r.store.Query(ctx, vec[0], candidateFetch, vectorstore.Filter{"project_id": opts.ProjectID})
		if err != nil {
			return nil, fmt.Errorf("retriever: vector query: %w", err)
		}
		for _, m := range matches {
			prefix := firstN(m.Text, 100)
			if _, seen := union[m.ID]; seen {
				continue
			}
			if textPrefixSeen[prefix] {
				continue
			}
			union[m.ID] = m
			textPrefixSeen[prefix] = true
		}
	}

	candidates := make([]vectorstore.ScoredChunk, 0, len(union))
	for _, c := range union {
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })

	if opts.HybridBM25 {
		candidates = r.fuseRRF(opts.ProjectID, query, candidates)
	}

	if opts.Rerank {
		candidates = rerankByLexicalOverlap(query, candidates)
	}

	if len(candidates) > opts.TopK {
		candidates = candidates[:opts.TopK]
	}

	results := make([]Result, len(candidates))
	for i, c := range candidates {
		results[i] = Result{Text: c.Text, Score: c.Score, Metadata: c.Metadata}
	}

	if cacheable && r.cache != nil {
		if raw, err := json.Marshal(results); err == nil {
			_ = r.cache.Set(ctx, resultCacheKey(query, opts.ProjectID, opts.TopK), raw, cache.RetrievalTTL)
		}
	}

	return results, nil
}

func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// fuseRRF re-scores vector candidates by combining their vector rank with
// their BM25 lexical rank among all scored documents in the project's BM25
// index, per spec §4.5 step 5.
func (r *Retriever) fuseRRF(projectID, query string, candidates []vectorstore.ScoredChunk) []vectorstore.ScoredChunk {
	idx, ok := r.bm25[projectID]
	if !ok {
		return candidates
	}

	bm25Scores := idx.scores(query)

	bm25Ranked := make([]string, 0, len(bm25Scores))
	for id := range bm25Scores {
		bm25Ranked = append(bm25Ranked, id)
	}
	sort.Slice(bm25Ranked, func(i, j int) bool { return bm25Scores[bm25Ranked[i]] > bm25Scores[bm25Ranked[j]] })
	bm25RankOf := make(map[string]int, len(bm25Ranked))
	for i, id := range bm25Ranked {
		bm25RankOf[id] = i + 1
	}

	rrf := make([]vectorstore.ScoredChunk, len(candidates))
	for i, c := range candidates {
		vectorRank := i + 1
		score := 1.0 / float64(rrfConstant+vectorRank)
		if bmRank, ok := bm25RankOf[c.ID]; ok {
			score += 1.0 / float64(rrfConstant+bmRank)
		}
		c.Score = score
		rrf[i] = c
	}

	sort.Slice(rrf, func(i, j int) bool { return rrf[i].Score > rrf[j].Score })
	return rrf
}

// rerankByLexicalOverlap is a lightweight cross-encoder substitute: no model
// in the example pack exposes a local cross-encoder, so reranking boosts
// candidates sharing more query terms, keeping vector order as the
// tie-break. A true cross-encoder can be swapped in behind QueryOptions
// without changing this function's signature.
func rerankByLexicalOverlap(query string, candidates []vectorstore.ScoredChunk) []vectorstore.ScoredChunk {
	queryTerms := tokenize(query)
	type scored struct {
		chunk   vectorstore.ScoredChunk
		overlap int
	}
	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		overlap := 0
		textLower := strings.ToLower(c.Text)
		for _, t := range queryTerms {
			if strings.Contains(textLower, t) {
				overlap++
			}
		}
		ranked[i] = scored{chunk: c, overlap: overlap}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].overlap > ranked[j].overlap })

	out := make([]vectorstore.ScoredChunk, len(ranked))
	for i, r := range ranked {
		out[i] = r.chunk
	}
	return out
}

func (r *Retriever) expandQuery(ctx context.Context, query string, n int) ([]string, error) {
	if n <= 0 {
		n = 2
	}
	prompt := fmt.Sprintf("Give %d alternate phrasings of this search query, one per line, no numbering:\n%s", n, query)
	result, err := r.gateway.Complete(ctx, llm.CompletionRequest{
		Task:     llm.TaskFastGeneration,
		Messages: []model.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimSpace(result.Text), "\n")
	variants := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l != "" {
			variants = append(variants, l)
		}
	}
	if len(variants) > n {
		variants = variants[:n]
	}
	return variants, nil
}
