package retriever

import (
	"strings"
	"testing"
)

func TestChunkText_FixedWindowsRespectSizeAndOverlap(t *testing.T) {
	text := strings.Repeat("word ", 100)
	chunks := ChunkText("doc1", text, ChunkOptions{Strategy: ChunkFixed, SizeTokens: 10, OverlapTokens: 2})
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	for _, c := range chunks {
		if got := len(words(c.Text)); got > 10 {
			t.Errorf("expected chunk to respect the 10-word size budget, got %d words", got)
		}
	}
}

func TestChunkText_SemanticGroupsParagraphs(t *testing.T) {
	text := "First paragraph here.\n\nSecond paragraph here.\n\nThird paragraph here."
	chunks := ChunkText("doc1", text, ChunkOptions{Strategy: ChunkSemantic, SizeTokens: 512})
	if len(chunks) != 1 {
		t.Fatalf("expected all short paragraphs to fit in one chunk under the size budget, got %d chunks", len(chunks))
	}
}

func TestChunkText_SemanticSplitsOversizedParagraph(t *testing.T) {
	text := strings.Repeat("word ", 50)
	chunks := ChunkText("doc1", text, ChunkOptions{Strategy: ChunkSemantic, SizeTokens: 10})
	if len(chunks) < 2 {
		t.Fatalf("expected an oversized paragraph to be split across multiple chunks, got %d", len(chunks))
	}
}

func TestChunkText_EmptyInputProducesNoChunks(t *testing.T) {
	chunks := ChunkText("doc1", "   \n\n  ", DefaultChunkOptions())
	if len(chunks) != 0 {
		t.Errorf("expected no chunks from blank text, got %d", len(chunks))
	}
}

func TestChunkText_HierarchicalAndAdaptiveDoNotPanic(t *testing.T) {
	text := "Section one.\n\nSection two is a bit longer than section one."
	for _, strategy := range []ChunkStrategy{ChunkHierarchical, ChunkAdaptive} {
		chunks := ChunkText("doc1", text, ChunkOptions{Strategy: strategy, SizeTokens: 5})
		if len(chunks) == 0 {
			t.Errorf("strategy %s: expected at least one chunk", strategy)
		}
	}
}

func TestChunkText_IDsAreDocScopedAndUnique(t *testing.T) {
	text := "First paragraph.\n\nSecond paragraph.\n\nThird paragraph."
	chunks := ChunkText("docX", text, ChunkOptions{Strategy: ChunkSemantic, SizeTokens: 2})
	seen := map[string]bool{}
	for _, c := range chunks {
		if !strings.HasPrefix(c.ID, "docX:") {
			t.Errorf("expected chunk ID to be scoped to the document, got %q", c.ID)
		}
		if seen[c.ID] {
			t.Errorf("expected unique chunk IDs, got duplicate %q", c.ID)
		}
		seen[c.ID] = true
	}
}
