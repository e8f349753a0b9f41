package retriever

import (
	"fmt"
	"strings"
)

// Chunk is a unit of text produced by a ChunkStrategy, ready for embedding.
type Chunk struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// ChunkStrategy names the chunking approach spec §4.5 lists for the index
// path: fixed-size windows, semantic (paragraph) breaks, hierarchical
// (section-then-paragraph), or adaptive (semantic with a fixed-size fallback
// for oversized paragraphs).
type ChunkStrategy string

const (
	ChunkFixed        ChunkStrategy = "fixed"
	ChunkSemantic     ChunkStrategy = "semantic"
	ChunkHierarchical ChunkStrategy = "hierarchical"
	ChunkAdaptive     ChunkStrategy = "adaptive"
)

// ChunkOptions controls chunk sizing. SizeTokens and OverlapTokens are
// measured in words as a proxy, since chunking runs ahead of any particular
// embedding model's tokenizer.
type ChunkOptions struct {
	Strategy      ChunkStrategy
	SizeTokens    int
	OverlapTokens int
}

// DefaultChunkOptions mirrors the sizes the teacher's retrieval-adjacent
// tooling and the pack's document-processing examples use as a baseline.
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{Strategy: ChunkSemantic, SizeTokens: 512, OverlapTokens: 64}
}

// ChunkText splits text into Chunks per opts.Strategy, tagging each with
// docID and a stable sequence-based ID.
func ChunkText(docID, text string, opts ChunkOptions) []Chunk {
	if opts.SizeTokens <= 0 {
		opts.SizeTokens = 512
	}

	var pieces []string
	switch opts.Strategy {
	case ChunkFixed:
		pieces = fixedWindows(text, opts.SizeTokens, opts.OverlapTokens)
	case ChunkHierarchical:
		pieces = hierarchicalChunks(text, opts.SizeTokens)
	case ChunkAdaptive:
		pieces = adaptiveChunks(text, opts.SizeTokens, opts.OverlapTokens)
	case ChunkSemantic:
		fallthrough
	default:
		pieces = semanticChunks(text, opts.SizeTokens)
	}

	chunks := make([]Chunk, 0, len(pieces))
	for i, p := range pieces {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			ID:       fmt.Sprintf("%s:%d", docID, i),
			Text:     p,
			Metadata: map[string]string{"chunk_index": fmt.Sprintf("%d", i)},
		})
	}
	return chunks
}

func words(text string) []string {
	return strings.Fields(text)
}

// fixedWindows slides a fixed-size word window across the text.
func fixedWindows(text string, size, overlap int) []string {
	w := words(text)
	if len(w) == 0 {
		return nil
	}
	stride := size - overlap
	if stride <= 0 {
		stride = size
	}

	var out []string
	for start := 0; start < len(w); start += stride {
		end := start + size
		if end > len(w) {
			end = len(w)
		}
		out = append(out, strings.Join(w[start:end], " "))
		if end == len(w) {
			break
		}
	}
	return out
}

// semanticChunks groups paragraphs (blank-line separated) together up to
// the size budget, splitting an oversized paragraph with fixedWindows.
func semanticChunks(text string, size int) []string {
	paragraphs := strings.Split(text, "\n\n")
	var out []string
	var current []string
	currentLen := 0

	flush := func() {
		if len(current) > 0 {
			out = append(out, strings.Join(current, "\n\n"))
			current = nil
			currentLen = 0
		}
	}

	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		pLen := len(words(p))
		if pLen > size {
			flush()
			out = append(out, fixedWindows(p, size, 0)...)
			continue
		}
		if currentLen+pLen > size {
			flush()
		}
		current = append(current, p)
		currentLen += pLen
	}
	flush()
	return out
}

// hierarchicalChunks splits on headings first (lines starting with '#' or
// all-caps short lines), then applies semanticChunks within each section.
func hierarchicalChunks(text string, size int) []string {
	lines := strings.Split(text, "\n")
	var sections []string
	var current strings.Builder

	isHeading := func(line string) bool {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			return false
		}
		if strings.HasPrefix(trimmed, "#") {
			return true
		}
		return trimmed == strings.ToUpper(trimmed) && len(strings.Fields(trimmed)) <= 8
	}

	for _, line := range lines {
		if isHeading(line) && current.Len() > 0 {
			sections = append(sections, current.String())
			current.Reset()
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	if current.Len() > 0 {
		sections = append(sections, current.String())
	}

	var out []string
	for _, s := range sections {
		out = append(out, semanticChunks(s, size)...)
	}
	return out
}

// adaptiveChunks is semantic chunking with a fixed-size fallback already
// built in via semanticChunks' oversized-paragraph path; it additionally
// overlaps adjacent chunks by re-including the trailing words of the
// previous chunk, trading some duplication for better boundary recall.
func adaptiveChunks(text string, size, overlap int) []string {
	base := semanticChunks(text, size)
	if overlap <= 0 || len(base) < 2 {
		return base
	}

	out := make([]string, len(base))
	out[0] = base[0]
	for i := 1; i < len(base); i++ {
		prevWords := words(base[i-1])
		tail := prevWords
		if len(tail) > overlap {
			tail = tail[len(tail)-overlap:]
		}
		out[i] = strings.Join(tail, " ") + " " + base[i]
	}
	return out
}
