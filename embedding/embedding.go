// Package embedding turns text into dense vectors for the retriever's index
// and query paths (spec §2's Embedding Service, §4.5's index/query pipeline).
package embedding

import "context"

// Model embeds one or more texts into fixed-dimension vectors.
type Model interface {
	// Embed returns one vector per input text, in the same order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension reports the fixed output vector length for this model.
	Dimension() int
}

