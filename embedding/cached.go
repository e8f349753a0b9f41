package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"time"

	"github.com/proposalforge/rfpflow/cache"
)

// EmbeddingTTL is the freshness window spec §4.5 assigns to cached
// embeddings: keyed by exact text, refreshed daily.
const EmbeddingTTL = 24 * time.Hour

// Cached wraps a Model with the shared TTL cache, keyed by the exact input
// text's SHA-256 digest so cache keys never carry raw RFP content.
type Cached struct {
	inner Model
	cache cache.Cache
}

// NewCached builds a Model that checks the cache before calling inner.
func NewCached(inner Model, c cache.Cache) *Cached {
	return &Cached{inner: inner, cache: c}
}

func (c *Cached) Dimension() int { return c.inner.Dimension() }

func embeddingKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return cache.Namespace("embedding", hex.EncodeToString(sum[:]))
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

// Embed serves cache hits directly and only calls inner.Embed for the texts
// that missed, preserving input order in the returned slice.
func (c *Cached) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))

	for i, text := range texts {
		if raw, ok, err := c.cache.Get(ctx, embeddingKey(text)); err == nil && ok {
			result[i] = decodeVector(raw)
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return result, nil
	}

	embedded, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for j, idx := range missIdx {
		result[idx] = embedded[j]
		_ = c.cache.Set(ctx, embeddingKey(missTexts[j]), encodeVector(embedded[j]), EmbeddingTTL)
	}

	return result, nil
}
