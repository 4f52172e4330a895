package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/viterin/vek/vek32"

	"tutorgrid/internal/domain"
)

// HashProvider is a local, deterministic embedder based on signed feature
// hashing of word unigrams and bigrams. It needs no network, so it backs the
// worker's mock mode and offline deployments. Similar texts share features
// and therefore score high cosine similarity; unrelated texts score near zero.
type HashProvider struct {
	dims int
}

// NewHashProvider creates a hash embedder producing vectors of dims dimensions.
func NewHashProvider(dims int) *HashProvider {
	if dims <= 0 {
		dims = 256
	}
	return &HashProvider{dims: dims}
}

// Embed implements domain.EmbeddingProvider. It never fails.
func (p *HashProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vecs[i] = p.vector(text)
	}
	return vecs, nil
}

func (p *HashProvider) vector(text string) []float32 {
	v := make([]float32, p.dims)
	tokens := tokenize(text)
	for i, tok := range tokens {
		p.add(v, tok, 1)
		if i > 0 {
			p.add(v, tokens[i-1]+" "+tok, 0.5)
		}
	}
	if norm := math.Sqrt(float64(vek32.Dot(v, v))); norm > 0 {
		vek32.MulNumber_Inplace(v, float32(1/norm))
	}
	return v
}

func (p *HashProvider) add(v []float32, feature string, weight float32) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(p.dims))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	v[idx] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Dimensions implements domain.EmbeddingProvider.
func (p *HashProvider) Dimensions() int { return p.dims }

// Name implements domain.EmbeddingProvider.
func (p *HashProvider) Name() string { return "hash" }

var _ domain.EmbeddingProvider = (*HashProvider)(nil)
