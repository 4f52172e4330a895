package domain

import (
	"context"
	"errors"
	"fmt"
)

// EmbeddingProvider turns cache key text into vectors for similarity lookup.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions is the vector length, or 0 when the provider does not fix one.
	Dimensions() int
	Name() string
}

// EmbedText embeds a single text. Every failure, including an empty result,
// wraps ErrEmbeddingUnavailable unless the provider already reported
// ErrDimensionMismatch.
func EmbedText(ctx context.Context, p EmbeddingProvider, text string) ([]float32, error) {
	vecs, err := p.Embed(ctx, []string{text})
	if err != nil {
		if errors.Is(err, ErrEmbeddingUnavailable) || errors.Is(err, ErrDimensionMismatch) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrEmbeddingUnavailable, p.Name(), err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("%w: %s returned no vector", ErrEmbeddingUnavailable, p.Name())
	}
	return vecs[0], nil
}
