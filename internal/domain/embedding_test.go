package domain_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorgrid/internal/domain"
)

var _ domain.EmbeddingProvider = (*stubEmbedder)(nil)

type stubEmbedder struct {
	vecs [][]float32
	err  error
}

func (s *stubEmbedder) Embed(_ context.Context, _ []string) ([][]float32, error) {
	return s.vecs, s.err
}

func (s *stubEmbedder) Dimensions() int { return 3 }
func (s *stubEmbedder) Name() string    { return "stub" }

func TestEmbedText(t *testing.T) {
	vec, err := domain.EmbedText(context.Background(), &stubEmbedder{vecs: [][]float32{{1, 2, 3}}}, "essay history")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vec)
}

func TestEmbedText_Failures(t *testing.T) {
	tests := []struct {
		name string
		emb  *stubEmbedder
		want error
	}{
		{"provider error", &stubEmbedder{err: errors.New("connection refused")}, domain.ErrEmbeddingUnavailable},
		{"no vectors", &stubEmbedder{}, domain.ErrEmbeddingUnavailable},
		{"empty vector", &stubEmbedder{vecs: [][]float32{{}}}, domain.ErrEmbeddingUnavailable},
		{"too many vectors", &stubEmbedder{vecs: [][]float32{{1}, {2}}}, domain.ErrEmbeddingUnavailable},
		{"dimension mismatch kept", &stubEmbedder{err: domain.ErrDimensionMismatch}, domain.ErrDimensionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain.EmbedText(context.Background(), tt.emb, "x")
			require.ErrorIs(t, err, tt.want)
		})
	}
}
