package semcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorgrid/internal/adapter/embedding"
	"tutorgrid/internal/domain"
)

// tableEmbedder returns fixed vectors per text so similarities are exact.
type tableEmbedder struct {
	dims    int
	vectors map[string][]float32
	err     error
}

func (e *tableEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := e.vectors[t]
		if !ok {
			return nil, fmt.Errorf("no vector for %q", t)
		}
		out[i] = v
	}
	return out, nil
}

func (e *tableEmbedder) Dimensions() int { return e.dims }
func (e *tableEmbedder) Name() string    { return "table" }

func newTestCache(t *testing.T, emb domain.EmbeddingProvider, opts Options) (*Cache, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "semcache.db")
	c, err := Open(path, emb, opts, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, path
}

func threeD() *tableEmbedder {
	return &tableEmbedder{
		dims: 3,
		vectors: map[string][]float32{
			"a":      {1, 0, 0},
			"a-copy": {1, 0, 0},
			"near":   {0.9, 0.1, 0}, // cos(a) ≈ 0.994
			"far":    {0.6, 0.8, 0}, // cos(a) = 0.6
			"other":  {0, 0, 1},
			"short":  {1, 0},
			"zero":   {0, 0, 0},
		},
	}
}

func TestLookupEmptyCacheMisses(t *testing.T) {
	c, _ := newTestCache(t, threeD(), Options{Threshold: 0.7})

	_, ok, err := c.Lookup(context.Background(), "a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestStoreThenLookupExact(t *testing.T) {
	c, _ := newTestCache(t, threeD(), Options{Threshold: 0.7})
	ctx := context.Background()

	require.NoError(t, c.Store(ctx, "a", json.RawMessage(`{"v":1}`)))

	m, ok, err := c.Lookup(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 1.0, m.Similarity, 1e-6)
	assert.JSONEq(t, `{"v":1}`, string(m.Entry.Payload))
	assert.Equal(t, "a", m.Entry.Key)
	assert.False(t, m.Entry.InsertedAt.IsZero())
}

func TestLookupThreshold(t *testing.T) {
	c, _ := newTestCache(t, threeD(), Options{Threshold: 0.7})
	ctx := context.Background()
	require.NoError(t, c.Store(ctx, "a", json.RawMessage(`1`)))

	_, ok, err := c.Lookup(ctx, "near")
	require.NoError(t, err)
	assert.True(t, ok, "0.99 similarity must hit")

	_, ok, err = c.Lookup(ctx, "far")
	require.NoError(t, err)
	assert.False(t, ok, "0.6 similarity must miss at 0.7")

	_, ok, err = c.Lookup(ctx, "other")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLookupThresholdIsInclusive(t *testing.T) {
	c, _ := newTestCache(t, threeD(), Options{Threshold: 1})
	ctx := context.Background()
	require.NoError(t, c.Store(ctx, "a", json.RawMessage(`1`)))

	m, ok, err := c.Lookup(ctx, "a-copy")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1.0, m.Similarity)
}

func TestLookupPicksMostSimilar(t *testing.T) {
	c, _ := newTestCache(t, threeD(), Options{Threshold: 0.5})
	ctx := context.Background()
	require.NoError(t, c.Store(ctx, "far", json.RawMessage(`"far"`)))
	require.NoError(t, c.Store(ctx, "near", json.RawMessage(`"near"`)))
	require.NoError(t, c.Store(ctx, "other", json.RawMessage(`"other"`)))

	m, ok, err := c.Lookup(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `"near"`, string(m.Entry.Payload))
}

func TestLookupTieGoesToNewest(t *testing.T) {
	c, _ := newTestCache(t, threeD(), Options{Threshold: 0.7})
	ctx := context.Background()
	require.NoError(t, c.Store(ctx, "a", json.RawMessage(`"first"`)))
	require.NoError(t, c.Store(ctx, "a-copy", json.RawMessage(`"second"`)))

	m, ok, err := c.Lookup(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `"second"`, string(m.Entry.Payload))
	assert.Equal(t, "a-copy", m.Entry.Key)
}

func TestStoreSameKeyOverwrites(t *testing.T) {
	c, _ := newTestCache(t, threeD(), Options{Threshold: 0.7})
	ctx := context.Background()
	require.NoError(t, c.Store(ctx, "a", json.RawMessage(`"old"`)))
	first, _, _ := c.Lookup(ctx, "a")

	require.NoError(t, c.Store(ctx, "a", json.RawMessage(`"new"`)))
	assert.Equal(t, 1, c.Len())

	m, ok, err := c.Lookup(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `"new"`, string(m.Entry.Payload))
	assert.Greater(t, m.Entry.Seq, first.Entry.Seq)
}

func TestOverwriteMakesEntryNewest(t *testing.T) {
	c, _ := newTestCache(t, threeD(), Options{Threshold: 0.7})
	ctx := context.Background()
	require.NoError(t, c.Store(ctx, "a", json.RawMessage(`"a1"`)))
	require.NoError(t, c.Store(ctx, "a-copy", json.RawMessage(`"copy"`)))
	require.NoError(t, c.Store(ctx, "a", json.RawMessage(`"a2"`)))

	m, _, err := c.Lookup(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, `"a2"`, string(m.Entry.Payload))
}

func TestPersistsAcrossReopen(t *testing.T) {
	emb := threeD()
	path := filepath.Join(t.TempDir(), "nested", "semcache.db")

	c, err := Open(path, emb, Options{Threshold: 0.7}, nil)
	require.NoError(t, err)
	require.NoError(t, c.Store(context.Background(), "a", json.RawMessage(`{"kept":true}`)))
	require.NoError(t, c.Close())

	c2, err := Open(path, emb, Options{Threshold: 0.7}, nil)
	require.NoError(t, err)
	defer c2.Close()

	assert.Equal(t, 1, c2.Len())
	m, ok, err := c2.Lookup(context.Background(), "near")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"kept":true}`, string(m.Entry.Payload))
}

func TestMaxEntriesEvictsOldest(t *testing.T) {
	c, path := newTestCache(t, threeD(), Options{Threshold: 0.99, MaxEntries: 2})
	ctx := context.Background()
	require.NoError(t, c.Store(ctx, "a", json.RawMessage(`1`)))
	require.NoError(t, c.Store(ctx, "far", json.RawMessage(`2`)))
	require.NoError(t, c.Store(ctx, "other", json.RawMessage(`3`)))

	assert.Equal(t, 2, c.Len())
	_, ok, err := c.Lookup(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok, "oldest entry should be evicted")

	_, ok, err = c.Lookup(ctx, "other")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Close())
	c2, err := Open(path, threeD(), Options{Threshold: 0.99}, nil)
	require.NoError(t, err)
	defer c2.Close()
	assert.Equal(t, 2, c2.Len(), "eviction must be persisted")
}

func TestEmbeddingFailureIsUnavailable(t *testing.T) {
	emb := threeD()
	c, _ := newTestCache(t, emb, Options{Threshold: 0.7})
	emb.err = errors.New("connection refused")

	_, _, err := c.Lookup(context.Background(), "a")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	err = c.Store(context.Background(), "a", json.RawMessage(`1`))
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Equal(t, 0, c.Len())
}

func TestStoreRejectsWrongDimension(t *testing.T) {
	c, _ := newTestCache(t, threeD(), Options{Threshold: 0.7})

	err := c.Store(context.Background(), "short", json.RawMessage(`1`))
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Equal(t, 0, c.Len())
}

func TestLookupSkipsMismatchedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "semcache.db")
	c, err := Open(path, threeD(), Options{Threshold: 0.1}, nil)
	require.NoError(t, err)
	require.NoError(t, c.Store(context.Background(), "a", json.RawMessage(`1`)))
	require.NoError(t, c.Close())

	// Reopen with an embedder of a different dimension.
	twoD := &tableEmbedder{dims: 2, vectors: map[string][]float32{"a": {1, 0}}}
	c2, err := Open(path, twoD, Options{Threshold: 0.1}, nil)
	require.NoError(t, err)
	defer c2.Close()

	_, ok, err := c2.Lookup(context.Background(), "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestZeroQueryVectorMisses(t *testing.T) {
	c, _ := newTestCache(t, threeD(), Options{Threshold: 0.1})
	require.NoError(t, c.Store(context.Background(), "a", json.RawMessage(`1`)))

	_, ok, err := c.Lookup(context.Background(), "zero")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreRejectsInvalidJSON(t *testing.T) {
	c, _ := newTestCache(t, threeD(), Options{Threshold: 0.7})
	err := c.Store(context.Background(), "a", json.RawMessage(`{not json`))
	assert.ErrorIs(t, err, domain.ErrCacheStore)
}

func TestOpenValidatesOptions(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(filepath.Join(dir, "x.db"), threeD(), Options{Threshold: 0}, nil)
	assert.ErrorIs(t, err, domain.ErrCacheStore)
	_, err = Open(filepath.Join(dir, "y.db"), threeD(), Options{Threshold: 1.5}, nil)
	assert.ErrorIs(t, err, domain.ErrCacheStore)
	_, err = Open(filepath.Join(dir, "z.db"), nil, Options{Threshold: 0.7}, nil)
	assert.ErrorIs(t, err, domain.ErrCacheStore)
}

func TestReturnedPayloadIsIsolated(t *testing.T) {
	c, _ := newTestCache(t, threeD(), Options{Threshold: 0.7})
	ctx := context.Background()
	payload := json.RawMessage(`{"v":1}`)
	require.NoError(t, c.Store(ctx, "a", payload))
	payload[2] = 'X'

	m, _, err := c.Lookup(ctx, "a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(m.Entry.Payload))
}

func TestLookupResultIsIsolated(t *testing.T) {
	c, _ := newTestCache(t, threeD(), Options{Threshold: 0.7})
	ctx := context.Background()
	require.NoError(t, c.Store(ctx, "a", json.RawMessage(`{"v":1}`)))

	m, ok, err := c.Lookup(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	m.Entry.Embedding[0] = 0
	m.Entry.Payload[2] = 'X'

	again, ok, err := c.Lookup(ctx, "near")
	require.NoError(t, err)
	require.True(t, ok, "stored embedding must not change through a returned entry")
	assert.InDelta(t, 0.994, again.Similarity, 0.001)
	assert.JSONEq(t, `{"v":1}`, string(again.Entry.Payload))
}

func TestEvictionSkipsRowsMissingFromIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "semcache.db")
	c, err := Open(path, threeD(), Options{Threshold: 0.99}, nil)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	// A row with a truncated embedding is skipped on load but stays on disk.
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO entries (key, embedding, payload, inserted_at) VALUES (?, ?, ?, ?)",
		"broken", []byte{1, 2, 3}, `{}`, "2026-01-01T00:00:00Z")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	c, err = Open(path, threeD(), Options{Threshold: 0.99, MaxEntries: 2}, nil)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, 0, c.Len())

	ctx := context.Background()
	require.NoError(t, c.Store(ctx, "a", json.RawMessage(`1`)))
	require.NoError(t, c.Store(ctx, "far", json.RawMessage(`2`))) // evicts "broken" on disk

	assert.Equal(t, 2, c.Len())
	for _, key := range []string{"a", "far"} {
		_, ok, err := c.Lookup(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok, key)
	}
}

func TestConcurrentStoreSameKey(t *testing.T) {
	c, _ := newTestCache(t, embedding.NewHashProvider(64), Options{Threshold: 0.9})
	ctx := context.Background()
	const writers = 16
	const key = "same essay"

	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Store(ctx, key, json.RawMessage(fmt.Sprintf(`{"writer":%d}`, i))))
			m, ok, err := c.Lookup(ctx, key)
			if assert.NoError(t, err) && assert.True(t, ok) {
				assertFromWriter(t, m.Entry.Payload, writers)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, c.Len())
	m, ok, err := c.Lookup(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assertFromWriter(t, m.Entry.Payload, writers)
}

func assertFromWriter(t *testing.T, payload json.RawMessage, writers int) {
	t.Helper()
	var got struct {
		Writer *int `json:"writer"`
	}
	if assert.NoError(t, json.Unmarshal(payload, &got)) && assert.NotNil(t, got.Writer) {
		assert.True(t, *got.Writer >= 0 && *got.Writer < writers, "writer %d", *got.Writer)
	}
}

func TestConcurrentStoreAndLookup(t *testing.T) {
	c, _ := newTestCache(t, embedding.NewHashProvider(64), Options{Threshold: 0.9})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := fmt.Sprintf("essay on topic %d", i)
			assert.NoError(t, c.Store(ctx, key, json.RawMessage(fmt.Sprintf(`{"i":%d}`, i))))
			_, ok, err := c.Lookup(ctx, key)
			assert.NoError(t, err)
			assert.True(t, ok)
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, c.Len())
}
