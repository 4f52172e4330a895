package semcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite"

	"tutorgrid/internal/domain"
	"tutorgrid/internal/infra/logger"
	"tutorgrid/internal/infra/tracer"
)

// Options tunes a Cache.
type Options struct {
	// Threshold is the minimum cosine similarity for a hit, within (0, 1].
	Threshold float64
	// MaxEntries bounds the cache; the oldest entries are evicted first.
	// 0 means unbounded.
	MaxEntries int
}

// Cache implements domain.SemanticCache on SQLite with an in-memory scan
// index. The index is loaded once at Open and kept in step with every write.
type Cache struct {
	mu       sync.Mutex
	db       *sql.DB
	embedder domain.EmbeddingProvider
	opts     Options
	idx      index
	logger   *slog.Logger
}

// Open opens (or creates) the cache database at dbPath and loads its index.
func Open(dbPath string, embedder domain.EmbeddingProvider, opts Options, log *slog.Logger) (*Cache, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: nil embedder", domain.ErrCacheStore)
	}
	if opts.Threshold <= 0 || opts.Threshold > 1 {
		return nil, fmt.Errorf("%w: threshold %v not within (0, 1]", domain.ErrCacheStore, opts.Threshold)
	}
	if opts.MaxEntries < 0 {
		return nil, fmt.Errorf("%w: negative max entries", domain.ErrCacheStore)
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("%w: create dir: %v", domain.ErrCacheStore, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open db: %v", domain.ErrCacheStore, err)
	}
	// SQLite write safety: single writer.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: pragma: %v", domain.ErrCacheStore, err)
		}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate: %v", domain.ErrCacheStore, err)
	}

	c := &Cache{
		db:       db,
		embedder: embedder,
		opts:     opts,
		logger:   logger.OrDiscard(log),
	}
	if err := c.load(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: load index: %v", domain.ErrCacheStore, err)
	}
	return c, nil
}

func (c *Cache) load(ctx context.Context) error {
	rows, err := c.db.QueryContext(ctx,
		"SELECT seq, key, embedding, payload, inserted_at FROM entries ORDER BY seq ASC")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e        domain.CacheEntry
			blob     []byte
			payload  string
			inserted string
		)
		if err := rows.Scan(&e.Seq, &e.Key, &blob, &payload, &inserted); err != nil {
			return err
		}
		e.Embedding = bytesToFloat32(blob)
		if e.Embedding == nil {
			c.logger.Warn("semcache: skipping entry with malformed embedding", "seq", e.Seq)
			continue
		}
		e.Payload = json.RawMessage(payload)
		e.InsertedAt, _ = time.Parse(time.RFC3339Nano, inserted)
		c.idx.add(e)
	}
	return rows.Err()
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Close()
}

// Len returns the number of indexed entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.idx.entries)
}

// Threshold returns the configured hit threshold.
func (c *Cache) Threshold() float64 { return c.opts.Threshold }

// Lookup implements domain.SemanticCache.
func (c *Cache) Lookup(ctx context.Context, queryText string) (domain.CacheMatch, bool, error) {
	ctx, span := tracer.StartSpan(ctx, "semcache.lookup")
	defer span.End()

	vec, err := domain.EmbedText(ctx, c.embedder, queryText)
	if err != nil {
		tracer.RecordError(span, err)
		return domain.CacheMatch{}, false, err
	}

	c.mu.Lock()
	match, found := c.idx.best(vec)
	c.mu.Unlock()

	hit := found && match.Similarity >= c.opts.Threshold
	span.SetAttributes(
		tracer.BoolAttr("semcache.hit", hit),
		tracer.Float64Attr("semcache.similarity", match.Similarity),
	)
	tracer.SetOK(span)

	if !hit {
		c.logger.Debug("semcache miss", "best_similarity", match.Similarity, "threshold", c.opts.Threshold)
		return domain.CacheMatch{}, false, nil
	}
	c.logger.Debug("semcache hit", "seq", match.Entry.Seq, "similarity", match.Similarity)
	match.Entry.Payload = slices.Clone(match.Entry.Payload)
	match.Entry.Embedding = slices.Clone(match.Entry.Embedding)
	return match, true, nil
}

// Store implements domain.SemanticCache. Storing under an existing key
// replaces that entry and makes it the most recent.
func (c *Cache) Store(ctx context.Context, queryText string, payload json.RawMessage) error {
	ctx, span := tracer.StartSpan(ctx, "semcache.store",
		trace.WithAttributes(tracer.IntAttr("semcache.payload_bytes", len(payload))),
	)
	defer span.End()

	if !json.Valid(payload) {
		err := fmt.Errorf("%w: payload is not valid JSON", domain.ErrCacheStore)
		tracer.RecordError(span, err)
		return err
	}

	vec, err := domain.EmbedText(ctx, c.embedder, queryText)
	if err != nil {
		tracer.RecordError(span, err)
		return err
	}
	if dims := c.embedder.Dimensions(); dims > 0 && len(vec) != dims {
		err := fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(vec), dims)
		tracer.RecordError(span, err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, oldest, evicted, err := c.persist(ctx, queryText, vec, payload)
	if err != nil {
		tracer.RecordError(span, err)
		return err
	}

	c.idx.removeKey(queryText)
	c.idx.add(entry)
	if evicted > 0 {
		c.idx.dropBefore(oldest)
	}

	if evicted > 0 {
		c.logger.Debug("semcache evicted oldest entries", "count", evicted)
	}
	tracer.SetOK(span)
	return nil
}

// persist upserts the entry and applies the capacity bound in one
// transaction. It returns the stored entry, the lowest seq still on disk,
// and how many rows were evicted.
func (c *Cache) persist(ctx context.Context, key string, vec []float32, payload json.RawMessage) (domain.CacheEntry, int64, int, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.CacheEntry{}, 0, 0, fmt.Errorf("%w: begin: %v", domain.ErrCacheStore, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE key = ?", key); err != nil {
		return domain.CacheEntry{}, 0, 0, fmt.Errorf("%w: delete: %v", domain.ErrCacheStore, err)
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		"INSERT INTO entries (key, embedding, payload, inserted_at) VALUES (?, ?, ?, ?)",
		key, float32ToBytes(vec), string(payload), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return domain.CacheEntry{}, 0, 0, fmt.Errorf("%w: insert: %v", domain.ErrCacheStore, err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return domain.CacheEntry{}, 0, 0, fmt.Errorf("%w: insert id: %v", domain.ErrCacheStore, err)
	}

	evicted := 0
	if c.opts.MaxEntries > 0 {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM entries WHERE seq NOT IN (
				SELECT seq FROM entries ORDER BY seq DESC LIMIT ?
			)`, c.opts.MaxEntries)
		if err != nil {
			return domain.CacheEntry{}, 0, 0, fmt.Errorf("%w: evict: %v", domain.ErrCacheStore, err)
		}
		n, _ := res.RowsAffected()
		evicted = int(n)
	}

	oldest := seq
	if evicted > 0 {
		if err := tx.QueryRowContext(ctx, "SELECT MIN(seq) FROM entries").Scan(&oldest); err != nil {
			return domain.CacheEntry{}, 0, 0, fmt.Errorf("%w: evict: %v", domain.ErrCacheStore, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.CacheEntry{}, 0, 0, fmt.Errorf("%w: commit: %v", domain.ErrCacheStore, err)
	}

	return domain.CacheEntry{
		Seq:        seq,
		Key:        key,
		Embedding:  slices.Clone(vec),
		Payload:    slices.Clone(payload),
		InsertedAt: now,
	}, oldest, evicted, nil
}

var _ domain.SemanticCache = (*Cache)(nil)
