// Package cache stores OCR output in a local SQLite database so repeated
// reads of the same document skip recognition.
//
// Entries are keyed by the SHA-256 of the source bytes together with every
// parameter that changes the output, so a hit always returns exactly what a
// fresh run would have produced.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	// Pure-Go SQLite driver, registers "sqlite" with database/sql.
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS ocr_cache (
	cache_key   TEXT PRIMARY KEY,
	source_ref  TEXT NOT NULL,
	result      TEXT NOT NULL,
	created_at  INTEGER NOT NULL,
	accessed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ocr_cache_accessed ON ocr_cache(accessed_at);
`

// Key identifies one OCR computation.
type Key struct {
	// Digest is the hex SHA-256 of the source bytes.
	Digest string

	// Operation names the tool that produced the text.
	Operation string

	Languages     []string
	MinConfidence float64

	// PageLimit is the number of PDF pages read; zero for images.
	PageLimit int
}

// NewKey builds a Key for data.
func NewKey(operation string, data []byte, languages []string, minConfidence float64, pageLimit int) Key {
	sum := sha256.Sum256(data)
	return Key{
		Digest:        hex.EncodeToString(sum[:]),
		Operation:     operation,
		Languages:     languages,
		MinConfidence: minConfidence,
		PageLimit:     pageLimit,
	}
}

// String renders the key as stored in the database.
func (k Key) String() string {
	return strings.Join([]string{
		k.Operation,
		k.Digest,
		strings.Join(k.Languages, "+"),
		strconv.FormatFloat(k.MinConfidence, 'g', -1, 64),
		strconv.Itoa(k.PageLimit),
	}, "|")
}

// Stats summarizes the cache contents.
type Stats struct {
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
}

// Cache is an OCR result cache. It is safe for concurrent use.
type Cache struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open creates or opens the cache database at path, creating parent
// directories as needed.
func Open(path string) (*Cache, error) {
	if path == "" {
		return nil, errors.New("cache path must not be empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	// A single connection avoids SQLITE_BUSY between writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}
	return &Cache{db: db, path: path, now: time.Now}, nil
}

// Path returns the database file location.
func (c *Cache) Path() string {
	return c.path
}

// Get looks up key, refreshing its access time on a hit.
func (c *Cache) Get(ctx context.Context, key Key) (string, bool, error) {
	var result string
	err := c.db.QueryRowContext(ctx,
		`SELECT result FROM ocr_cache WHERE cache_key = ?`, key.String()).Scan(&result)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache lookup failed: %w", err)
	}

	if _, err := c.db.ExecContext(ctx,
		`UPDATE ocr_cache SET accessed_at = ? WHERE cache_key = ?`, c.now().Unix(), key.String()); err != nil {
		return "", false, fmt.Errorf("cache touch failed: %w", err)
	}
	return result, true, nil
}

// Put stores result under key, replacing any previous entry.
func (c *Cache) Put(ctx context.Context, key Key, sourceRef, result string) error {
	now := c.now().Unix()
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO ocr_cache (cache_key, source_ref, result, created_at, accessed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			source_ref = excluded.source_ref,
			result = excluded.result,
			created_at = excluded.created_at,
			accessed_at = excluded.accessed_at`,
		key.String(), sourceRef, result, now, now)
	if err != nil {
		return fmt.Errorf("cache store failed: %w", err)
	}
	return nil
}

// Clear removes every entry.
func (c *Cache) Clear(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM ocr_cache`); err != nil {
		return fmt.Errorf("cache clear failed: %w", err)
	}
	return nil
}

// Prune removes entries not read since before cutoff and reports how many
// were dropped.
func (c *Cache) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM ocr_cache WHERE accessed_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("cache prune failed: %w", err)
	}
	return res.RowsAffected()
}

// Stats reports the number of entries and the stored text size.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(LENGTH(CAST(result AS BLOB))), 0) FROM ocr_cache`).Scan(&s.Entries, &s.Bytes)
	if err != nil {
		return Stats{}, fmt.Errorf("cache stats failed: %w", err)
	}
	return s, nil
}

// Close releases the database.
func (c *Cache) Close() error {
	return c.db.Close()
}
