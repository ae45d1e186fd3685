// Package cache implements the §4.3 decision cache: a local SQLite
// store keyed by registry/name/version/config-fingerprint, so repeated
// evaluations of the same package under the same configuration skip
// the network entirely until the entry's TTL expires.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/git-pkgs/safe-pkgs/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	cache_key  TEXT PRIMARY KEY,
	cache_value TEXT NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_expires_at ON decisions(expires_at);
`

// Cache stores Decision values keyed by package reference and a
// fingerprint of the configuration that produced them, so a config
// change invalidates stale entries implicitly rather than requiring an
// explicit flush.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if needed) a SQLite-backed cache at path. A
// corrupt or unreadable database degrades to an in-memory store rather
// than failing startup. When fellBack is true, err is non-nil and
// describes the cause; the caller should log it (see LogFallback) and
// keep using the returned cache. A non-nil err with fellBack false
// never happens; a nil err with fellBack true never happens either.
func Open(path string) (c *Cache, fellBack bool, err error) {
	db, openErr := sql.Open("sqlite", path)
	if openErr != nil {
		return openInMemory(openErr)
	}
	db.SetMaxOpenConns(1)

	if _, execErr := db.Exec(schema); execErr != nil {
		_ = db.Close()
		return openInMemory(execErr)
	}

	return &Cache{db: db}, false, nil
}

func openInMemory(cause error) (*Cache, bool, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, true, fmt.Errorf("opening in-memory fallback cache after %v: %w", cause, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, true, fmt.Errorf("initializing in-memory fallback cache after %v: %w", cause, err)
	}
	return &Cache{db: db}, true, cause
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Key derives the cache key for a package reference evaluated under a
// given configuration fingerprint (typically a hash of the merged,
// sanitized config). Two requests for the same package under
// differently-configured checks never collide.
func Key(ref core.PackageRef, configFingerprint string) string {
	h := sha256.New()
	h.Write([]byte(ref.Registry))
	h.Write([]byte{0})
	h.Write([]byte(ref.Name))
	h.Write([]byte{0})
	h.Write([]byte(ref.Version))
	h.Write([]byte{0})
	h.Write([]byte(configFingerprint))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached decision for key, if present and not expired.
// An expired row is deleted as part of the same lookup rather than left
// for a separate purge pass to find.
func (c *Cache) Get(ctx context.Context, key string) (*core.Decision, bool, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback() }()

	var value string
	var expiresAt int64
	err = tx.QueryRowContext(ctx, `SELECT cache_value, expires_at FROM decisions WHERE cache_key = ?`, key).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if time.Now().Unix() >= expiresAt {
		if _, err := tx.ExecContext(ctx, `DELETE FROM decisions WHERE cache_key = ?`, key); err != nil {
			return nil, false, err
		}
		return nil, false, tx.Commit()
	}

	var decision core.Decision
	if err := json.Unmarshal([]byte(value), &decision); err != nil {
		// A corrupted row is treated as a miss, not a fatal error.
		return nil, false, nil
	}

	return &decision, true, tx.Commit()
}

// Put stores decision under key with the given TTL.
func (c *Cache) Put(ctx context.Context, key string, decision core.Decision, ttl time.Duration) error {
	encoded, err := json.Marshal(decision)
	if err != nil {
		return err
	}
	expiresAt := time.Now().Add(ttl).Unix()

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO decisions (cache_key, cache_value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET cache_value = excluded.cache_value, expires_at = excluded.expires_at
	`, key, string(encoded), expiresAt)
	return err
}

// PurgeExpired deletes every row whose TTL has passed, returning the
// number of rows removed. Meant to run on a timer, independent of Get's
// per-row expiry check.
func (c *Cache) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := c.db.ExecContext(ctx, `DELETE FROM decisions WHERE expires_at <= ?`, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// LogFallback records that the cache degraded to an in-memory store, so
// operators notice a persistent-cache failure instead of silently
// losing cross-process caching.
func LogFallback(logger *slog.Logger, path string, cause error) {
	logger.Warn("decision cache degraded to in-memory store", "path", path, "cause", cause)
}
