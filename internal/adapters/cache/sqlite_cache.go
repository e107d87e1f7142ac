package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mikey/phish-triage/internal/core"
)

// sqliteTimeLayout matches datetime('now') so expiry comparisons work
// as plain string comparisons.
const sqliteTimeLayout = "2006-01-02 15:04:05"

// SQLiteCache is a SQLite implementation of the CacheRepository interface
type SQLiteCache struct {
	db          *sql.DB
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
}

// NewSQLiteCache opens (and if needed creates) the verdict cache database
func NewSQLiteCache(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS verdict_cache (
			cache_key TEXT PRIMARY KEY,
			verdict TEXT NOT NULL,
			confidence INTEGER NOT NULL,
			source TEXT NOT NULL,
			indicators TEXT NOT NULL,
			links TEXT NOT NULL DEFAULT '[]',
			last_seen TIMESTAMP,
			expires_at TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_verdict_expires_at ON verdict_cache(expires_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	c := &SQLiteCache{
		db:          db,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	go c.startCleanupTask()

	return c, nil
}

// Get retrieves a cached verdict
func (c *SQLiteCache) Get(ctx context.Context, key string) (*core.CacheEntry, error) {
	var verdict, source, indicatorsJSON, linksJSON string
	var confidence int
	var lastSeen, expiresAt string

	err := c.db.QueryRowContext(ctx, `
		SELECT verdict, confidence, source, indicators, links, last_seen, expires_at
		FROM verdict_cache
		WHERE cache_key = ? AND expires_at > datetime('now')
	`, key).Scan(&verdict, &confidence, &source, &indicatorsJSON, &linksJSON, &lastSeen, &expiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query verdict cache: %w", err)
	}

	var indicators []string
	if err := json.Unmarshal([]byte(indicatorsJSON), &indicators); err != nil {
		c.logger.Warn("Failed to decode cached indicators", zap.Error(err), zap.String("key", key))
	}
	var links []core.SuspiciousLink
	if err := json.Unmarshal([]byte(linksJSON), &links); err != nil {
		c.logger.Warn("Failed to decode cached links", zap.Error(err), zap.String("key", key))
	}

	entry := &core.CacheEntry{
		Key:        key,
		Verdict:    core.Verdict(verdict),
		Confidence: confidence,
		Source:     source,
		Indicators: indicators,
		Links:      links,
	}
	if t, err := time.Parse(sqliteTimeLayout, lastSeen); err == nil {
		entry.LastSeen = t.UTC()
	}
	if t, err := time.Parse(sqliteTimeLayout, expiresAt); err == nil {
		entry.ExpiresAt = t.UTC()
	}
	return entry, nil
}

// Set stores a verdict
func (c *SQLiteCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	indicatorsJSON, err := json.Marshal(entry.Indicators)
	if err != nil {
		return fmt.Errorf("failed to encode indicators: %w", err)
	}
	linksJSON, err := json.Marshal(entry.Links)
	if err != nil {
		return fmt.Errorf("failed to encode links: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO verdict_cache (cache_key, verdict, confidence, source, indicators, links, last_seen, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.Key, string(entry.Verdict), entry.Confidence, entry.Source, string(indicatorsJSON), string(linksJSON),
		entry.LastSeen.UTC().Format(sqliteTimeLayout), entry.ExpiresAt.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}
	return nil
}

// Delete removes a cached verdict
func (c *SQLiteCache) Delete(ctx context.Context, key string) error {
	_, err := c.db.ExecContext(ctx, `
		DELETE FROM verdict_cache
		WHERE cache_key = ?
	`, key)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Cleanup removes expired entries
func (c *SQLiteCache) Cleanup(ctx context.Context) error {
	result, err := c.db.ExecContext(ctx, `
		DELETE FROM verdict_cache
		WHERE expires_at <= datetime('now')
	`)
	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		c.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		c.logger.Debug("Cleaned up expired verdict cache entries", zap.Int64("expired_count", rowsAffected))
	}
	return nil
}

func (c *SQLiteCache) startCleanupTask() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Cleanup(context.Background()); err != nil {
				c.logger.Error("Failed to clean up cache", zap.Error(err))
			}
		case <-c.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task and closes the database
func (c *SQLiteCache) Stop() {
	close(c.stopCh)
	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close SQLite database", zap.Error(err))
	}
}
