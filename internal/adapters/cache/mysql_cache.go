package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/mikey/phish-triage/internal/core"
)

// MySQLCache is a MySQL implementation of the CacheRepository interface
type MySQLCache struct {
	db          *sql.DB
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
}

// NewMySQLCache connects to MySQL and prepares the verdict cache table
func NewMySQLCache(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLCache, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS verdict_cache (
			cache_key VARCHAR(512) PRIMARY KEY,
			verdict VARCHAR(16) NOT NULL,
			confidence INT NOT NULL,
			source VARCHAR(64) NOT NULL,
			indicators TEXT NOT NULL,
			links TEXT NOT NULL,
			last_seen DATETIME,
			expires_at DATETIME,
			INDEX idx_verdict_expires_at (expires_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	c := &MySQLCache{
		db:          db,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	go c.startCleanupTask()

	return c, nil
}

// Get retrieves a cached verdict
func (c *MySQLCache) Get(ctx context.Context, key string) (*core.CacheEntry, error) {
	var verdict, source, indicatorsJSON, linksJSON string
	var confidence int
	var lastSeen, expiresAt time.Time

	err := c.db.QueryRowContext(ctx, `
		SELECT verdict, confidence, source, indicators, links, last_seen, expires_at
		FROM verdict_cache
		WHERE cache_key = ? AND expires_at > NOW()
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

	return &core.CacheEntry{
		Key:        key,
		Verdict:    core.Verdict(verdict),
		Confidence: confidence,
		Source:     source,
		Indicators: indicators,
		Links:      links,
		LastSeen:   lastSeen,
		ExpiresAt:  expiresAt,
	}, nil
}

// Set stores a verdict
func (c *MySQLCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	indicatorsJSON, err := json.Marshal(entry.Indicators)
	if err != nil {
		return fmt.Errorf("failed to encode indicators: %w", err)
	}
	linksJSON, err := json.Marshal(entry.Links)
	if err != nil {
		return fmt.Errorf("failed to encode links: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO verdict_cache (cache_key, verdict, confidence, source, indicators, links, last_seen, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			verdict = VALUES(verdict),
			confidence = VALUES(confidence),
			source = VALUES(source),
			indicators = VALUES(indicators),
			links = VALUES(links),
			last_seen = VALUES(last_seen),
			expires_at = VALUES(expires_at)
	`, entry.Key, string(entry.Verdict), entry.Confidence, entry.Source, string(indicatorsJSON), string(linksJSON),
		entry.LastSeen, entry.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}
	return nil
}

// Delete removes a cached verdict
func (c *MySQLCache) Delete(ctx context.Context, key string) error {
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
func (c *MySQLCache) Cleanup(ctx context.Context) error {
	result, err := c.db.ExecContext(ctx, `
		DELETE FROM verdict_cache
		WHERE expires_at <= NOW()
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

func (c *MySQLCache) startCleanupTask() {
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

// Stop stops the background cleanup task and closes the connection
func (c *MySQLCache) Stop() {
	close(c.stopCh)
	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close MySQL connection", zap.Error(err))
	}
}
