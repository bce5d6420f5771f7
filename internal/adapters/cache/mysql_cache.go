package cache

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/core"
)

// MySQLCache is a MySQL implementation of the CategoryCache interface
type MySQLCache struct {
	db          *sql.DB
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewMySQLCache creates a new MySQL cache
func NewMySQLCache(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLCache, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS category_cache (
			email_id VARCHAR(512) PRIMARY KEY,
			category VARCHAR(32),
			classified_at TIMESTAMP,
			expires_at TIMESTAMP,
			INDEX idx_expires_at (expires_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	cache := &MySQLCache{
		db:          db,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	go cache.startCleanupTask()

	return cache, nil
}

// Get retrieves a cached entry for a document id
func (c *MySQLCache) Get(ctx context.Context, emailID string) (*core.CategoryEntry, error) {
	var category string
	var classifiedAt, expiresAt time.Time

	err := c.db.QueryRowContext(ctx, `
		SELECT category, classified_at, expires_at
		FROM category_cache
		WHERE email_id = ? AND expires_at > NOW()
	`, emailID).Scan(&category, &classifiedAt, &expiresAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	parsed, err := core.ParseCategory(category)
	if err != nil {
		return nil, fmt.Errorf("corrupt cache entry for %s: %w", emailID, err)
	}

	return &core.CategoryEntry{
		EmailID:      emailID,
		Category:     parsed,
		ClassifiedAt: classifiedAt,
		ExpiresAt:    expiresAt,
	}, nil
}

// Set stores a cache entry
func (c *MySQLCache) Set(ctx context.Context, entry *core.CategoryEntry) error {
	_, err := c.db.ExecContext(ctx, `
		REPLACE INTO category_cache (email_id, category, classified_at, expires_at)
		VALUES (?, ?, ?, ?)
	`, entry.EmailID, string(entry.Category), entry.ClassifiedAt, entry.ExpiresAt)

	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}
	return nil
}

// Delete removes a cache entry
func (c *MySQLCache) Delete(ctx context.Context, emailID string) error {
	_, err := c.db.ExecContext(ctx, `
		DELETE FROM category_cache
		WHERE email_id = ?
	`, emailID)

	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Cleanup removes expired entries
func (c *MySQLCache) Cleanup(ctx context.Context) error {
	result, err := c.db.ExecContext(ctx, `
		DELETE FROM category_cache
		WHERE expires_at <= NOW()
	`)

	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	if rows, err := result.RowsAffected(); err == nil && rows > 0 {
		c.logger.Debug("Cleaned up expired cache entries", zap.Int64("count", rows))
	}
	return nil
}

// Stop stops the background cleanup task and closes the database
func (c *MySQLCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close MySQL database", zap.Error(err))
	}
}

// startCleanupTask periodically removes expired entries
func (c *MySQLCache) startCleanupTask() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Cleanup(context.Background()); err != nil {
				c.logger.Error("Cache cleanup failed", zap.Error(err))
			}
		case <-c.stopCh:
			return
		}
	}
}
