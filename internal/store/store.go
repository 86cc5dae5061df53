package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"vpo/internal/config"
	"vpo/internal/logging"
)

// Store persists jobs, review plans, and scanned file snapshots in a
// single SQLite database shared by every worker in a batch.
type Store struct {
	pool *Pool
	log  *slog.Logger
}

// Open initializes or connects to the database named by the configuration.
func Open(cfg *config.Config, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	busyTimeout := time.Duration(cfg.Processing.DBTimeoutSeconds) * time.Second
	pool, err := openPool(cfg.Paths.DBPath, busyTimeout, log)
	if err != nil {
		return nil, err
	}
	if err := pool.ExecuteWrite(context.Background(), initSchema); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return &Store{pool: pool, log: log}, nil
}

// Pool exposes the shared connection pool. Batch workers route every
// read and write through it rather than opening private handles.
func (s *Store) Pool() *Pool {
	return s.pool
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.pool.Path()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.pool.Close()
}

// Stats reports row counts and the on-disk size for diagnostics.
func (s *Store) Stats(ctx context.Context) (*DatabaseStats, error) {
	stats := &DatabaseStats{Path: s.pool.Path()}
	err := s.pool.ExecuteRead(ctx, func(ctx context.Context, db *sql.DB) error {
		counts := []struct {
			query string
			dest  *int
		}{
			{"SELECT COUNT(1) FROM files", &stats.Files},
			{"SELECT COUNT(1) FROM tracks", &stats.Tracks},
			{"SELECT COUNT(1) FROM jobs", &stats.Jobs},
			{"SELECT COUNT(1) FROM plans", &stats.Plans},
		}
		for _, count := range counts {
			if err := db.QueryRowContext(ctx, count.query).Scan(count.dest); err != nil {
				return fmt.Errorf("count rows: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if info, statErr := os.Stat(s.pool.Path()); statErr == nil {
		stats.SizeBytes = info.Size()
	}
	return stats, nil
}
