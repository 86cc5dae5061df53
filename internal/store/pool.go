package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"vpo/internal/logging"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	defaultSlowThreshold = 500 * time.Millisecond
)

// Pool serializes access to a single embedded database handle. Every
// worker in a batch shares one pool; none opens a private connection.
// Reads, writes, and transactions each hold the internal lock for the
// duration of the call.
type Pool struct {
	mu        sync.Mutex
	db        *sql.DB
	path      string
	log       *slog.Logger
	slowAfter time.Duration
}

func openPool(dbPath string, busyTimeout time.Duration, log *slog.Logger) (*Pool, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()),
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Pool{db: db, path: dbPath, log: log, slowAfter: defaultSlowThreshold}, nil
}

// Path returns the database file location.
func (p *Pool) Path() string {
	return p.path
}

// Close closes the underlying handle.
func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

// ExecuteRead runs fn while holding the pool lock.
func (p *Pool) ExecuteRead(ctx context.Context, fn func(ctx context.Context, db *sql.DB) error) error {
	return p.execute(ctx, "read", fn)
}

// ExecuteWrite runs fn while holding the pool lock, retrying when the
// database reports busy (an external scanner may hold the file). fn may
// therefore run more than once and must be safe to repeat.
func (p *Pool) ExecuteWrite(ctx context.Context, fn func(ctx context.Context, db *sql.DB) error) error {
	return p.execute(ctx, "write", func(ctx context.Context, db *sql.DB) error {
		return retryOnBusy(ctx, func() error { return fn(ctx, db) })
	})
}

func (p *Pool) execute(ctx context.Context, kind string, fn func(ctx context.Context, db *sql.DB) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	start := time.Now()
	err := fn(ctx, p.db)
	p.observe(kind, time.Since(start))
	return err
}

// Transaction runs fn inside a single transaction under the pool lock.
// fn returning an error rolls the transaction back.
func (p *Pool) Transaction(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	start := time.Now()
	defer func() { p.observe("transaction", time.Since(start)) }()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (p *Pool) observe(kind string, elapsed time.Duration) {
	if elapsed >= p.slowAfter {
		p.log.Warn("slow database operation",
			logging.String("kind", kind),
			logging.Duration("elapsed", elapsed))
	}
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
