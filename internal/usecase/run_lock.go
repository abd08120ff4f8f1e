package usecase

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"gorm.io/gorm"

	"hostel-ingest-service/pkg/logger"
)

// RunLocker serializes ingestion runs per organization. TryLock never
// blocks: ok is false when another run holds the key.
type RunLocker interface {
	TryLock(ctx context.Context, key string) (unlock func(), ok bool, err error)
}

// MemoryRunLocker is a RunLocker for a single process
type MemoryRunLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryRunLocker creates a new in-process run locker
func NewMemoryRunLocker() *MemoryRunLocker {
	return &MemoryRunLocker{held: make(map[string]struct{})}
}

func (l *MemoryRunLocker) TryLock(_ context.Context, key string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[key]; busy {
		return nil, false, nil
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true, nil
}

// PostgresRunLocker uses session advisory locks so replicas sharing the
// database never run the same organization at once
type PostgresRunLocker struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewPostgresRunLocker creates a new advisory-lock based run locker
func NewPostgresRunLocker(db *gorm.DB, logger logger.Logger) *PostgresRunLocker {
	return &PostgresRunLocker{db: db, logger: logger}
}

func (l *PostgresRunLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	sqlDB, err := l.db.DB()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// advisory locks belong to the session, so hold one connection
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire connection: %w", err)
	}

	id := advisoryKey(key)
	var locked bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", id).Scan(&locked); err != nil {
		conn.Close()
		return nil, false, fmt.Errorf("failed to take advisory lock: %w", err)
	}
	if !locked {
		conn.Close()
		return nil, false, nil
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if _, err := conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", id); err != nil {
				l.logger.Error("Failed to release advisory lock", "key", key, "error", err)
			}
			conn.Close()
		})
	}, true, nil
}

func advisoryKey(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte("ingest:" + key))
	return int64(h.Sum64())
}
