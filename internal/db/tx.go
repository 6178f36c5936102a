package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// TxManager runs callbacks in SERIALIZABLE transactions and retries the whole
// callback when Postgres reports a serialization failure or deadlock.
type TxManager struct {
	pool       *pgxpool.Pool
	maxRetries int
	log        *zap.Logger
	backoff    func(attempt int) time.Duration
}

func NewTxManager(pool *pgxpool.Pool, maxRetries int, log *zap.Logger) *TxManager {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TxManager{pool: pool, maxRetries: maxRetries, log: log, backoff: backoff}
}

// WithTx returns fn's error unchanged, so callers can match it with errors.Is.
func (m *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return m.retry(ctx, func() error { return m.runOnce(ctx, fn) })
}

// retry runs attempt up to maxRetries times, waiting only between attempts.
// The last retryable error is wrapped so IsRetryable still matches it.
func (m *TxManager) retry(ctx context.Context, attempt func() error) error {
	var err error
	for n := 1; ; n++ {
		err = attempt()
		if err == nil || !IsRetryable(err) {
			return err
		}
		if n >= m.maxRetries {
			break
		}
		m.log.Debug("retrying transaction", zap.Int("attempt", n), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.backoff(n)):
		}
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", m.maxRetries, err)
}

func (m *TxManager) runOnce(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// IsRetryable reports whether err is a serialization failure or deadlock.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
}

func backoff(attempt int) time.Duration {
	return time.Duration(attempt*attempt) * 10 * time.Millisecond
}
