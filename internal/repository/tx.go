package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"referral-service/pkg/xerrors"
)

// UnitOfWork runs inside one serializable transaction. Its effects commit
// only if it returns nil; on a serialization conflict the whole unit is
// retried, so it must be safe to re-run from the top.
type UnitOfWork func(ctx context.Context, tx pgx.Tx) error

// TxRunner is the transaction boundary the usecases depend on.
type TxRunner interface {
	WithinSerializable(ctx context.Context, fn UnitOfWork) error
}

type txBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

const (
	defaultMaxAttempts = 3
	defaultBaseBackoff = 10 * time.Millisecond
)

// SerializableRunner executes units of work under serializable isolation,
// retrying serialization failures with exponential backoff. All other
// errors surface immediately.
type SerializableRunner struct {
	db          txBeginner
	maxAttempts int
	baseBackoff time.Duration
	logger      *zap.Logger
}

func NewSerializableRunner(db *pgxpool.Pool, logger *zap.Logger) *SerializableRunner {
	return &SerializableRunner{
		db:          db,
		maxAttempts: defaultMaxAttempts,
		baseBackoff: defaultBaseBackoff,
		logger:      logger,
	}
}

func (r *SerializableRunner) WithinSerializable(ctx context.Context, fn UnitOfWork) error {
	backoff := r.baseBackoff

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err := r.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !xerrors.IsSerializationFailure(err) {
			return err
		}

		lastErr = err
		r.logger.Warn("serialization conflict, retrying transaction",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		if attempt == r.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return fmt.Errorf("%w: %v", xerrors.ErrTransactionFailed, lastErr)
}

func (r *SerializableRunner) runOnce(ctx context.Context, fn UnitOfWork) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			r.logger.Error("rollback failed", zap.Error(rbErr))
		}
		return err
	}

	// Serializable conflicts can also surface at commit time.
	return tx.Commit(ctx)
}
