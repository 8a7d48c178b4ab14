package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"referral-service/internal/domain"
	"referral-service/pkg/xerrors"
)

type TradeRepository interface {
	Insert(ctx context.Context, tx pgx.Tx, t *domain.Trade) error
	MarkProcessed(ctx context.Context, tx pgx.Tx, tradeID string) error
	InsertProcessedMarker(ctx context.Context, tx pgx.Tx, tradeID string) error
	GetByID(ctx context.Context, tx pgx.Tx, id string) (*domain.Trade, error)
}

type tradeRepo struct {
	db *pgxpool.Pool
}

func NewTradeRepo(db *pgxpool.Pool) TradeRepository {
	return &tradeRepo{db: db}
}

func (r *tradeRepo) querier(tx pgx.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *tradeRepo) Insert(ctx context.Context, tx pgx.Tx, t *domain.Trade) error {
	if tx == nil {
		return fmt.Errorf("trade insert requires an active transaction")
	}
	return tx.QueryRow(ctx, `
		INSERT INTO trades (id, user_id, volume, fee_amount, fee_tier, token_type, processed_for_commissions, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, NOW())
		RETURNING created_at
	`,
		t.ID, t.UserID, t.Volume.String(), t.FeeAmount.String(), t.FeeTier.String(), t.TokenType,
	).Scan(&t.CreatedAt)
}

// MarkProcessed flips the pending -> processed flag. The flag condition
// means a second attempt affects zero rows and is reported as a duplicate.
func (r *tradeRepo) MarkProcessed(ctx context.Context, tx pgx.Tx, tradeID string) error {
	if tx == nil {
		return fmt.Errorf("trade update requires an active transaction")
	}
	tag, err := tx.Exec(ctx, `
		UPDATE trades
		SET processed_for_commissions = true
		WHERE id = $1 AND processed_for_commissions = false
	`, tradeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrAlreadyProcessed
	}
	return nil
}

// InsertProcessedMarker writes the idempotency marker. The primary key on
// trade_id turns a duplicate into a unique violation.
func (r *tradeRepo) InsertProcessedMarker(ctx context.Context, tx pgx.Tx, tradeID string) error {
	if tx == nil {
		return fmt.Errorf("marker insert requires an active transaction")
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO processed_trades (trade_id, processed_at)
		VALUES ($1, NOW())
	`, tradeID)
	if err != nil && xerrors.IsUniqueViolation(err) {
		return xerrors.ErrAlreadyProcessed
	}
	return err
}

func (r *tradeRepo) GetByID(ctx context.Context, tx pgx.Tx, id string) (*domain.Trade, error) {
	var (
		t                          domain.Trade
		volume, feeAmount, feeTier string
	)
	err := r.querier(tx).QueryRow(ctx, `
		SELECT id, user_id, volume::text, fee_amount::text, fee_tier::text, token_type, processed_for_commissions, created_at
		FROM trades
		WHERE id = $1
	`, id).Scan(&t.ID, &t.UserID, &volume, &feeAmount, &feeTier, &t.TokenType, &t.ProcessedForCommissions, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrTradeNotFound
	}
	if err != nil {
		return nil, err
	}

	if t.Volume, err = decimal.NewFromString(volume); err != nil {
		return nil, err
	}
	if t.FeeAmount, err = decimal.NewFromString(feeAmount); err != nil {
		return nil, err
	}
	if t.FeeTier, err = decimal.NewFromString(feeTier); err != nil {
		return nil, err
	}
	return &t, nil
}
