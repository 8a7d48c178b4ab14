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

// LedgerRepository owns the commission, cashback and treasury rows a
// processed trade produces, and the claim flips on them.
type LedgerRepository interface {
	InsertBreakdown(ctx context.Context, tx pgx.Tx, commissions []*domain.Commission, cashback *domain.Cashback, treasury *domain.TreasuryAllocation) error

	ClaimAllCommissions(ctx context.Context, tx pgx.Tx, userID string, token domain.TokenType) (decimal.Decimal, int, error)
	ClaimAllCashback(ctx context.Context, tx pgx.Tx, userID string, token domain.TokenType) (decimal.Decimal, int, error)

	GetCommissionByID(ctx context.Context, tx pgx.Tx, id string) (*domain.Commission, error)
	GetCashbackByID(ctx context.Context, tx pgx.Tx, id string) (*domain.Cashback, error)
	ClaimCommissionByID(ctx context.Context, tx pgx.Tx, id string) (bool, error)
	ClaimCashbackByID(ctx context.Context, tx pgx.Tx, id string) (bool, error)

	UnclaimedTotals(ctx context.Context, userID string, token domain.TokenType) (*domain.ClaimableBalance, error)
}

type ledgerRepo struct {
	db *pgxpool.Pool
}

func NewLedgerRepo(db *pgxpool.Pool) LedgerRepository {
	return &ledgerRepo{db: db}
}

func (r *ledgerRepo) querier(tx pgx.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.db
}

// InsertBreakdown writes every ledger row of one trade in a single batch.
func (r *ledgerRepo) InsertBreakdown(ctx context.Context, tx pgx.Tx, commissions []*domain.Commission, cashback *domain.Cashback, treasury *domain.TreasuryAllocation) error {
	if tx == nil {
		return fmt.Errorf("breakdown insert requires an active transaction")
	}

	batch := &pgx.Batch{}
	for _, c := range commissions {
		batch.Queue(`
			INSERT INTO commissions (id, user_id, trade_id, amount, level, token_type, claimed, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, false, NOW())
		`, c.ID, c.UserID, c.TradeID, c.Amount.String(), c.Level, c.TokenType)
	}
	batch.Queue(`
		INSERT INTO cashbacks (id, user_id, trade_id, amount, token_type, claimed, created_at)
		VALUES ($1, $2, $3, $4, $5, false, NOW())
	`, cashback.ID, cashback.UserID, cashback.TradeID, cashback.Amount.String(), cashback.TokenType)
	batch.Queue(`
		INSERT INTO treasury_allocations (id, trade_id, amount, token_type, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, treasury.ID, treasury.TradeID, treasury.Amount.String(), treasury.TokenType)

	br := tx.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < len(commissions)+2; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ClaimAllCommissions flips every unclaimed commission row for the user and
// token and returns the exact total. The claimed = false condition is the
// compare-and-set that makes double claiming impossible.
func (r *ledgerRepo) ClaimAllCommissions(ctx context.Context, tx pgx.Tx, userID string, token domain.TokenType) (decimal.Decimal, int, error) {
	return r.claimAll(ctx, tx, "commissions", userID, token)
}

func (r *ledgerRepo) ClaimAllCashback(ctx context.Context, tx pgx.Tx, userID string, token domain.TokenType) (decimal.Decimal, int, error) {
	return r.claimAll(ctx, tx, "cashbacks", userID, token)
}

func (r *ledgerRepo) claimAll(ctx context.Context, tx pgx.Tx, table, userID string, token domain.TokenType) (decimal.Decimal, int, error) {
	if tx == nil {
		return decimal.Zero, 0, fmt.Errorf("claim requires an active transaction")
	}

	rows, err := tx.Query(ctx, fmt.Sprintf(`
		UPDATE %s
		SET claimed = true, claimed_at = NOW()
		WHERE user_id = $1 AND token_type = $2 AND claimed = false
		RETURNING amount::text
	`, table), userID, token)
	if err != nil {
		return decimal.Zero, 0, err
	}
	defer rows.Close()

	total := decimal.Zero
	count := 0
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, 0, err
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return decimal.Zero, 0, err
		}
		total = total.Add(d)
		count++
	}
	return total, count, rows.Err()
}

func (r *ledgerRepo) GetCommissionByID(ctx context.Context, tx pgx.Tx, id string) (*domain.Commission, error) {
	var (
		c      domain.Commission
		amount string
	)
	err := r.querier(tx).QueryRow(ctx, `
		SELECT id, user_id, trade_id, amount::text, level, token_type, claimed, claimed_at, created_at
		FROM commissions
		WHERE id = $1
	`, id).Scan(&c.ID, &c.UserID, &c.TradeID, &amount, &c.Level, &c.TokenType, &c.Claimed, &c.ClaimedAt, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if c.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ledgerRepo) GetCashbackByID(ctx context.Context, tx pgx.Tx, id string) (*domain.Cashback, error) {
	var (
		c      domain.Cashback
		amount string
	)
	err := r.querier(tx).QueryRow(ctx, `
		SELECT id, user_id, trade_id, amount::text, token_type, claimed, claimed_at, created_at
		FROM cashbacks
		WHERE id = $1
	`, id).Scan(&c.ID, &c.UserID, &c.TradeID, &amount, &c.TokenType, &c.Claimed, &c.ClaimedAt, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if c.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	return &c, nil
}

// ClaimCommissionByID flips a single row. A false return with no error
// means the compare-and-set lost: the row was already claimed.
func (r *ledgerRepo) ClaimCommissionByID(ctx context.Context, tx pgx.Tx, id string) (bool, error) {
	return r.claimByID(ctx, tx, "commissions", id)
}

func (r *ledgerRepo) ClaimCashbackByID(ctx context.Context, tx pgx.Tx, id string) (bool, error) {
	return r.claimByID(ctx, tx, "cashbacks", id)
}

func (r *ledgerRepo) claimByID(ctx context.Context, tx pgx.Tx, table, id string) (bool, error) {
	if tx == nil {
		return false, fmt.Errorf("claim requires an active transaction")
	}
	tag, err := tx.Exec(ctx, fmt.Sprintf(`
		UPDATE %s
		SET claimed = true, claimed_at = NOW()
		WHERE id = $1 AND claimed = false
	`, table), id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ledgerRepo) UnclaimedTotals(ctx context.Context, userID string, token domain.TokenType) (*domain.ClaimableBalance, error) {
	var commissions, cashback string
	err := r.db.QueryRow(ctx, `
		SELECT
			COALESCE((SELECT SUM(amount) FROM commissions WHERE user_id = $1 AND token_type = $2 AND claimed = false), 0)::text,
			COALESCE((SELECT SUM(amount) FROM cashbacks   WHERE user_id = $1 AND token_type = $2 AND claimed = false), 0)::text
	`, userID, token).Scan(&commissions, &cashback)
	if err != nil {
		return nil, err
	}

	commTotal, err := decimal.NewFromString(commissions)
	if err != nil {
		return nil, err
	}
	cbTotal, err := decimal.NewFromString(cashback)
	if err != nil {
		return nil, err
	}

	return &domain.ClaimableBalance{
		Commissions: commTotal,
		Cashback:    cbTotal,
		Total:       commTotal.Add(cbTotal),
	}, nil
}
