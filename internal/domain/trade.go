package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TokenType is the closed set of settlement identifiers. The engine treats
// it as an opaque partition key and never converts between types.
type TokenType string

const (
	TokenUSDTTron TokenType = "usdt_tron"
	TokenUSDCEth  TokenType = "usdc_eth"
)

func (t TokenType) IsValid() bool {
	switch t {
	case TokenUSDTTron, TokenUSDCEth:
		return true
	}
	return false
}

// Trade is a fee-generating event. Immutable once processed: the only
// permitted mutation is the single pending -> processed flip, done in the
// same transaction as the ledger rows it produces.
type Trade struct {
	ID                      string          `db:"id"`
	UserID                  string          `db:"user_id"`
	Volume                  decimal.Decimal `db:"volume"`
	FeeAmount               decimal.Decimal `db:"fee_amount"`
	FeeTier                 decimal.Decimal `db:"fee_tier"` // snapshot at trade time
	TokenType               TokenType       `db:"token_type"`
	ProcessedForCommissions bool            `db:"processed_for_commissions"`
	CreatedAt               time.Time       `db:"created_at"`
}

// ProcessedTrade is the idempotency marker. Its existence implies the
// trade's ledger rows are fully written; the primary key on trade_id turns
// a duplicate processing attempt into a unique violation.
type ProcessedTrade struct {
	TradeID     string    `db:"trade_id"`
	ProcessedAt time.Time `db:"processed_at"`
}
