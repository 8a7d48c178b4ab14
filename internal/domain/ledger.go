package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Commission is one upline member's share of one trade's fee. At most one
// row per (trade, level). Append-only except for the claim flip.
type Commission struct {
	ID        string          `db:"id"`
	UserID    string          `db:"user_id"` // beneficiary
	TradeID   string          `db:"trade_id"`
	Amount    decimal.Decimal `db:"amount"`
	Level     int             `db:"level"` // 1..MaxReferralDepth
	TokenType TokenType       `db:"token_type"`
	Claimed   bool            `db:"claimed"`
	ClaimedAt *time.Time      `db:"claimed_at"`
	CreatedAt time.Time       `db:"created_at"`
}

// Cashback is the trader's own share of their trade's fee. Exactly one row
// per processed trade.
type Cashback struct {
	ID        string          `db:"id"`
	UserID    string          `db:"user_id"` // the trader
	TradeID   string          `db:"trade_id"`
	Amount    decimal.Decimal `db:"amount"`
	TokenType TokenType       `db:"token_type"`
	Claimed   bool            `db:"claimed"`
	ClaimedAt *time.Time      `db:"claimed_at"`
	CreatedAt time.Time       `db:"created_at"`
}

// TreasuryAllocation is the platform's share: the base rate plus every
// level that had no live referrer. One row per processed trade, never
// claimed.
type TreasuryAllocation struct {
	ID        string          `db:"id"`
	TradeID   string          `db:"trade_id"`
	Amount    decimal.Decimal `db:"amount"`
	TokenType TokenType       `db:"token_type"`
	CreatedAt time.Time       `db:"created_at"`
}

// CommissionShare is one computed (not yet persisted) upline share.
type CommissionShare struct {
	UserID string          `json:"user_id"`
	Level  int             `json:"level"`
	Amount decimal.Decimal `json:"amount"`
}

// FeeBreakdown is the full split of one trade's fee.
type FeeBreakdown struct {
	Commissions []CommissionShare `json:"commissions"`
	Cashback    decimal.Decimal   `json:"cashback"`
	Treasury    decimal.Decimal   `json:"treasury"`
}

// ClaimResult reports what one claim call transitioned.
type ClaimResult struct {
	CommissionTotal decimal.Decimal `json:"commission_total"`
	CashbackTotal   decimal.Decimal `json:"cashback_total"`
	Total           decimal.Decimal `json:"total"`
}

// ClaimableBalance is the read-only unclaimed aggregate per token type.
type ClaimableBalance struct {
	Commissions decimal.Decimal `json:"commissions"`
	Cashback    decimal.Decimal `json:"cashback"`
	Total       decimal.Decimal `json:"total"`
}
