package domain

import "github.com/shopspring/decimal"

// Global commission rates. Immutable; the init check below is the one-time
// startup assertion that they cover the whole fee.
var (
	RateCashback     = decimal.RequireFromString("0.10")
	RateLevel1       = decimal.RequireFromString("0.30")
	RateLevel2       = decimal.RequireFromString("0.03")
	RateLevel3       = decimal.RequireFromString("0.02")
	RateTreasuryBase = decimal.RequireFromString("0.55")
)

// LevelRates indexes the upline rates by level.
var LevelRates = map[int]decimal.Decimal{
	1: RateLevel1,
	2: RateLevel2,
	3: RateLevel3,
}

func init() {
	sum := RateCashback.
		Add(RateLevel1).
		Add(RateLevel2).
		Add(RateLevel3).
		Add(RateTreasuryBase)
	if !sum.Equal(decimal.NewFromInt(1)) {
		panic("commission rates must sum to exactly 1.0, got " + sum.String())
	}
}
