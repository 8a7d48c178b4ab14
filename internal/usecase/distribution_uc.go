package usecase

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"referral-service/internal/domain"
	"referral-service/internal/pkg/money"
	"referral-service/internal/repository"
)

// Distributor splits a trade's fee across the trader's upline, the trader's
// own cashback and the treasury.
type Distributor struct {
	userRepo repository.UserRepository
}

func NewDistributor(userRepo repository.UserRepository) *Distributor {
	return &Distributor{userRepo: userRepo}
}

// Distribute resolves the trader's upline inside the caller's transaction
// and computes the full fee split.
func (d *Distributor) Distribute(ctx context.Context, tx pgx.Tx, traderID string, feeAmount decimal.Decimal) (*domain.FeeBreakdown, error) {
	upline, err := d.userRepo.UplineChain(ctx, tx, traderID, domain.MaxReferralDepth)
	if err != nil {
		return nil, err
	}
	return SplitFee(feeAmount, upline), nil
}

// SplitFee computes the fee breakdown for a given upline configuration.
//
// Cashback and the per-level commissions are nominal shares truncated at 18
// fractional digits. Treasury is re-derived as the remainder, not computed
// independently: fee - cashback - paid commissions. That makes the sum
// identity (commissions + cashback + treasury == fee) hold bit-exactly for
// any input, and routes both absorbed levels and truncation dust into the
// treasury, which is the base 55% plus every referrer-less level's share by
// construction.
func SplitFee(feeAmount decimal.Decimal, upline []domain.UplineMember) *domain.FeeBreakdown {
	byLevel := make(map[int]string, len(upline))
	for _, m := range upline {
		byLevel[m.Level] = m.UserID
	}

	cashback := money.MulRate(feeAmount, domain.RateCashback)
	paid := cashback

	var commissions []domain.CommissionShare
	for level := 1; level <= domain.MaxReferralDepth; level++ {
		beneficiary, ok := byLevel[level]
		if !ok {
			continue
		}
		amount := money.MulRate(feeAmount, domain.LevelRates[level])
		commissions = append(commissions, domain.CommissionShare{
			UserID: beneficiary,
			Level:  level,
			Amount: amount,
		})
		paid = paid.Add(amount)
	}

	return &domain.FeeBreakdown{
		Commissions: commissions,
		Cashback:    cashback,
		Treasury:    feeAmount.Sub(paid),
	}
}

// ValidateBreakdown independently recomputes the sum and compares it to the
// fee amount. Any single-field tamper breaks the identity.
func ValidateBreakdown(feeAmount decimal.Decimal, b *domain.FeeBreakdown) bool {
	if b == nil {
		return false
	}
	if b.Cashback.Sign() < 0 || b.Treasury.Sign() < 0 {
		return false
	}

	sum := b.Cashback.Add(b.Treasury)
	for _, c := range b.Commissions {
		if c.Amount.Sign() < 0 {
			return false
		}
		sum = sum.Add(c.Amount)
	}
	return sum.Equal(feeAmount)
}
