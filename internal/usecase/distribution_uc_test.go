package usecase_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"referral-service/internal/domain"
	"referral-service/internal/usecase"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return v
}

func upline(ids ...string) []domain.UplineMember {
	var chain []domain.UplineMember
	for i, id := range ids {
		chain = append(chain, domain.UplineMember{UserID: id, Level: i + 1})
	}
	return chain
}

func breakdownSum(b *domain.FeeBreakdown) decimal.Decimal {
	sum := b.Cashback.Add(b.Treasury)
	for _, c := range b.Commissions {
		sum = sum.Add(c.Amount)
	}
	return sum
}

func TestRateConstants(t *testing.T) {
	sum := domain.RateCashback.
		Add(domain.RateLevel1).
		Add(domain.RateLevel2).
		Add(domain.RateLevel3).
		Add(domain.RateTreasuryBase)
	if !sum.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("rates sum to %s, want 1", sum)
	}

	if !domain.RateCashback.Equal(dec(t, "0.10")) {
		t.Fatalf("cashback rate = %s", domain.RateCashback)
	}
	if !domain.RateLevel1.Equal(dec(t, "0.30")) {
		t.Fatalf("level1 rate = %s", domain.RateLevel1)
	}
	if !domain.RateLevel2.Equal(dec(t, "0.03")) {
		t.Fatalf("level2 rate = %s", domain.RateLevel2)
	}
	if !domain.RateLevel3.Equal(dec(t, "0.02")) {
		t.Fatalf("level3 rate = %s", domain.RateLevel3)
	}
	if !domain.RateTreasuryBase.Equal(dec(t, "0.55")) {
		t.Fatalf("treasury base rate = %s", domain.RateTreasuryBase)
	}
}

func TestSplitFeeFullChain(t *testing.T) {
	// $1000 volume at 1% tier
	b := usecase.SplitFee(dec(t, "10"), upline("a", "b", "c"))

	if len(b.Commissions) != 3 {
		t.Fatalf("expected 3 commissions, got %d", len(b.Commissions))
	}
	want := map[int]string{1: "3.00", 2: "0.30", 3: "0.20"}
	for _, c := range b.Commissions {
		if !c.Amount.Equal(dec(t, want[c.Level])) {
			t.Fatalf("level %d = %s, want %s", c.Level, c.Amount, want[c.Level])
		}
	}
	if !b.Cashback.Equal(dec(t, "1.00")) {
		t.Fatalf("cashback = %s, want 1.00", b.Cashback)
	}
	if !b.Treasury.Equal(dec(t, "5.50")) {
		t.Fatalf("treasury = %s, want 5.50", b.Treasury)
	}
	if !usecase.ValidateBreakdown(dec(t, "10"), b) {
		t.Fatal("breakdown should validate")
	}
}

func TestSplitFeeNoUpline(t *testing.T) {
	b := usecase.SplitFee(dec(t, "100"), nil)

	if len(b.Commissions) != 0 {
		t.Fatalf("expected 0 commissions, got %d", len(b.Commissions))
	}
	if !b.Cashback.Equal(dec(t, "10.00")) {
		t.Fatalf("cashback = %s, want 10.00", b.Cashback)
	}
	if !b.Treasury.Equal(dec(t, "90.00")) {
		t.Fatalf("treasury = %s, want 90.00", b.Treasury)
	}
}

func TestSplitFeePartialChain(t *testing.T) {
	b := usecase.SplitFee(dec(t, "100"), upline("a"))

	if len(b.Commissions) != 1 {
		t.Fatalf("expected 1 commission, got %d", len(b.Commissions))
	}
	if b.Commissions[0].Level != 1 || !b.Commissions[0].Amount.Equal(dec(t, "30.00")) {
		t.Fatalf("level1 = %s, want 30.00", b.Commissions[0].Amount)
	}
	if !b.Cashback.Equal(dec(t, "10.00")) {
		t.Fatalf("cashback = %s, want 10.00", b.Cashback)
	}
	// 55 base + 3 + 2 absorbed
	if !b.Treasury.Equal(dec(t, "60.00")) {
		t.Fatalf("treasury = %s, want 60.00", b.Treasury)
	}
}

func TestSplitFeeZeroFee(t *testing.T) {
	b := usecase.SplitFee(decimal.Zero, upline("a", "b", "c"))

	for _, c := range b.Commissions {
		if !c.Amount.IsZero() {
			t.Fatalf("level %d = %s, want 0", c.Level, c.Amount)
		}
	}
	if !b.Cashback.IsZero() || !b.Treasury.IsZero() {
		t.Fatalf("cashback=%s treasury=%s, want zeros", b.Cashback, b.Treasury)
	}
	if !usecase.ValidateBreakdown(decimal.Zero, b) {
		t.Fatal("zero breakdown should validate")
	}
}

// The identity sum(commissions) + cashback + treasury == fee must hold
// bit-exactly for every upline shape, including fees whose nominal shares
// truncate.
func TestSplitFeeSumInvariant(t *testing.T) {
	fees := []string{
		"0",
		"0.000000000000000001",
		"0.000000000000000007",
		"0.333333333333333333",
		"1",
		"1.333333333333333337",
		"10",
		"99.999999999999999999",
		"123456.789123456789123456",
		"999999.999999999999999999",
	}
	uplines := [][]domain.UplineMember{
		nil,
		upline("a"),
		upline("a", "b"),
		upline("a", "b", "c"),
	}

	for _, fee := range fees {
		f := dec(t, fee)
		for _, chain := range uplines {
			b := usecase.SplitFee(f, chain)
			if got := breakdownSum(b); !got.Equal(f) {
				t.Fatalf("fee %s with %d upline levels: sum = %s", fee, len(chain), got)
			}
			if !usecase.ValidateBreakdown(f, b) {
				t.Fatalf("fee %s with %d upline levels: breakdown should validate", fee, len(chain))
			}
		}
	}
}

// Gaps in the upline (a missing middle level) absorb into treasury while
// the surviving levels keep their nominal shares.
func TestSplitFeeGapInChain(t *testing.T) {
	chain := []domain.UplineMember{
		{UserID: "a", Level: 1},
		{UserID: "c", Level: 3},
	}
	b := usecase.SplitFee(dec(t, "100"), chain)

	if len(b.Commissions) != 2 {
		t.Fatalf("expected 2 commissions, got %d", len(b.Commissions))
	}
	// 55 base + 3 absorbed from level 2
	if !b.Treasury.Equal(dec(t, "58.00")) {
		t.Fatalf("treasury = %s, want 58.00", b.Treasury)
	}
	if got := breakdownSum(b); !got.Equal(dec(t, "100")) {
		t.Fatalf("sum = %s, want 100", got)
	}
}

func TestValidateBreakdownDetectsTampering(t *testing.T) {
	fee := dec(t, "10")
	one := dec(t, "0.000000000000000001")

	fresh := func() *domain.FeeBreakdown {
		return usecase.SplitFee(fee, upline("a", "b", "c"))
	}

	mutations := map[string]func(*domain.FeeBreakdown){
		"cashback":          func(b *domain.FeeBreakdown) { b.Cashback = b.Cashback.Add(one) },
		"treasury":          func(b *domain.FeeBreakdown) { b.Treasury = b.Treasury.Sub(one) },
		"commission amount": func(b *domain.FeeBreakdown) { b.Commissions[0].Amount = b.Commissions[0].Amount.Add(one) },
		"dropped level":     func(b *domain.FeeBreakdown) { b.Commissions = b.Commissions[:2] },
		"negative pair": func(b *domain.FeeBreakdown) {
			// keeps the sum but goes negative, still invalid
			b.Cashback = b.Cashback.Add(b.Treasury).Add(one)
			b.Treasury = one.Neg()
		},
	}

	for name, mutate := range mutations {
		b := fresh()
		mutate(b)
		if usecase.ValidateBreakdown(fee, b) {
			t.Fatalf("tampered breakdown (%s) should not validate", name)
		}
	}

	if !usecase.ValidateBreakdown(fee, fresh()) {
		t.Fatal("untampered breakdown must validate")
	}
	if usecase.ValidateBreakdown(fee, nil) {
		t.Fatal("nil breakdown must not validate")
	}
}
