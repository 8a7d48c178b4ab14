package domain

import "time"

// MaxReferralDepth caps both the upline walk and how deep the referral
// forest may grow. A user at this depth cannot refer anyone.
const MaxReferralDepth = 3

type User struct {
	ID            string    `db:"id"`
	ReferralCode  *string   `db:"referral_code"` // nullable, unique when set
	ReferrerID    *string   `db:"referrer_id"`   // nullable, at most one, set once
	ReferralDepth int       `db:"referral_depth"`
	FeeTier       string    `db:"fee_tier"` // decimal string, e.g. "0.01"
	CreatedAt     time.Time `db:"created_at"`
}

// UplineMember is one hop of a user's referrer chain. Level 1 is the
// immediate referrer.
type UplineMember struct {
	UserID string
	Level  int
}
