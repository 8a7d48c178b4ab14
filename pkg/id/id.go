package id

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generate returns a prefixed ULID, e.g. Generate("trd") -> "trd_01J...".
// Prefixes used by this service: usr, trd, com, cbk, tre.
func Generate(prefix string) string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0))
	return prefix + "_" + id.String()
}

// GenerateReferralCode creates a short uppercase alphanumeric code.
// Example: R4K7XQ2M. Uniqueness is enforced by the database, callers
// retry on collision.
func GenerateReferralCode(length int) string {
	const chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		b.WriteByte(chars[n.Int64()])
	}
	return b.String()
}
