package xerrors

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes the service reacts to.
const (
	PGUniqueViolation      = "23505"
	PGSerializationFailure = "40001"
	PGDeadlockDetected     = "40P01"
)

func ParsePGErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return "unknown"
}

// IsUniqueViolation reports whether err is a unique constraint collision.
func IsUniqueViolation(err error) bool {
	return ParsePGErrorCode(err) == PGUniqueViolation
}

// IsSerializationFailure reports whether err is a transient conflict the
// transaction runner is allowed to retry.
func IsSerializationFailure(err error) bool {
	code := ParsePGErrorCode(err)
	return code == PGSerializationFailure || code == PGDeadlockDetected
}

// Generic
var (
	ErrInvalidInput   = errors.New("invalid input provided")
	ErrInternalServer = errors.New("internal server error")
	ErrNotFound       = errors.New("not found")
)

// Lookups
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrTradeNotFound = errors.New("trade not found")
)

// Referral graph integrity, rejected before any write
var (
	ErrAlreadyReferred   = errors.New("user already has a referrer")
	ErrSelfReferral      = errors.New("user cannot refer themselves")
	ErrCircularReference = errors.New("referral would create a cycle")
	ErrMaxDepthExceeded  = errors.New("referrer is at maximum referral depth")
	ErrCodeAlreadySet    = errors.New("referral code already set")
	ErrCodeTaken         = errors.New("referral code already in use")
)

// Trade processing / claiming
var (
	ErrAlreadyProcessed  = errors.New("trade already processed for commissions")
	ErrNotOwner          = errors.New("row does not belong to the caller")
	ErrTransactionFailed = errors.New("transaction failed after retries")
)
