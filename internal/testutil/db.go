package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// SetupPool creates a pgxpool.Pool for integration tests and ensures the
// schema exists. Tests are skipped when TEST_DATABASE_URL is not set, so
// the unit suite runs without a database.
func SetupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	_ = godotenv.Load("../../.env")

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping integration test")
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	if _, err := pool.Exec(context.Background(), schema); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return pool
}

// Truncate empties the given tables between tests.
func Truncate(t *testing.T, pool *pgxpool.Pool, tables ...string) {
	t.Helper()
	for _, table := range tables {
		if _, err := pool.Exec(context.Background(), "TRUNCATE "+table+" CASCADE"); err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id             TEXT PRIMARY KEY,
	referral_code  TEXT UNIQUE,
	referrer_id    TEXT REFERENCES users(id),
	referral_depth INT NOT NULL DEFAULT 0,
	fee_tier       NUMERIC(38,18) NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS trades (
	id                        TEXT PRIMARY KEY,
	user_id                   TEXT NOT NULL REFERENCES users(id),
	volume                    NUMERIC(38,18) NOT NULL,
	fee_amount                NUMERIC(38,18) NOT NULL,
	fee_tier                  NUMERIC(38,18) NOT NULL,
	token_type                TEXT NOT NULL,
	processed_for_commissions BOOLEAN NOT NULL DEFAULT false,
	created_at                TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS processed_trades (
	trade_id     TEXT PRIMARY KEY REFERENCES trades(id),
	processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS commissions (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id),
	trade_id   TEXT NOT NULL REFERENCES trades(id),
	amount     NUMERIC(38,18) NOT NULL,
	level      INT NOT NULL,
	token_type TEXT NOT NULL,
	claimed    BOOLEAN NOT NULL DEFAULT false,
	claimed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS cashbacks (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id),
	trade_id   TEXT NOT NULL REFERENCES trades(id),
	amount     NUMERIC(38,18) NOT NULL,
	token_type TEXT NOT NULL,
	claimed    BOOLEAN NOT NULL DEFAULT false,
	claimed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS treasury_allocations (
	id         TEXT PRIMARY KEY,
	trade_id   TEXT NOT NULL REFERENCES trades(id),
	amount     NUMERIC(38,18) NOT NULL,
	token_type TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_users_referrer ON users(referrer_id);
CREATE INDEX IF NOT EXISTS idx_commissions_claimable ON commissions(user_id, token_type) WHERE claimed = false;
CREATE INDEX IF NOT EXISTS idx_cashbacks_claimable ON cashbacks(user_id, token_type) WHERE claimed = false;
`
