package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"referral-service/internal/domain"
	"referral-service/pkg/xerrors"
)

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, tx pgx.Tx, id string) (*domain.User, error)
	GetByReferralCode(ctx context.Context, tx pgx.Tx, code string) (*domain.User, error)
	UplineChain(ctx context.Context, tx pgx.Tx, userID string, maxLevels int) ([]domain.UplineMember, error)
	IsInDownline(ctx context.Context, tx pgx.Tx, rootID, targetID string) (bool, error)
	AttachReferrer(ctx context.Context, tx pgx.Tx, userID, referrerID string, depth int) error
	SetReferralCode(ctx context.Context, tx pgx.Tx, userID, code string) error
}

type userRepo struct {
	db *pgxpool.Pool
}

func NewUserRepo(db *pgxpool.Pool) UserRepository {
	return &userRepo{db: db}
}

// querier returns the tx when one is active, otherwise the pool, so the
// same SQL serves both transactional and plain reads.
func (r *userRepo) querier(tx pgx.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.db
}

const userColumns = `id, referral_code, referrer_id, referral_depth, fee_tier::text, created_at`

func (r *userRepo) Create(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (id, referral_code, referrer_id, referral_depth, fee_tier, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		u.ID, u.ReferralCode, u.ReferrerID, u.ReferralDepth, u.FeeTier,
	).Scan(&u.CreatedAt)
	if err != nil && xerrors.IsUniqueViolation(err) {
		return xerrors.ErrCodeTaken
	}
	return err
}

func (r *userRepo) GetByID(ctx context.Context, tx pgx.Tx, id string) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	return r.scanUser(r.querier(tx).QueryRow(ctx, query, id))
}

func (r *userRepo) GetByReferralCode(ctx context.Context, tx pgx.Tx, code string) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE referral_code = $1`, userColumns)
	return r.scanUser(r.querier(tx).QueryRow(ctx, query, code))
}

func (r *userRepo) scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.ReferralCode, &u.ReferrerID, &u.ReferralDepth, &u.FeeTier, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UplineChain walks referrer_id edges upward, nearest level first, stopping
// at a root or at maxLevels. The visited set makes termination independent
// of data integrity.
func (r *userRepo) UplineChain(ctx context.Context, tx pgx.Tx, userID string, maxLevels int) ([]domain.UplineMember, error) {
	q := r.querier(tx)

	var chain []domain.UplineMember
	visited := map[string]bool{userID: true}
	current := userID

	for level := 1; level <= maxLevels; level++ {
		var referrerID *string
		err := q.QueryRow(ctx, `SELECT referrer_id FROM users WHERE id = $1`, current).Scan(&referrerID)
		if errors.Is(err, pgx.ErrNoRows) {
			if level == 1 {
				return nil, xerrors.ErrUserNotFound
			}
			break
		}
		if err != nil {
			return nil, err
		}
		if referrerID == nil || visited[*referrerID] {
			break
		}
		visited[*referrerID] = true
		chain = append(chain, domain.UplineMember{UserID: *referrerID, Level: level})
		current = *referrerID
	}

	return chain, nil
}

// IsInDownline reports whether targetID is reachable from rootID by
// following referrer_id edges downward. Bounded breadth-first walk; the
// forest is at most MaxReferralDepth deep, so the bound is not a limit in
// healthy data.
func (r *userRepo) IsInDownline(ctx context.Context, tx pgx.Tx, rootID, targetID string) (bool, error) {
	q := r.querier(tx)

	frontier := []string{rootID}
	visited := map[string]bool{rootID: true}

	for depth := 0; depth < domain.MaxReferralDepth && len(frontier) > 0; depth++ {
		rows, err := q.Query(ctx, `SELECT id FROM users WHERE referrer_id = ANY($1)`, frontier)
		if err != nil {
			return false, err
		}

		var next []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return false, err
			}
			if id == targetID {
				rows.Close()
				return true, nil
			}
			if !visited[id] {
				visited[id] = true
				next = append(next, id)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return false, err
		}
		frontier = next
	}

	return false, nil
}

// AttachReferrer sets the referrer exactly once. The referrer_id IS NULL
// condition is what closes the race between concurrent registrations.
func (r *userRepo) AttachReferrer(ctx context.Context, tx pgx.Tx, userID, referrerID string, depth int) error {
	tag, err := r.querier(tx).Exec(ctx, `
		UPDATE users
		SET referrer_id = $2, referral_depth = $3
		WHERE id = $1 AND referrer_id IS NULL
	`, userID, referrerID, depth)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrAlreadyReferred
	}
	return nil
}

// SetReferralCode assigns a code at most once; the unique index on
// referral_code rejects a concurrent grab of the same code.
func (r *userRepo) SetReferralCode(ctx context.Context, tx pgx.Tx, userID, code string) error {
	tag, err := r.querier(tx).Exec(ctx, `
		UPDATE users
		SET referral_code = $2
		WHERE id = $1 AND referral_code IS NULL
	`, userID, code)
	if err != nil {
		if xerrors.IsUniqueViolation(err) {
			return xerrors.ErrCodeTaken
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrCodeAlreadySet
	}
	return nil
}
