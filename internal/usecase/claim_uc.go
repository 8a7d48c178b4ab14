package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"referral-service/internal/domain"
	publisher "referral-service/internal/pub"
	"referral-service/internal/repository"
	"referral-service/pkg/xerrors"
)

const claimableCacheTTL = 5 * time.Minute

func claimableCacheKey(userID string, token domain.TokenType) string {
	return fmt.Sprintf("claimable:%s:%s", userID, token)
}

// ClaimUsecase transitions unclaimed shares to claimed and serves the
// read-only claimable balance.
type ClaimUsecase struct {
	ledgerRepo repository.LedgerRepository
	txRunner   repository.TxRunner

	redisClient    *redis.Client
	eventPublisher *publisher.EventPublisher
	logger         *zap.Logger
}

func NewClaimUsecase(
	ledgerRepo repository.LedgerRepository,
	txRunner repository.TxRunner,
	redisClient *redis.Client,
	eventPublisher *publisher.EventPublisher,
	logger *zap.Logger,
) *ClaimUsecase {
	return &ClaimUsecase{
		ledgerRepo:     ledgerRepo,
		txRunner:       txRunner,
		redisClient:    redisClient,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// Claim flips every unclaimed commission and cashback row of the user for
// the token type, in one serializable transaction, and returns the exact
// totals. Nothing to claim is a zero result, not an error.
func (uc *ClaimUsecase) Claim(ctx context.Context, userID string, token domain.TokenType) (*domain.ClaimResult, error) {
	if !token.IsValid() {
		return nil, fmt.Errorf("%w: unsupported token type %q", xerrors.ErrInvalidInput, token)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", xerrors.ErrInvalidInput)
	}

	var (
		result domain.ClaimResult
		rows   int
	)
	err := uc.txRunner.WithinSerializable(ctx, func(ctx context.Context, tx pgx.Tx) error {
		commTotal, commRows, err := uc.ledgerRepo.ClaimAllCommissions(ctx, tx, userID, token)
		if err != nil {
			return err
		}
		cbTotal, cbRows, err := uc.ledgerRepo.ClaimAllCashback(ctx, tx, userID, token)
		if err != nil {
			return err
		}

		result = domain.ClaimResult{
			CommissionTotal: commTotal,
			CashbackTotal:   cbTotal,
			Total:           commTotal.Add(cbTotal),
		}
		rows = commRows + cbRows
		return nil
	})
	if err != nil {
		return nil, err
	}

	if rows > 0 {
		uc.afterClaim(ctx, userID, token, result.Total)
	}
	return &result, nil
}

// ClaimCommission claims a single commission row. The caller must own it.
// A zero result means the row was already claimed by a concurrent call.
func (uc *ClaimUsecase) ClaimCommission(ctx context.Context, userID, commissionID string) (*domain.ClaimResult, error) {
	var result domain.ClaimResult
	var token domain.TokenType

	err := uc.txRunner.WithinSerializable(ctx, func(ctx context.Context, tx pgx.Tx) error {
		row, err := uc.ledgerRepo.GetCommissionByID(ctx, tx, commissionID)
		if err != nil {
			return err
		}
		if row.UserID != userID {
			return xerrors.ErrNotOwner
		}
		token = row.TokenType

		claimed, err := uc.ledgerRepo.ClaimCommissionByID(ctx, tx, commissionID)
		if err != nil {
			return err
		}
		if !claimed {
			result = domain.ClaimResult{CommissionTotal: decimal.Zero, CashbackTotal: decimal.Zero, Total: decimal.Zero}
			return nil
		}
		result = domain.ClaimResult{
			CommissionTotal: row.Amount,
			CashbackTotal:   decimal.Zero,
			Total:           row.Amount,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Total.Sign() > 0 {
		uc.afterClaim(ctx, userID, token, result.Total)
	}
	return &result, nil
}

// ClaimCashback is the single-row variant for a cashback entry.
func (uc *ClaimUsecase) ClaimCashback(ctx context.Context, userID, cashbackID string) (*domain.ClaimResult, error) {
	var result domain.ClaimResult
	var token domain.TokenType

	err := uc.txRunner.WithinSerializable(ctx, func(ctx context.Context, tx pgx.Tx) error {
		row, err := uc.ledgerRepo.GetCashbackByID(ctx, tx, cashbackID)
		if err != nil {
			return err
		}
		if row.UserID != userID {
			return xerrors.ErrNotOwner
		}
		token = row.TokenType

		claimed, err := uc.ledgerRepo.ClaimCashbackByID(ctx, tx, cashbackID)
		if err != nil {
			return err
		}
		if !claimed {
			result = domain.ClaimResult{CommissionTotal: decimal.Zero, CashbackTotal: decimal.Zero, Total: decimal.Zero}
			return nil
		}
		result = domain.ClaimResult{
			CommissionTotal: decimal.Zero,
			CashbackTotal:   row.Amount,
			Total:           row.Amount,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Total.Sign() > 0 {
		uc.afterClaim(ctx, userID, token, result.Total)
	}
	return &result, nil
}

// ClaimableBalance aggregates unclaimed shares per token type. Purely
// derived, cached for a few minutes; every claim and every processed trade
// invalidates the key.
func (uc *ClaimUsecase) ClaimableBalance(ctx context.Context, userID string, token domain.TokenType) (*domain.ClaimableBalance, error) {
	if !token.IsValid() {
		return nil, fmt.Errorf("%w: unsupported token type %q", xerrors.ErrInvalidInput, token)
	}

	cacheKey := claimableCacheKey(userID, token)
	if uc.redisClient != nil {
		if val, err := uc.redisClient.Get(ctx, cacheKey).Result(); err == nil {
			var cached domain.ClaimableBalance
			if jsonErr := json.Unmarshal([]byte(val), &cached); jsonErr == nil {
				return &cached, nil
			}
		}
	}

	balance, err := uc.ledgerRepo.UnclaimedTotals(ctx, userID, token)
	if err != nil {
		return nil, err
	}

	if uc.redisClient != nil {
		if data, err := json.Marshal(balance); err == nil {
			_ = uc.redisClient.Set(ctx, cacheKey, data, claimableCacheTTL).Err()
		}
	}
	return balance, nil
}

func (uc *ClaimUsecase) afterClaim(ctx context.Context, userID string, token domain.TokenType, total decimal.Decimal) {
	if uc.redisClient != nil {
		if err := uc.redisClient.Del(ctx, claimableCacheKey(userID, token)).Err(); err != nil {
			uc.logger.Warn("failed to invalidate claimable cache", zap.Error(err))
		}
	}

	uc.eventPublisher.PublishCommissionsClaimed(ctx, publisher.CommissionsClaimedEvent{
		UserID:    userID,
		TokenType: string(token),
		Total:     total.String(),
	})

	uc.logger.Info("shares claimed",
		zap.String("user_id", userID),
		zap.String("token_type", string(token)),
		zap.String("total", total.String()))
}
