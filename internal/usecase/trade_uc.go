package usecase

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"referral-service/internal/domain"
	"referral-service/internal/pkg/money"
	publisher "referral-service/internal/pub"
	"referral-service/internal/repository"
	"referral-service/pkg/id"
	"referral-service/pkg/xerrors"
)

var oneDecimal = decimal.NewFromInt(1)

// TradeReceipt is what a successful trade submission returns.
type TradeReceipt struct {
	TradeID   string               `json:"trade_id"`
	FeeAmount decimal.Decimal      `json:"fee_amount"`
	Breakdown *domain.FeeBreakdown `json:"breakdown"`
}

// TradeUsecase records trades and distributes their fees. Every money
// movement happens inside one serializable transaction; kafka events and
// cache invalidation run only after a successful commit.
type TradeUsecase struct {
	userRepo    repository.UserRepository
	tradeRepo   repository.TradeRepository
	ledgerRepo  repository.LedgerRepository
	distributor *Distributor
	txRunner    repository.TxRunner

	redisClient    *redis.Client
	eventPublisher *publisher.EventPublisher
	logger         *zap.Logger
}

func NewTradeUsecase(
	userRepo repository.UserRepository,
	tradeRepo repository.TradeRepository,
	ledgerRepo repository.LedgerRepository,
	distributor *Distributor,
	txRunner repository.TxRunner,
	redisClient *redis.Client,
	eventPublisher *publisher.EventPublisher,
	logger *zap.Logger,
) *TradeUsecase {
	return &TradeUsecase{
		userRepo:       userRepo,
		tradeRepo:      tradeRepo,
		ledgerRepo:     ledgerRepo,
		distributor:    distributor,
		txRunner:       txRunner,
		redisClient:    redisClient,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// RecordTrade creates a trade at the trader's current fee tier and
// distributes its fee, atomically.
func (uc *TradeUsecase) RecordTrade(ctx context.Context, userID, volume string, token domain.TokenType) (*TradeReceipt, error) {
	return uc.recordTrade(ctx, userID, volume, "", token)
}

// RecordTradeWithTier is RecordTrade with an explicit fee-tier override,
// for simulation paths.
func (uc *TradeUsecase) RecordTradeWithTier(ctx context.Context, userID, volume, feeTier string, token domain.TokenType) (*TradeReceipt, error) {
	if feeTier == "" {
		return nil, fmt.Errorf("%w: fee tier is required", xerrors.ErrInvalidInput)
	}
	return uc.recordTrade(ctx, userID, volume, feeTier, token)
}

func (uc *TradeUsecase) recordTrade(ctx context.Context, userID, volume, feeTier string, token domain.TokenType) (*TradeReceipt, error) {
	if !token.IsValid() {
		return nil, fmt.Errorf("%w: unsupported token type %q", xerrors.ErrInvalidInput, token)
	}
	vol, err := money.ParsePositive(volume)
	if err != nil {
		return nil, err
	}

	var tierOverride *decimal.Decimal
	if feeTier != "" {
		tier, err := money.ParsePositive(feeTier)
		if err != nil {
			return nil, err
		}
		if tier.Cmp(oneDecimal) >= 0 {
			return nil, fmt.Errorf("%w: fee tier must be below 1", xerrors.ErrInvalidInput)
		}
		tierOverride = &tier
	}

	var receipt *TradeReceipt
	err = uc.txRunner.WithinSerializable(ctx, func(ctx context.Context, tx pgx.Tx) error {
		user, err := uc.userRepo.GetByID(ctx, tx, userID)
		if err != nil {
			return err
		}

		tier := decimal.Decimal{}
		if tierOverride != nil {
			tier = *tierOverride
		} else {
			tier, err = money.Parse(user.FeeTier)
			if err != nil {
				return fmt.Errorf("corrupt fee tier for user %s: %w", userID, err)
			}
		}

		trade := &domain.Trade{
			ID:        id.Generate("trd"),
			UserID:    userID,
			Volume:    vol,
			FeeAmount: money.MulRate(vol, tier),
			FeeTier:   tier,
			TokenType: token,
		}
		if err := uc.tradeRepo.Insert(ctx, tx, trade); err != nil {
			return err
		}

		breakdown, err := uc.process(ctx, tx, trade)
		if err != nil {
			return err
		}

		receipt = &TradeReceipt{
			TradeID:   trade.ID,
			FeeAmount: trade.FeeAmount,
			Breakdown: breakdown,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.afterProcessed(ctx, userID, token, receipt)
	return receipt, nil
}

// ProcessTrade distributes the fee of an already recorded, still pending
// trade. A second call for the same trade id fails with AlreadyProcessed;
// the ledger rows are written at most once.
func (uc *TradeUsecase) ProcessTrade(ctx context.Context, tradeID string) (*TradeReceipt, error) {
	var (
		receipt *TradeReceipt
		userID  string
		token   domain.TokenType
	)
	err := uc.txRunner.WithinSerializable(ctx, func(ctx context.Context, tx pgx.Tx) error {
		trade, err := uc.tradeRepo.GetByID(ctx, tx, tradeID)
		if err != nil {
			return err
		}
		if trade.ProcessedForCommissions {
			return xerrors.ErrAlreadyProcessed
		}
		userID, token = trade.UserID, trade.TokenType

		breakdown, err := uc.process(ctx, tx, trade)
		if err != nil {
			return err
		}
		receipt = &TradeReceipt{
			TradeID:   trade.ID,
			FeeAmount: trade.FeeAmount,
			Breakdown: breakdown,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.afterProcessed(ctx, userID, token, receipt)
	return receipt, nil
}

// process runs steps 4-7 of the trade transaction: distribute, persist the
// ledger rows, flip the processed flag, write the idempotency marker.
func (uc *TradeUsecase) process(ctx context.Context, tx pgx.Tx, trade *domain.Trade) (*domain.FeeBreakdown, error) {
	breakdown, err := uc.distributor.Distribute(ctx, tx, trade.UserID, trade.FeeAmount)
	if err != nil {
		return nil, err
	}
	if !ValidateBreakdown(trade.FeeAmount, breakdown) {
		return nil, fmt.Errorf("fee breakdown does not sum to fee amount for trade %s", trade.ID)
	}

	commissions := make([]*domain.Commission, 0, len(breakdown.Commissions))
	for _, share := range breakdown.Commissions {
		commissions = append(commissions, &domain.Commission{
			ID:        id.Generate("com"),
			UserID:    share.UserID,
			TradeID:   trade.ID,
			Amount:    share.Amount,
			Level:     share.Level,
			TokenType: trade.TokenType,
		})
	}
	cashback := &domain.Cashback{
		ID:        id.Generate("cbk"),
		UserID:    trade.UserID,
		TradeID:   trade.ID,
		Amount:    breakdown.Cashback,
		TokenType: trade.TokenType,
	}
	treasury := &domain.TreasuryAllocation{
		ID:        id.Generate("tre"),
		TradeID:   trade.ID,
		Amount:    breakdown.Treasury,
		TokenType: trade.TokenType,
	}

	if err := uc.ledgerRepo.InsertBreakdown(ctx, tx, commissions, cashback, treasury); err != nil {
		return nil, err
	}
	if err := uc.tradeRepo.MarkProcessed(ctx, tx, trade.ID); err != nil {
		return nil, err
	}
	if err := uc.tradeRepo.InsertProcessedMarker(ctx, tx, trade.ID); err != nil {
		return nil, err
	}
	return breakdown, nil
}

// afterProcessed runs the post-commit side effects: beneficiary cache
// invalidation and the kafka event.
func (uc *TradeUsecase) afterProcessed(ctx context.Context, traderID string, token domain.TokenType, receipt *TradeReceipt) {
	uc.invalidateBalances(ctx, traderID, token, receipt.Breakdown)

	uc.eventPublisher.PublishTradeProcessed(ctx, publisher.TradeProcessedEvent{
		TradeID:     receipt.TradeID,
		UserID:      traderID,
		TokenType:   string(token),
		FeeAmount:   receipt.FeeAmount.String(),
		Commissions: len(receipt.Breakdown.Commissions),
	})

	uc.logger.Info("trade processed",
		zap.String("trade_id", receipt.TradeID),
		zap.String("user_id", traderID),
		zap.String("token_type", string(token)),
		zap.String("fee_amount", receipt.FeeAmount.String()),
		zap.Int("commissions", len(receipt.Breakdown.Commissions)))
}

func (uc *TradeUsecase) invalidateBalances(ctx context.Context, traderID string, token domain.TokenType, breakdown *domain.FeeBreakdown) {
	if uc.redisClient == nil {
		return
	}
	keys := []string{claimableCacheKey(traderID, token)}
	for _, share := range breakdown.Commissions {
		keys = append(keys, claimableCacheKey(share.UserID, token))
	}
	if err := uc.redisClient.Del(ctx, keys...).Err(); err != nil {
		uc.logger.Warn("failed to invalidate claimable cache", zap.Error(err))
	}
}
