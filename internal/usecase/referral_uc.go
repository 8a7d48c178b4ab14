package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"referral-service/internal/domain"
	"referral-service/internal/pkg/money"
	"referral-service/internal/repository"
	"referral-service/pkg/id"
	"referral-service/pkg/xerrors"
)

const (
	referralCodeLength   = 8
	codeCollisionRetries = 3
)

// ReferralUsecase owns the referral graph: user registration, referral-code
// assignment and referrer attachment with the graph-integrity checks.
type ReferralUsecase struct {
	userRepo repository.UserRepository
	txRunner repository.TxRunner
	logger   *zap.Logger
}

func NewReferralUsecase(userRepo repository.UserRepository, txRunner repository.TxRunner, logger *zap.Logger) *ReferralUsecase {
	return &ReferralUsecase{
		userRepo: userRepo,
		txRunner: txRunner,
		logger:   logger,
	}
}

// RegisterUser creates a new root user with the given fee tier.
func (uc *ReferralUsecase) RegisterUser(ctx context.Context, feeTier string) (*domain.User, error) {
	tier, err := money.ParsePositive(feeTier)
	if err != nil {
		return nil, err
	}
	if tier.Cmp(oneDecimal) >= 0 {
		return nil, fmt.Errorf("%w: fee tier must be below 1", xerrors.ErrInvalidInput)
	}

	u := &domain.User{
		ID:      id.Generate("usr"),
		FeeTier: tier.String(),
	}
	if err := uc.userRepo.Create(ctx, u); err != nil {
		return nil, err
	}

	uc.logger.Info("user registered",
		zap.String("user_id", u.ID),
		zap.String("fee_tier", u.FeeTier))
	return u, nil
}

// AssignReferralCode gives a user their unique referral code, at most once.
// The uniqueness index closes the race against a concurrent grab of the
// same code; collisions just get a fresh code.
func (uc *ReferralUsecase) AssignReferralCode(ctx context.Context, userID string) (string, error) {
	for attempt := 0; attempt < codeCollisionRetries; attempt++ {
		code := id.GenerateReferralCode(referralCodeLength)
		err := uc.userRepo.SetReferralCode(ctx, nil, userID, code)
		if err == nil {
			return code, nil
		}
		if errors.Is(err, xerrors.ErrCodeTaken) {
			continue
		}
		return "", err
	}
	return "", fmt.Errorf("%w: could not find a free referral code", xerrors.ErrTransactionFailed)
}

// AttachReferrer links userID under the owner of referralCode. All
// graph-integrity checks run before the single conditional write, inside
// one serializable transaction so a concurrent re-parenting cannot be
// half-observed.
//
// The circularity check runs unconditionally, whether or not the joining
// user has a referral code of their own: any descendant chain, however it
// was formed, must reject an upward edge.
func (uc *ReferralUsecase) AttachReferrer(ctx context.Context, userID, referralCode string) (*domain.User, error) {
	if userID == "" || referralCode == "" {
		return nil, fmt.Errorf("%w: user id and referral code are required", xerrors.ErrInvalidInput)
	}

	var updated *domain.User
	err := uc.txRunner.WithinSerializable(ctx, func(ctx context.Context, tx pgx.Tx) error {
		user, err := uc.userRepo.GetByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user.ReferrerID != nil {
			return xerrors.ErrAlreadyReferred
		}

		referrer, err := uc.userRepo.GetByReferralCode(ctx, tx, referralCode)
		if err != nil {
			return err
		}
		if referrer.ID == userID {
			return xerrors.ErrSelfReferral
		}
		if referrer.ReferralDepth >= domain.MaxReferralDepth {
			return xerrors.ErrMaxDepthExceeded
		}

		inDownline, err := uc.userRepo.IsInDownline(ctx, tx, userID, referrer.ID)
		if err != nil {
			return err
		}
		if inDownline {
			return xerrors.ErrCircularReference
		}

		depth := referrer.ReferralDepth + 1
		if err := uc.userRepo.AttachReferrer(ctx, tx, userID, referrer.ID, depth); err != nil {
			return err
		}

		user.ReferrerID = &referrer.ID
		user.ReferralDepth = depth
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("referrer attached",
		zap.String("user_id", updated.ID),
		zap.String("referrer_id", *updated.ReferrerID),
		zap.Int("depth", updated.ReferralDepth))
	return updated, nil
}

// UplineChain returns the user's referrer chain, nearest level first.
func (uc *ReferralUsecase) UplineChain(ctx context.Context, userID string) ([]domain.UplineMember, error) {
	return uc.userRepo.UplineChain(ctx, nil, userID, domain.MaxReferralDepth)
}
