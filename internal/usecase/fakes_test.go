package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"referral-service/internal/domain"
	"referral-service/internal/repository"
	"referral-service/pkg/xerrors"
)

// In-memory repository fakes. The tx handle is ignored; the fake runner
// below passes nil. Mutexes stand in for the store's isolation so the
// claim compare-and-set behaves like the real conditional UPDATE.

type fakeTxRunner struct{}

func (fakeTxRunner) WithinSerializable(ctx context.Context, fn repository.UnitOfWork) error {
	return fn(ctx, nil)
}

// ---------- users ----------

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.User)}
}

func (r *fakeUserRepo) put(u *domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.users[u.ID] = &cp
}

func (r *fakeUserRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u.CreatedAt = time.Now()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, _ pgx.Tx, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, xerrors.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByReferralCode(_ context.Context, _ pgx.Tx, code string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ReferralCode != nil && *u.ReferralCode == code {
			cp := *u
			return &cp, nil
		}
	}
	return nil, xerrors.ErrUserNotFound
}

func (r *fakeUserRepo) UplineChain(_ context.Context, _ pgx.Tx, userID string, maxLevels int) ([]domain.UplineMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, xerrors.ErrUserNotFound
	}

	var chain []domain.UplineMember
	visited := map[string]bool{userID: true}
	current := u
	for level := 1; level <= maxLevels; level++ {
		if current.ReferrerID == nil || visited[*current.ReferrerID] {
			break
		}
		next, ok := r.users[*current.ReferrerID]
		if !ok {
			break
		}
		visited[next.ID] = true
		chain = append(chain, domain.UplineMember{UserID: next.ID, Level: level})
		current = next
	}
	return chain, nil
}

func (r *fakeUserRepo) IsInDownline(_ context.Context, _ pgx.Tx, rootID, targetID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frontier := map[string]bool{rootID: true}
	for depth := 0; depth < domain.MaxReferralDepth && len(frontier) > 0; depth++ {
		next := map[string]bool{}
		for _, u := range r.users {
			if u.ReferrerID != nil && frontier[*u.ReferrerID] {
				if u.ID == targetID {
					return true, nil
				}
				next[u.ID] = true
			}
		}
		frontier = next
	}
	return false, nil
}

func (r *fakeUserRepo) AttachReferrer(_ context.Context, _ pgx.Tx, userID, referrerID string, depth int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return xerrors.ErrUserNotFound
	}
	if u.ReferrerID != nil {
		return xerrors.ErrAlreadyReferred
	}
	ref := referrerID
	u.ReferrerID = &ref
	u.ReferralDepth = depth
	return nil
}

func (r *fakeUserRepo) SetReferralCode(_ context.Context, _ pgx.Tx, userID, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return xerrors.ErrUserNotFound
	}
	if u.ReferralCode != nil {
		return xerrors.ErrCodeAlreadySet
	}
	for _, other := range r.users {
		if other.ReferralCode != nil && *other.ReferralCode == code {
			return xerrors.ErrCodeTaken
		}
	}
	c := code
	u.ReferralCode = &c
	return nil
}

// ---------- trades ----------

type fakeTradeRepo struct {
	mu      sync.Mutex
	trades  map[string]*domain.Trade
	markers map[string]bool
}

func newFakeTradeRepo() *fakeTradeRepo {
	return &fakeTradeRepo{
		trades:  make(map[string]*domain.Trade),
		markers: make(map[string]bool),
	}
}

func (r *fakeTradeRepo) Insert(_ context.Context, _ pgx.Tx, t *domain.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.CreatedAt = time.Now()
	cp := *t
	r.trades[t.ID] = &cp
	return nil
}

func (r *fakeTradeRepo) MarkProcessed(_ context.Context, _ pgx.Tx, tradeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trades[tradeID]
	if !ok || t.ProcessedForCommissions {
		return xerrors.ErrAlreadyProcessed
	}
	t.ProcessedForCommissions = true
	return nil
}

func (r *fakeTradeRepo) InsertProcessedMarker(_ context.Context, _ pgx.Tx, tradeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markers[tradeID] {
		return xerrors.ErrAlreadyProcessed
	}
	r.markers[tradeID] = true
	return nil
}

func (r *fakeTradeRepo) GetByID(_ context.Context, _ pgx.Tx, id string) (*domain.Trade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trades[id]
	if !ok {
		return nil, xerrors.ErrTradeNotFound
	}
	cp := *t
	return &cp, nil
}

// ---------- ledger ----------

type fakeLedgerRepo struct {
	mu          sync.Mutex
	commissions map[string]*domain.Commission
	cashbacks   map[string]*domain.Cashback
	treasuries  []*domain.TreasuryAllocation
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{
		commissions: make(map[string]*domain.Commission),
		cashbacks:   make(map[string]*domain.Cashback),
	}
}

func (r *fakeLedgerRepo) InsertBreakdown(_ context.Context, _ pgx.Tx, commissions []*domain.Commission, cashback *domain.Cashback, treasury *domain.TreasuryAllocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range commissions {
		cp := *c
		r.commissions[c.ID] = &cp
	}
	cb := *cashback
	r.cashbacks[cashback.ID] = &cb
	tr := *treasury
	r.treasuries = append(r.treasuries, &tr)
	return nil
}

func (r *fakeLedgerRepo) ClaimAllCommissions(_ context.Context, _ pgx.Tx, userID string, token domain.TokenType) (decimal.Decimal, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	count := 0
	now := time.Now()
	for _, c := range r.commissions {
		if c.UserID == userID && c.TokenType == token && !c.Claimed {
			c.Claimed = true
			c.ClaimedAt = &now
			total = total.Add(c.Amount)
			count++
		}
	}
	return total, count, nil
}

func (r *fakeLedgerRepo) ClaimAllCashback(_ context.Context, _ pgx.Tx, userID string, token domain.TokenType) (decimal.Decimal, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	count := 0
	now := time.Now()
	for _, c := range r.cashbacks {
		if c.UserID == userID && c.TokenType == token && !c.Claimed {
			c.Claimed = true
			c.ClaimedAt = &now
			total = total.Add(c.Amount)
			count++
		}
	}
	return total, count, nil
}

func (r *fakeLedgerRepo) GetCommissionByID(_ context.Context, _ pgx.Tx, id string) (*domain.Commission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.commissions[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeLedgerRepo) GetCashbackByID(_ context.Context, _ pgx.Tx, id string) (*domain.Cashback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cashbacks[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeLedgerRepo) ClaimCommissionByID(_ context.Context, _ pgx.Tx, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.commissions[id]
	if !ok || c.Claimed {
		return false, nil
	}
	now := time.Now()
	c.Claimed = true
	c.ClaimedAt = &now
	return true, nil
}

func (r *fakeLedgerRepo) ClaimCashbackByID(_ context.Context, _ pgx.Tx, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cashbacks[id]
	if !ok || c.Claimed {
		return false, nil
	}
	now := time.Now()
	c.Claimed = true
	c.ClaimedAt = &now
	return true, nil
}

func (r *fakeLedgerRepo) UnclaimedTotals(_ context.Context, userID string, token domain.TokenType) (*domain.ClaimableBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	comm := decimal.Zero
	cb := decimal.Zero
	for _, c := range r.commissions {
		if c.UserID == userID && c.TokenType == token && !c.Claimed {
			comm = comm.Add(c.Amount)
		}
	}
	for _, c := range r.cashbacks {
		if c.UserID == userID && c.TokenType == token && !c.Claimed {
			cb = cb.Add(c.Amount)
		}
	}
	return &domain.ClaimableBalance{
		Commissions: comm,
		Cashback:    cb,
		Total:       comm.Add(cb),
	}, nil
}
