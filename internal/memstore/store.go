// Package memstore keeps users, accounts and wagers in process memory.
//
// It offers the same unit-of-work contract as the Postgres repositories:
// an account locked with GetBalanceForUpdate stays locked until the unit of
// work commits or rolls back, writes stay invisible to others until commit,
// and a rolled back unit of work leaves no trace. Each account has its own
// lock, so units of work touching different accounts never wait on each other.
package memstore

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/logger"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/models"
	"github.com/shopspring/decimal"
)

var (
	// ErrNoTransaction is returned when a row lock is requested outside a unit of work.
	ErrNoTransaction = errors.New("row lock requires an open transaction")
	// ErrNegativeBalance mirrors the balance >= 0 check constraint.
	ErrNegativeBalance = errors.New("balance must not be negative")
)

type account struct {
	lock chan struct{} // capacity 1, a token in the channel means "held"
	row  models.AccountDB
}

// Store is an in-memory ledger store. The zero value is not usable; call New.
type Store struct {
	mu          sync.RWMutex
	users       map[uuid.UUID]models.UserDB
	accounts    map[uuid.UUID]*account
	wagers      map[uuid.UUID][]models.WagerDB // append order is creation order
	lastWagerID int64
	now         func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:    make(map[uuid.UUID]models.UserDB),
		accounts: make(map[uuid.UUID]*account),
		wagers:   make(map[uuid.UUID][]models.WagerDB),
		now:      time.Now,
	}
}

// unitOfWork buffers writes and remembers which account locks it holds.
type unitOfWork struct {
	held     map[uuid.UUID]*account
	balances map[uuid.UUID]decimal.Decimal
	users    []models.UserDB
	accounts []models.AccountDB
	wagers   []models.WagerDB
}

type uowKey struct{}

func fromContext(ctx context.Context) *unitOfWork {
	uow, _ := ctx.Value(uowKey{}).(*unitOfWork)
	return uow
}

// RunInTx executes fn as one unit of work. Writes made through ctx become
// visible together when fn returns nil; otherwise they are discarded.
// A unit of work already present in ctx is reused.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fromContext(ctx) != nil {
		return fn(ctx)
	}

	uow := &unitOfWork{
		held:     make(map[uuid.UUID]*account),
		balances: make(map[uuid.UUID]decimal.Decimal),
	}
	defer s.release(uow)

	if err := fn(context.WithValue(ctx, uowKey{}, uow)); err != nil {
		return err
	}
	return s.commit(uow)
}

func (s *Store) commit(uow *unitOfWork) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range uow.users {
		if s.userTakenLocked(u.Username, u.Email) {
			return models.ErrDuplicate
		}
	}
	for _, a := range uow.accounts {
		if _, ok := s.accounts[a.AccountID]; ok {
			return models.ErrDuplicate
		}
	}

	now := s.now()
	for _, u := range uow.users {
		s.users[u.UserID] = u
	}
	for _, a := range uow.accounts {
		s.accounts[a.AccountID] = &account{lock: make(chan struct{}, 1), row: a}
	}
	for id, balance := range uow.balances {
		acc := uow.held[id]
		acc.row.Balance = balance
		acc.row.UpdatedAt = now
	}
	for _, w := range uow.wagers {
		s.wagers[w.AccountID] = append(s.wagers[w.AccountID], w)
	}
	return nil
}

func (s *Store) release(uow *unitOfWork) {
	for id, acc := range uow.held {
		<-acc.lock
		delete(uow.held, id)
	}
}

// lock acquires the account's lock for uow, waiting until it is free or ctx ends.
func (s *Store) lock(ctx context.Context, uow *unitOfWork, accountID uuid.UUID) (*account, error) {
	if acc, ok := uow.held[accountID]; ok {
		return acc, nil
	}

	s.mu.RLock()
	acc, ok := s.accounts[accountID]
	s.mu.RUnlock()
	if !ok {
		return nil, sql.ErrNoRows
	}

	select {
	case acc.lock <- struct{}{}:
	case <-ctx.Done():
		logger.Log.Warnw("gave up waiting for account lock", "account_id", accountID, "error", ctx.Err())
		return nil, ctx.Err()
	}
	uow.held[accountID] = acc
	return acc, nil
}

func (s *Store) userTakenLocked(username, email string) bool {
	for _, u := range s.users {
		if u.Username == username || u.Email == email {
			return true
		}
	}
	return false
}

// Users returns the user repository view of the store.
func (s *Store) Users() *Users { return &Users{s: s} }

// Accounts returns the account repository view of the store.
func (s *Store) Accounts() *Accounts { return &Accounts{s: s} }

// Wagers returns the wager repository view of the store.
func (s *Store) Wagers() *Wagers { return &Wagers{s: s} }

// Audit returns the audit view of the store.
func (s *Store) Audit() *Audit { return &Audit{s: s} }

// Users stores registered users.
type Users struct{ s *Store }

// GetByUsernameOrEmail returns the first user matching either non-nil argument, or nil.
func (r *Users) GetByUsernameOrEmail(ctx context.Context, username, email *string) (*models.UserDB, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if (username != nil && u.Username == *username) || (email != nil && u.Email == *email) {
			user := u
			return &user, nil
		}
	}
	return nil, nil
}

// Save adds a user and returns its id. A taken username or email yields models.ErrDuplicate.
func (r *Users) Save(ctx context.Context, username, passwordHash, email string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := r.s.RunInTx(ctx, func(ctx context.Context) error {
		uow := fromContext(ctx)

		r.s.mu.RLock()
		taken := r.s.userTakenLocked(username, email)
		r.s.mu.RUnlock()
		for _, u := range uow.users {
			taken = taken || u.Username == username || u.Email == email
		}
		if taken {
			return models.ErrDuplicate
		}

		now := r.s.now()
		userID = uuid.New()
		uow.users = append(uow.users, models.UserDB{
			UserID:       userID,
			Username:     username,
			Email:        email,
			PasswordHash: passwordHash,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return userID, nil
}

// Accounts stores balances.
type Accounts struct{ s *Store }

// Create opens an account holding the starting balance.
func (r *Accounts) Create(ctx context.Context, accountID uuid.UUID, startingBalance decimal.Decimal) error {
	if startingBalance.IsNegative() {
		return ErrNegativeBalance
	}
	return r.s.RunInTx(ctx, func(ctx context.Context) error {
		now := r.s.now()
		uow := fromContext(ctx)
		uow.accounts = append(uow.accounts, models.AccountDB{
			AccountID:       accountID,
			Balance:         startingBalance,
			StartingBalance: startingBalance,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		return nil
	})
}

// GetBalanceForUpdate locks the account for the rest of the unit of work and
// returns its balance. Returns sql.ErrNoRows for unknown accounts.
func (r *Accounts) GetBalanceForUpdate(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	uow := fromContext(ctx)
	if uow == nil {
		return decimal.Zero, ErrNoTransaction
	}

	acc, err := r.s.lock(ctx, uow, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	if pending, ok := uow.balances[accountID]; ok {
		return pending, nil
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return acc.row.Balance, nil
}

// UpdateBalance overwrites the balance, locking the account like an UPDATE would.
func (r *Accounts) UpdateBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error {
	if balance.IsNegative() {
		return ErrNegativeBalance
	}
	return r.s.RunInTx(ctx, func(ctx context.Context) error {
		uow := fromContext(ctx)
		if _, err := r.s.lock(ctx, uow, accountID); err != nil {
			return err
		}
		uow.balances[accountID] = balance
		return nil
	})
}

// GetBalance returns the committed balance, or the pending one inside a unit of work.
func (r *Accounts) GetBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	if uow := fromContext(ctx); uow != nil {
		if pending, ok := uow.balances[accountID]; ok {
			return pending, nil
		}
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	acc, ok := r.s.accounts[accountID]
	if !ok {
		return decimal.Zero, sql.ErrNoRows
	}
	return acc.row.Balance, nil
}

// Wagers stores the append-only wager history.
type Wagers struct{ s *Store }

// Save appends the wager and returns it with id and timestamp filled in.
func (r *Wagers) Save(ctx context.Context, wager models.WagerDB) (models.WagerDB, error) {
	if !wager.Stake.IsPositive() || !wager.ChosenSide.Valid() || !wager.ActualSide.Valid() {
		return models.WagerDB{}, errors.New("wager violates table constraints")
	}

	err := r.s.RunInTx(ctx, func(ctx context.Context) error {
		r.s.mu.Lock()
		_, ok := r.s.accounts[wager.AccountID]
		if ok {
			r.s.lastWagerID++
			wager.WagerID = r.s.lastWagerID
		}
		r.s.mu.Unlock()
		if !ok {
			return sql.ErrNoRows
		}

		wager.CreatedAt = r.s.now()
		uow := fromContext(ctx)
		uow.wagers = append(uow.wagers, wager)
		return nil
	})
	if err != nil {
		return models.WagerDB{}, err
	}
	return wager, nil
}

// ListByAccountID returns committed wagers newest first.
func (r *Wagers) ListByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]models.WagerDB, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := r.s.wagers[accountID]
	page := []models.WagerDB{}
	for i := len(all) - 1 - offset; i >= 0 && len(page) < limit; i-- {
		page = append(page, all[i])
	}
	return page, nil
}

// CountByAccountID returns how many committed wagers the account has.
func (r *Wagers) CountByAccountID(ctx context.Context, accountID uuid.UUID) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.wagers[accountID]), nil
}

// Audit checks balances against the wager history.
type Audit struct{ s *Store }

// ListDrift returns accounts whose balance differs from starting balance plus net wager effects.
func (r *Audit) ListDrift(ctx context.Context) ([]models.AccountDrift, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	drifts := []models.AccountDrift{}
	for id, acc := range r.s.accounts {
		expected := acc.row.StartingBalance
		for _, w := range r.s.wagers[id] {
			expected = expected.Add(w.NetEffect())
		}
		if !expected.Equal(acc.row.Balance) {
			drifts = append(drifts, models.AccountDrift{
				AccountID:       id,
				Balance:         acc.row.Balance,
				ExpectedBalance: expected,
			})
		}
	}
	sort.Slice(drifts, func(i, j int) bool {
		return drifts[i].AccountID.String() < drifts[j].AccountID.String()
	})
	return drifts, nil
}
