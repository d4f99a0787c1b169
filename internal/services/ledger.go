package services

//go:generate mockgen -source=ledger.go -destination=ledger_mock.go -package=services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/coin"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/logger"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/models"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidStake is returned when the stake is not a positive amount with at most two decimals.
	ErrInvalidStake = errors.New("invalid stake")
	// ErrInvalidSide is returned when the chosen side is neither heads nor tails.
	ErrInvalidSide = errors.New("invalid side")
	// ErrInsufficientFunds is returned when the balance at lock time is below the stake.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrAccountNotFound is returned when the account does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrPersistenceFailure wraps any storage failure. The attempt had no effect.
	ErrPersistenceFailure = errors.New("persistence failure")
	// ErrInvalidPage is returned for negative history limits or offsets.
	ErrInvalidPage = errors.New("invalid page")
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

// DefaultPayoutMultiplier pays twice the stake on a win, so a win nets +stake.
var DefaultPayoutMultiplier = decimal.NewFromInt(2)

// TxRunner runs fn as one unit of work carried by ctx.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AccountStore reads, locks and updates account balances.
type AccountStore interface {
	GetBalanceForUpdate(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) // Locks the row until the unit of work ends
	UpdateBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error // Overwrites the balance
	GetBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)          // Reads without locking
}

// WagerWriter appends wager records.
type WagerWriter interface {
	Save(ctx context.Context, wager models.WagerDB) (models.WagerDB, error)
}

// WagerReader pages through wager history.
type WagerReader interface {
	ListByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]models.WagerDB, error)
	CountByAccountID(ctx context.Context, accountID uuid.UUID) (int, error)
}

// BalanceCache caches committed balances.
//
// A settled balance is stored with the id of the wager that produced it and
// replaces only an entry from an older wager. A read-through fill never
// replaces an existing entry.
type BalanceCache interface {
	GetBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
	FillBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error
	StoreSettledBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal, wagerID int64) error
}

// KafkaWriter defines a Kafka writer abstraction.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error // Writes messages to Kafka
	Close() error                                                   // Closes the Kafka writer
}

// WagerRecorder records wager outcomes and failures.
type WagerRecorder interface {
	ObserveWager(win bool, elapsed time.Duration)
	ObserveFailure(reason string)
}

// LedgerOption configures optional LedgerService collaborators.
type LedgerOption func(*LedgerService)

// WithCoin replaces the fair coin.
func WithCoin(c coin.Coin) LedgerOption {
	return func(s *LedgerService) { s.coin = c }
}

// WithPayoutMultiplier sets how many times the stake a win pays out.
func WithPayoutMultiplier(m decimal.Decimal) LedgerOption {
	return func(s *LedgerService) { s.payoutMultiplier = m }
}

// WithBalanceCache enables cache-aside balance reads.
func WithBalanceCache(c BalanceCache) LedgerOption {
	return func(s *LedgerService) { s.cache = c }
}

// WithKafkaWriter enables publishing of settled wagers.
func WithKafkaWriter(w KafkaWriter) LedgerOption {
	return func(s *LedgerService) { s.kafkaWriter = w }
}

// WithRecorder enables wager metrics.
func WithRecorder(r WagerRecorder) LedgerOption {
	return func(s *LedgerService) { s.recorder = r }
}

// LedgerService resolves wagers against account balances.
type LedgerService struct {
	tx               TxRunner
	accounts         AccountStore
	wagerWriter      WagerWriter
	wagerReader      WagerReader
	coin             coin.Coin
	payoutMultiplier decimal.Decimal
	cache            BalanceCache
	kafkaWriter      KafkaWriter
	recorder         WagerRecorder
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(
	tx TxRunner,
	accounts AccountStore,
	wagerWriter WagerWriter,
	wagerReader WagerReader,
	opts ...LedgerOption,
) *LedgerService {
	s := &LedgerService{
		tx:               tx,
		accounts:         accounts,
		wagerWriter:      wagerWriter,
		wagerReader:      wagerReader,
		coin:             coin.NewFair(),
		payoutMultiplier: DefaultPayoutMultiplier,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolveWager flips the coin for one bet and settles it against the account.
//
// The account row stays locked from the balance read until commit, so wagers
// on one account are applied one after another. Any error means nothing was
// written. On success the returned balance is re-read after commit.
func (s *LedgerService) ResolveWager(ctx context.Context, accountID uuid.UUID, stake decimal.Decimal, side models.Side) (*models.WagerResult, error) {
	start := time.Now()

	if err := validateWager(stake, side); err != nil {
		logger.Log.Warnw("rejected wager", "account_id", accountID, "stake", stakeForLog(stake), "side", side, "error", err)
		s.observeFailure(err)
		return nil, err
	}

	var (
		result  models.WagerResult
		settled decimal.Decimal
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		balance, err := s.accounts.GetBalanceForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if balance.LessThan(stake) {
			return ErrInsufficientFunds
		}

		outcome := s.coin.Flip()
		win := outcome == side
		payout := decimal.Zero
		if win {
			payout = stake.Mul(s.payoutMultiplier).Round(models.AmountScale)
		}
		newBalance := balance.Sub(stake).Add(payout)

		if err := s.accounts.UpdateBalance(ctx, accountID, newBalance); err != nil {
			return err
		}

		wager, err := s.wagerWriter.Save(ctx, models.WagerDB{
			AccountID:  accountID,
			Stake:      stake,
			ChosenSide: side,
			ActualSide: outcome,
			Win:        win,
			Payout:     payout,
		})
		if err != nil {
			return err
		}

		settled = newBalance
		result = models.WagerResult{
			Outcome:    outcome,
			Win:        win,
			Payout:     payout,
			NewBalance: newBalance,
			Wager:      wager,
		}
		return nil
	})
	if err != nil {
		err = classifyStoreError(err)
		if errors.Is(err, ErrPersistenceFailure) {
			logger.Log.Errorw("failed to resolve wager", "account_id", accountID, "stake", stake.String(), "error", err)
		} else {
			logger.Log.Warnw("wager not resolved", "account_id", accountID, "stake", stake.String(), "error", err)
		}
		s.observeFailure(err)
		return nil, err
	}

	// post-commit work runs even if the caller has gone away
	ctx = context.WithoutCancel(ctx)

	// A failed confirmation read keeps the computed balance.
	if confirmed, err := s.accounts.GetBalance(ctx, accountID); err != nil {
		logger.Log.Warnw("failed to confirm committed balance", "account_id", accountID, "wager_id", result.Wager.WagerID, "error", err)
	} else {
		result.NewBalance = confirmed
	}

	s.cacheSettledBalance(ctx, accountID, settled, result.Wager.WagerID)
	s.publishWager(ctx, result)
	if s.recorder != nil {
		s.recorder.ObserveWager(result.Win, time.Since(start))
	}

	logger.Log.Infow("wager resolved",
		"account_id", accountID,
		"wager_id", result.Wager.WagerID,
		"stake", stake.String(),
		"chosen", side,
		"outcome", result.Outcome,
		"win", result.Win,
		"new_balance", result.NewBalance.String(),
	)
	return &result, nil
}

// Balance returns the account's committed balance.
func (s *LedgerService) Balance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	if s.cache != nil {
		if balance, err := s.cache.GetBalance(ctx, accountID); err == nil {
			return balance, nil
		}
	}

	balance, err := s.accounts.GetBalance(ctx, accountID)
	if err != nil {
		err = classifyStoreError(err)
		logger.Log.Errorw("failed to get balance", "account_id", accountID, "error", err)
		return decimal.Zero, err
	}

	if s.cache != nil {
		if err := s.cache.FillBalance(ctx, accountID, balance); err != nil {
			logger.Log.Warnw("failed to cache balance", "account_id", accountID, "error", err)
		}
	}
	return balance, nil
}

// History returns a page of the account's wagers, newest first, and the total count.
// A zero limit selects the default page size; limits above the maximum are capped.
func (s *LedgerService) History(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]models.WagerDB, int, error) {
	if limit < 0 || offset < 0 {
		return nil, 0, ErrInvalidPage
	}
	if limit == 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	wagers, err := s.wagerReader.ListByAccountID(ctx, accountID, limit, offset)
	if err != nil {
		logger.Log.Errorw("failed to list wagers", "account_id", accountID, "error", err)
		return nil, 0, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}

	total, err := s.wagerReader.CountByAccountID(ctx, accountID)
	if err != nil {
		logger.Log.Errorw("failed to count wagers", "account_id", accountID, "error", err)
		return nil, 0, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}

	return wagers, total, nil
}

// maxStakeIntDigits is the integer part of a NUMERIC(15,2) column.
const maxStakeIntDigits = 13

func validateWager(stake decimal.Decimal, side models.Side) error {
	if !stake.IsPositive() || !fitsAmount(stake) {
		return ErrInvalidStake
	}
	if !side.Valid() {
		return ErrInvalidSide
	}
	return nil
}

// fitsAmount reports whether d fits NUMERIC(15,2) without rounding.
// It only looks at the coefficient digits and the exponent, so a huge
// exponent is rejected without rescaling.
func fitsAmount(d decimal.Decimal) bool {
	digits := strings.TrimPrefix(d.Coefficient().String(), "-")
	exp := int64(d.Exponent())
	if exp < -models.AmountScale {
		// only trailing zeros may sit below the cent
		extra := -models.AmountScale - exp
		zeros := int64(len(digits) - len(strings.TrimRight(digits, "0")))
		if zeros < extra {
			return false
		}
		digits = digits[:int64(len(digits))-extra]
		exp = -models.AmountScale
	}
	return int64(len(digits))+exp <= maxStakeIntDigits
}

// classifyStoreError maps store errors onto the ledger error taxonomy.
func classifyStoreError(err error) error {
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		return err
	case errors.Is(err, sql.ErrNoRows):
		return ErrAccountNotFound
	default:
		return fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}
}

// stakeForLog avoids expanding a stake that is too large to store.
func stakeForLog(stake decimal.Decimal) string {
	if !fitsAmount(stake) {
		return "out of range"
	}
	return stake.String()
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidStake):
		return "invalid_stake"
	case errors.Is(err, ErrInvalidSide):
		return "invalid_side"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrAccountNotFound):
		return "account_not_found"
	default:
		return "persistence"
	}
}

func (s *LedgerService) observeFailure(err error) {
	if s.recorder != nil {
		s.recorder.ObserveFailure(failureReason(err))
	}
}

func (s *LedgerService) cacheSettledBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal, wagerID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.StoreSettledBalance(ctx, accountID, balance, wagerID); err != nil {
		logger.Log.Warnw("failed to cache settled balance", "account_id", accountID, "wager_id", wagerID, "error", err)
	}
}

// publishWager publishes a settled wager to Kafka.
func (s *LedgerService) publishWager(ctx context.Context, result models.WagerResult) {
	if s.kafkaWriter == nil {
		logger.Log.Debugw("Kafka writer not configured, skipping publishing", "wager_id", result.Wager.WagerID)
		return
	}

	event := models.WagerSettledEvent{
		EventID:    uuid.NewString(),
		Timestamp:  result.Wager.CreatedAt.Unix(),
		AccountID:  result.Wager.AccountID.String(),
		WagerID:    result.Wager.WagerID,
		Stake:      result.Wager.Stake.StringFixed(models.AmountScale),
		ChosenSide: result.Wager.ChosenSide,
		Outcome:    result.Outcome,
		Win:        result.Win,
		Payout:     result.Payout.StringFixed(models.AmountScale),
		NewBalance: result.NewBalance.StringFixed(models.AmountScale),
	}

	data, err := json.Marshal(event)
	if err != nil {
		logger.Log.Errorw("Failed to marshal wager event for Kafka", "wager_id", event.WagerID, "error", err)
		return
	}

	// keyed by account so one account's events stay ordered within a partition
	msg := kafka.Message{
		Key:   []byte(event.AccountID),
		Value: data,
	}

	if err := s.kafkaWriter.WriteMessages(ctx, msg); err != nil {
		logger.Log.Errorw("Failed to publish wager event to Kafka", "wager_id", event.WagerID, "error", err)
	} else {
		logger.Log.Infow("Wager event published to Kafka", "wager_id", event.WagerID, "event_id", event.EventID)
	}
}
