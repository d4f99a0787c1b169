package services_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/coin"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/models"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/services"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type ledgerMocks struct {
	tx       *services.MockTxRunner
	accounts *services.MockAccountStore
	writer   *services.MockWagerWriter
	reader   *services.MockWagerReader
	cache    *services.MockBalanceCache
	kafka    *services.MockKafkaWriter
	recorder *services.MockWagerRecorder
}

func newLedgerMocks(ctrl *gomock.Controller) ledgerMocks {
	return ledgerMocks{
		tx:       passThroughTx(ctrl),
		accounts: services.NewMockAccountStore(ctrl),
		writer:   services.NewMockWagerWriter(ctrl),
		reader:   services.NewMockWagerReader(ctrl),
		cache:    services.NewMockBalanceCache(ctrl),
		kafka:    services.NewMockKafkaWriter(ctrl),
		recorder: services.NewMockWagerRecorder(ctrl),
	}
}

func (m ledgerMocks) service(c coin.Coin) *services.LedgerService {
	return services.NewLedgerService(m.tx, m.accounts, m.writer, m.reader,
		services.WithCoin(c),
		services.WithBalanceCache(m.cache),
		services.WithKafkaWriter(m.kafka),
		services.WithRecorder(m.recorder),
	)
}

func TestLedgerService_ResolveWager_Settles(t *testing.T) {
	accountID := uuid.New()

	tests := []struct {
		name        string
		balance     string
		stake       string
		side        models.Side
		outcome     models.Side
		wantWin     bool
		wantPayout  string
		wantBalance string
	}{
		{
			name:        "win pays twice the stake",
			balance:     "100.00",
			stake:       "40",
			side:        models.Heads,
			outcome:     models.Heads,
			wantWin:     true,
			wantPayout:  "80",
			wantBalance: "140",
		},
		{
			name:        "loss forfeits the stake",
			balance:     "100.00",
			stake:       "40",
			side:        models.Heads,
			outcome:     models.Tails,
			wantWin:     false,
			wantPayout:  "0",
			wantBalance: "60",
		},
		{
			name:        "stake equal to balance may be lost",
			balance:     "25.50",
			stake:       "25.50",
			side:        models.Tails,
			outcome:     models.Heads,
			wantWin:     false,
			wantPayout:  "0",
			wantBalance: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()
			m := newLedgerMocks(ctrl)
			svc := m.service(coin.NewFixed(tt.outcome))

			createdAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

			gomock.InOrder(
				m.accounts.EXPECT().GetBalanceForUpdate(gomock.Any(), accountID).Return(dec(tt.balance), nil),
				m.accounts.EXPECT().
					UpdateBalance(gomock.Any(), accountID, gomock.Any()).
					DoAndReturn(func(_ context.Context, _ uuid.UUID, b decimal.Decimal) error {
						assert.True(t, b.Equal(dec(tt.wantBalance)), "balance %s", b)
						return nil
					}),
				m.writer.EXPECT().
					Save(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, w models.WagerDB) (models.WagerDB, error) {
						assert.Equal(t, accountID, w.AccountID)
						assert.True(t, w.Stake.Equal(dec(tt.stake)))
						assert.Equal(t, tt.side, w.ChosenSide)
						assert.Equal(t, tt.outcome, w.ActualSide)
						assert.Equal(t, tt.wantWin, w.Win)
						assert.True(t, w.Payout.Equal(dec(tt.wantPayout)))
						w.WagerID = 7
						w.CreatedAt = createdAt
						return w, nil
					}),
				m.accounts.EXPECT().GetBalance(gomock.Any(), accountID).Return(dec(tt.wantBalance), nil),
			)
			m.cache.EXPECT().
				StoreSettledBalance(gomock.Any(), accountID, gomock.Any(), int64(7)).
				DoAndReturn(func(_ context.Context, _ uuid.UUID, b decimal.Decimal, _ int64) error {
					assert.True(t, b.Equal(dec(tt.wantBalance)), "cached balance %s", b)
					return nil
				})
			m.kafka.EXPECT().
				WriteMessages(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, msgs ...kafka.Message) error {
					require.Len(t, msgs, 1)
					assert.Equal(t, accountID.String(), string(msgs[0].Key))

					var event models.WagerSettledEvent
					require.NoError(t, json.Unmarshal(msgs[0].Value, &event))
					assert.Equal(t, int64(7), event.WagerID)
					assert.Equal(t, tt.outcome, event.Outcome)
					assert.Equal(t, tt.wantWin, event.Win)
					assert.Equal(t, dec(tt.wantBalance).StringFixed(2), event.NewBalance)
					assert.Equal(t, createdAt.Unix(), event.Timestamp)
					return nil
				})
			m.recorder.EXPECT().ObserveWager(tt.wantWin, gomock.Any())

			res, err := svc.ResolveWager(context.Background(), accountID, dec(tt.stake), tt.side)
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, res.Outcome)
			assert.Equal(t, tt.wantWin, res.Win)
			assert.True(t, res.Payout.Equal(dec(tt.wantPayout)), "payout %s", res.Payout)
			assert.True(t, res.NewBalance.Equal(dec(tt.wantBalance)), "new balance %s", res.NewBalance)
			assert.Equal(t, int64(7), res.Wager.WagerID)
		})
	}
}

func TestLedgerService_ResolveWager_RejectsInput(t *testing.T) {
	tests := []struct {
		name    string
		stake   string
		side    models.Side
		wantErr error
		reason  string
	}{
		{name: "negative stake", stake: "-5", side: models.Heads, wantErr: services.ErrInvalidStake, reason: "invalid_stake"},
		{name: "zero stake", stake: "0", side: models.Heads, wantErr: services.ErrInvalidStake, reason: "invalid_stake"},
		{name: "sub-cent stake", stake: "1.005", side: models.Tails, wantErr: services.ErrInvalidStake, reason: "invalid_stake"},
		{name: "sub-cent stake with huge negative exponent", stake: "1e-10000000", side: models.Heads, wantErr: services.ErrInvalidStake, reason: "invalid_stake"},
		{name: "stake with huge exponent", stake: "1e10000000", side: models.Heads, wantErr: services.ErrInvalidStake, reason: "invalid_stake"},
		{name: "stake above column range", stake: "10000000000000", side: models.Heads, wantErr: services.ErrInvalidStake, reason: "invalid_stake"},
		{name: "unknown side", stake: "10", side: models.Side("edge"), wantErr: services.ErrInvalidSide, reason: "invalid_side"},
		{name: "empty side", stake: "10", side: models.Side(""), wantErr: services.ErrInvalidSide, reason: "invalid_side"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			tx := services.NewMockTxRunner(ctrl)
			recorder := services.NewMockWagerRecorder(ctrl)
			recorder.EXPECT().ObserveFailure(tt.reason)

			svc := services.NewLedgerService(tx, services.NewMockAccountStore(ctrl),
				services.NewMockWagerWriter(ctrl), services.NewMockWagerReader(ctrl),
				services.WithRecorder(recorder))

			res, err := svc.ResolveWager(context.Background(), uuid.New(), dec(tt.stake), tt.side)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, res)
		})
	}
}

func TestLedgerService_ResolveWager_InsufficientFunds(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	m := newLedgerMocks(ctrl)
	svc := m.service(coin.NewFixed(models.Heads))
	accountID := uuid.New()

	m.accounts.EXPECT().GetBalanceForUpdate(gomock.Any(), accountID).Return(dec("30"), nil)
	m.recorder.EXPECT().ObserveFailure("insufficient_funds")

	res, err := svc.ResolveWager(context.Background(), accountID, dec("40"), models.Heads)
	assert.ErrorIs(t, err, services.ErrInsufficientFunds)
	assert.NotErrorIs(t, err, services.ErrPersistenceFailure)
	assert.Nil(t, res)
}

func TestLedgerService_ResolveWager_StoreErrors(t *testing.T) {
	accountID := uuid.New()
	boom := errors.New("connection reset")

	tests := []struct {
		name    string
		setup   func(m ledgerMocks)
		wantErr error
		reason  string
	}{
		{
			name: "unknown account",
			setup: func(m ledgerMocks) {
				m.accounts.EXPECT().GetBalanceForUpdate(gomock.Any(), accountID).Return(decimal.Zero, sql.ErrNoRows)
			},
			wantErr: services.ErrAccountNotFound,
			reason:  "account_not_found",
		},
		{
			name: "lock read fails",
			setup: func(m ledgerMocks) {
				m.accounts.EXPECT().GetBalanceForUpdate(gomock.Any(), accountID).Return(decimal.Zero, boom)
			},
			wantErr: services.ErrPersistenceFailure,
			reason:  "persistence",
		},
		{
			name: "balance update fails",
			setup: func(m ledgerMocks) {
				m.accounts.EXPECT().GetBalanceForUpdate(gomock.Any(), accountID).Return(dec("100"), nil)
				m.accounts.EXPECT().UpdateBalance(gomock.Any(), accountID, gomock.Any()).Return(boom)
			},
			wantErr: services.ErrPersistenceFailure,
			reason:  "persistence",
		},
		{
			name: "wager insert fails",
			setup: func(m ledgerMocks) {
				m.accounts.EXPECT().GetBalanceForUpdate(gomock.Any(), accountID).Return(dec("100"), nil)
				m.accounts.EXPECT().UpdateBalance(gomock.Any(), accountID, gomock.Any()).Return(nil)
				m.writer.EXPECT().Save(gomock.Any(), gomock.Any()).Return(models.WagerDB{}, boom)
			},
			wantErr: services.ErrPersistenceFailure,
			reason:  "persistence",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()
			m := newLedgerMocks(ctrl)
			svc := m.service(coin.NewFixed(models.Heads))

			tt.setup(m)
			m.recorder.EXPECT().ObserveFailure(tt.reason)

			res, err := svc.ResolveWager(context.Background(), accountID, dec("10"), models.Heads)
			assert.ErrorIs(t, err, tt.wantErr)
			if errors.Is(tt.wantErr, services.ErrPersistenceFailure) {
				assert.ErrorIs(t, err, boom)
			}
			assert.Nil(t, res)
		})
	}
}

func TestLedgerService_ResolveWager_CommitFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	m := newLedgerMocks(ctrl)
	accountID := uuid.New()
	commitErr := errors.New("commit failed")

	tx := services.NewMockTxRunner(ctrl)
	tx.EXPECT().
		RunInTx(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(context.Context) error) error {
			if err := fn(ctx); err != nil {
				return err
			}
			return commitErr
		})
	m.accounts.EXPECT().GetBalanceForUpdate(gomock.Any(), accountID).Return(dec("100"), nil)
	m.accounts.EXPECT().UpdateBalance(gomock.Any(), accountID, gomock.Any()).Return(nil)
	m.writer.EXPECT().Save(gomock.Any(), gomock.Any()).Return(models.WagerDB{WagerID: 1}, nil)
	m.recorder.EXPECT().ObserveFailure("persistence")

	svc := services.NewLedgerService(tx, m.accounts, m.writer, m.reader,
		services.WithCoin(coin.NewFixed(models.Heads)),
		services.WithBalanceCache(m.cache),
		services.WithKafkaWriter(m.kafka),
		services.WithRecorder(m.recorder),
	)

	res, err := svc.ResolveWager(context.Background(), accountID, dec("10"), models.Heads)
	assert.ErrorIs(t, err, services.ErrPersistenceFailure)
	assert.ErrorIs(t, err, commitErr)
	assert.Nil(t, res)
}

func TestLedgerService_ResolveWager_AfterCommitFailuresKeepResult(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	m := newLedgerMocks(ctrl)
	svc := m.service(coin.NewFixed(models.Heads))
	accountID := uuid.New()

	m.accounts.EXPECT().GetBalanceForUpdate(gomock.Any(), accountID).Return(dec("100"), nil)
	m.accounts.EXPECT().UpdateBalance(gomock.Any(), accountID, gomock.Any()).Return(nil)
	m.writer.EXPECT().Save(gomock.Any(), gomock.Any()).Return(models.WagerDB{WagerID: 3, AccountID: accountID}, nil)
	m.accounts.EXPECT().GetBalance(gomock.Any(), accountID).Return(decimal.Zero, errors.New("read timeout"))
	m.cache.EXPECT().StoreSettledBalance(gomock.Any(), accountID, gomock.Any(), int64(3)).Return(errors.New("redis down"))
	m.kafka.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))
	m.recorder.EXPECT().ObserveWager(true, gomock.Any())

	res, err := svc.ResolveWager(context.Background(), accountID, dec("10"), models.Heads)
	require.NoError(t, err)
	assert.True(t, res.NewBalance.Equal(dec("110")))
	assert.True(t, res.Payout.Equal(dec("20")))
}

func TestLedgerService_ResolveWager_PayoutMultiplier(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	m := newLedgerMocks(ctrl)
	accountID := uuid.New()

	svc := services.NewLedgerService(m.tx, m.accounts, m.writer, m.reader,
		services.WithCoin(coin.NewFixed(models.Tails)),
		services.WithPayoutMultiplier(dec("1.95")),
	)

	m.accounts.EXPECT().GetBalanceForUpdate(gomock.Any(), accountID).Return(dec("10"), nil)
	m.accounts.EXPECT().
		UpdateBalance(gomock.Any(), accountID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, b decimal.Decimal) error {
			assert.True(t, b.Equal(dec("13.16")), "balance %s", b)
			return nil
		})
	m.writer.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, w models.WagerDB) (models.WagerDB, error) { return w, nil })
	m.accounts.EXPECT().GetBalance(gomock.Any(), accountID).Return(dec("13.16"), nil)

	res, err := svc.ResolveWager(context.Background(), accountID, dec("3.33"), models.Tails)
	require.NoError(t, err)
	// 3.33 * 1.95 = 6.4935, rounded to cents
	assert.True(t, res.Payout.Equal(dec("6.49")), "payout %s", res.Payout)
	assert.True(t, res.NewBalance.Equal(dec("13.16")))
}

func TestLedgerService_Balance(t *testing.T) {
	accountID := uuid.New()

	t.Run("cache hit", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		m := newLedgerMocks(ctrl)
		svc := m.service(coin.NewFair())

		m.cache.EXPECT().GetBalance(gomock.Any(), accountID).Return(dec("12.50"), nil)

		balance, err := svc.Balance(context.Background(), accountID)
		require.NoError(t, err)
		assert.True(t, balance.Equal(dec("12.50")))
	})

	t.Run("cache miss fills cache", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		m := newLedgerMocks(ctrl)
		svc := m.service(coin.NewFair())

		m.cache.EXPECT().GetBalance(gomock.Any(), accountID).Return(decimal.Zero, errors.New("miss"))
		m.accounts.EXPECT().GetBalance(gomock.Any(), accountID).Return(dec("99"), nil)
		m.cache.EXPECT().FillBalance(gomock.Any(), accountID, dec("99")).Return(nil)

		balance, err := svc.Balance(context.Background(), accountID)
		require.NoError(t, err)
		assert.True(t, balance.Equal(dec("99")))
	})

	t.Run("unknown account", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		m := newLedgerMocks(ctrl)
		svc := services.NewLedgerService(m.tx, m.accounts, m.writer, m.reader)

		m.accounts.EXPECT().GetBalance(gomock.Any(), accountID).Return(decimal.Zero, sql.ErrNoRows)

		_, err := svc.Balance(context.Background(), accountID)
		assert.ErrorIs(t, err, services.ErrAccountNotFound)
	})

	t.Run("store failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		m := newLedgerMocks(ctrl)
		svc := services.NewLedgerService(m.tx, m.accounts, m.writer, m.reader)

		m.accounts.EXPECT().GetBalance(gomock.Any(), accountID).Return(decimal.Zero, errors.New("db down"))

		_, err := svc.Balance(context.Background(), accountID)
		assert.ErrorIs(t, err, services.ErrPersistenceFailure)
	})
}

func TestLedgerService_History(t *testing.T) {
	accountID := uuid.New()
	page := []models.WagerDB{{WagerID: 2}, {WagerID: 1}}

	tests := []struct {
		name      string
		limit     int
		offset    int
		wantLimit int
		wantErr   error
	}{
		{name: "default limit", limit: 0, offset: 0, wantLimit: 10},
		{name: "explicit limit", limit: 5, offset: 10, wantLimit: 5},
		{name: "capped limit", limit: 1000, offset: 0, wantLimit: 100},
		{name: "negative offset", limit: 10, offset: -1, wantErr: services.ErrInvalidPage},
		{name: "negative limit", limit: -1, offset: 0, wantErr: services.ErrInvalidPage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()
			m := newLedgerMocks(ctrl)
			svc := m.service(coin.NewFair())

			if tt.wantErr == nil {
				m.reader.EXPECT().ListByAccountID(gomock.Any(), accountID, tt.wantLimit, tt.offset).Return(page, nil)
				m.reader.EXPECT().CountByAccountID(gomock.Any(), accountID).Return(12, nil)
			}

			wagers, total, err := svc.History(context.Background(), accountID, tt.limit, tt.offset)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, page, wagers)
			assert.Equal(t, 12, total)
		})
	}

	t.Run("store failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		m := newLedgerMocks(ctrl)
		svc := m.service(coin.NewFair())

		m.reader.EXPECT().ListByAccountID(gomock.Any(), accountID, 10, 0).Return(nil, errors.New("db down"))

		_, _, err := svc.History(context.Background(), accountID, 0, 0)
		assert.ErrorIs(t, err, services.ErrPersistenceFailure)
	})
}
