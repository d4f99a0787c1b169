package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/dbtx"
	"github.com/shopspring/decimal"
)

// ErrNoTransaction is returned when a row lock is requested outside a unit of work.
var ErrNoTransaction = errors.New("row lock requires an open transaction")

// AccountRepository reads and writes account balances.
// Methods run inside the transaction found in the context when there is one.
type AccountRepository struct {
	db       *sqlx.DB
	txGetter func(ctx context.Context) *sqlx.Tx
}

func NewAccountRepository(db *sqlx.DB, txGetter func(ctx context.Context) *sqlx.Tx) *AccountRepository {
	return &AccountRepository{db: db, txGetter: txGetter}
}

// Create opens an account holding the starting balance.
func (r *AccountRepository) Create(ctx context.Context, accountID uuid.UUID, startingBalance decimal.Decimal) error {
	const query = `
		INSERT INTO accounts (account_id, balance, starting_balance, created_at, updated_at)
		VALUES ($1, $2, $2, NOW(), NOW())
	`
	args := []any{accountID, startingBalance}

	_, err := dbtx.Executor(ctx, r.db, r.txGetter).ExecContext(ctx, query, args...)

	logQuery(query, args, nil, err)

	return mapPgError(err)
}

// GetBalanceForUpdate reads the balance and holds an exclusive lock on the row
// until the surrounding transaction ends. Returns sql.ErrNoRows for unknown accounts.
func (r *AccountRepository) GetBalanceForUpdate(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	const query = `
		SELECT balance
		FROM accounts
		WHERE account_id = $1
		FOR UPDATE
	`

	var tx *sqlx.Tx
	if r.txGetter != nil {
		tx = r.txGetter(ctx)
	}
	if tx == nil {
		return decimal.Zero, ErrNoTransaction
	}

	var balance decimal.Decimal
	err := tx.GetContext(ctx, &balance, query, accountID)

	logQuery(query, []any{accountID}, balance, err)

	return balance, err
}

// UpdateBalance overwrites the balance. Returns sql.ErrNoRows for unknown accounts.
func (r *AccountRepository) UpdateBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error {
	const query = `
		UPDATE accounts
		SET balance = $2, updated_at = NOW()
		WHERE account_id = $1
	`
	args := []any{accountID, balance}

	res, err := dbtx.Executor(ctx, r.db, r.txGetter).ExecContext(ctx, query, args...)
	var rowsAffected int64
	if res != nil {
		rowsAffected, _ = res.RowsAffected()
	}

	logQuery(query, args, rowsAffected, err)

	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetBalance reads the committed balance (or the pending one inside a transaction).
func (r *AccountRepository) GetBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	const query = `
		SELECT balance
		FROM accounts
		WHERE account_id = $1
	`

	var balance decimal.Decimal
	err := sqlx.GetContext(ctx, dbtx.Executor(ctx, r.db, r.txGetter), &balance, query, accountID)

	logQuery(query, []any{accountID}, balance, err)

	return balance, err
}
