package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/dbtx"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/models"
)

const wagerColumns = `wager_id, account_id, stake, chosen_side, actual_side, win, payout, created_at`

// WagerWriteRepository appends wager records. There is no update or delete.
type WagerWriteRepository struct {
	db       *sqlx.DB
	txGetter func(ctx context.Context) *sqlx.Tx
}

func NewWagerWriteRepository(db *sqlx.DB, txGetter func(ctx context.Context) *sqlx.Tx) *WagerWriteRepository {
	return &WagerWriteRepository{db: db, txGetter: txGetter}
}

// Save inserts the wager and returns the stored row with id and timestamp filled in.
func (r *WagerWriteRepository) Save(ctx context.Context, wager models.WagerDB) (models.WagerDB, error) {
	const query = `
		INSERT INTO wagers (account_id, stake, chosen_side, actual_side, win, payout, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING ` + wagerColumns
	args := []any{wager.AccountID, wager.Stake, string(wager.ChosenSide), string(wager.ActualSide), wager.Win, wager.Payout}

	var saved models.WagerDB
	err := sqlx.GetContext(ctx, dbtx.Executor(ctx, r.db, r.txGetter), &saved, query, args...)

	logQuery(query, args, saved.WagerID, err)

	if err != nil {
		return models.WagerDB{}, err
	}
	return saved, nil
}

// WagerReadRepository pages through an account's wager history
type WagerReadRepository struct {
	db       *sqlx.DB
	txGetter func(ctx context.Context) *sqlx.Tx
}

func NewWagerReadRepository(db *sqlx.DB, txGetter func(ctx context.Context) *sqlx.Tx) *WagerReadRepository {
	return &WagerReadRepository{db: db, txGetter: txGetter}
}

// ListByAccountID returns wagers newest first.
func (r *WagerReadRepository) ListByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]models.WagerDB, error) {
	const query = `
		SELECT ` + wagerColumns + `
		FROM wagers
		WHERE account_id = $1
		ORDER BY created_at DESC, wager_id DESC
		LIMIT $2 OFFSET $3
	`
	args := []any{accountID, limit, offset}

	wagers := []models.WagerDB{}
	err := sqlx.SelectContext(ctx, dbtx.Executor(ctx, r.db, r.txGetter), &wagers, query, args...)

	logQuery(query, args, len(wagers), err)

	return wagers, err
}

// CountByAccountID returns how many wagers the account has placed.
func (r *WagerReadRepository) CountByAccountID(ctx context.Context, accountID uuid.UUID) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM wagers
		WHERE account_id = $1
	`

	var total int
	err := sqlx.GetContext(ctx, dbtx.Executor(ctx, r.db, r.txGetter), &total, query, accountID)

	logQuery(query, []any{accountID}, total, err)

	return total, err
}
