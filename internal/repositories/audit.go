package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/models"
)

// AuditRepository compares balances with the wager history.
type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// ListDrift returns accounts whose balance differs from
// starting balance plus the net effect of all their wagers.
func (r *AuditRepository) ListDrift(ctx context.Context) ([]models.AccountDrift, error) {
	const query = `
		SELECT a.account_id,
		       a.balance,
		       a.starting_balance + COALESCE(SUM(w.payout - w.stake), 0) AS expected_balance
		FROM accounts a
		LEFT JOIN wagers w ON w.account_id = a.account_id
		GROUP BY a.account_id, a.balance, a.starting_balance
		HAVING a.balance <> a.starting_balance + COALESCE(SUM(w.payout - w.stake), 0)
		ORDER BY a.account_id
	`

	drifts := []models.AccountDrift{}
	err := r.db.SelectContext(ctx, &drifts, query)

	logQuery(query, nil, len(drifts), err)

	return drifts, err
}
