package repositories

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAuditRepository_ListDrift(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditRepository(db)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("HAVING a.balance <> a.starting_balance")).
		WillReturnRows(sqlmock.NewRows([]string{"account_id", "balance", "expected_balance"}).
			AddRow(id.String(), "120.00", "100.00"))

	drifts, err := repo.ListDrift(context.Background())
	assert.NoError(t, err)
	if assert.Len(t, drifts, 1) {
		assert.Equal(t, id, drifts[0].AccountID)
		assert.True(t, decimal.NewFromInt(120).Equal(drifts[0].Balance))
		assert.True(t, decimal.NewFromInt(100).Equal(drifts[0].ExpectedBalance))
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}
