package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WagerDB represents one resolved bet. Rows are written once and never updated.
type WagerDB struct {
	WagerID    int64           `json:"id" db:"wager_id"`
	AccountID  uuid.UUID       `json:"user_id" db:"account_id"`
	Stake      decimal.Decimal `json:"amount" db:"stake"`
	ChosenSide Side            `json:"chosen_side" db:"chosen_side"`
	ActualSide Side            `json:"result" db:"actual_side"`
	Win        bool            `json:"win" db:"win"`
	Payout     decimal.Decimal `json:"payout" db:"payout"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// NetEffect is the signed change this wager applied to the account balance.
func (w WagerDB) NetEffect() decimal.Decimal {
	return w.Payout.Sub(w.Stake)
}

// WagerResult is what a resolved wager returns to the caller.
type WagerResult struct {
	Outcome    Side
	Win        bool
	Payout     decimal.Decimal
	NewBalance decimal.Decimal
	Wager      WagerDB
}
