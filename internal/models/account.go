package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AmountScale is the number of fractional digits stored for money amounts.
const AmountScale = 2

// AccountDB represents an account row in the database
type AccountDB struct {
	AccountID       uuid.UUID       `json:"account_id" db:"account_id"`             // Same value as the owning user's id
	Balance         decimal.Decimal `json:"balance" db:"balance"`                   // Spendable balance, never negative
	StartingBalance decimal.Decimal `json:"starting_balance" db:"starting_balance"` // Balance granted at registration
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`             // Timestamp when the account was created
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`             // Timestamp of the last balance change
}

// AccountDrift describes an account whose balance disagrees with its wager history.
type AccountDrift struct {
	AccountID       uuid.UUID       `json:"account_id" db:"account_id"`
	Balance         decimal.Decimal `json:"balance" db:"balance"`
	ExpectedBalance decimal.Decimal `json:"expected_balance" db:"expected_balance"`
}
