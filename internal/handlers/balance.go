package handlers

//go:generate mockgen -source=balance.go -destination=balance_mock.go -package=handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/logger"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/services"
	"github.com/shopspring/decimal"
)

// BalanceReader defines the interface that the service must implement.
type BalanceReader interface {
	Balance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
}

// BalanceResponse represents a successful response with the account balance
// swagger:model BalanceResponse
type BalanceResponse struct {
	// Account balance
	// default: 1000.0
	Balance float64 `json:"balance"`
}

// NewGetBalanceHandler returns an HTTP handler for fetching the account balance.
// @Summary Get account balance
// @Description Returns the committed balance of the authenticated account
// @Tags game
// @Produce json
// @Success 200 {object} handlers.BalanceResponse "Account balance"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized"
// @Failure 404 {object} handlers.ErrorResponse "Account not found"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /balance [get]
// @Security BearerAuth
func NewGetBalanceHandler(svc BalanceReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := accountID(w, r)
		if !ok {
			return
		}

		balance, err := svc.Balance(r.Context(), id)
		if err != nil {
			if errors.Is(err, services.ErrAccountNotFound) {
				writeError(w, http.StatusNotFound, "Account not found")
				return
			}
			logger.Log.Errorw("failed to get balance", "account_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		writeJSON(w, http.StatusOK, BalanceResponse{
			Balance: balance.InexactFloat64(),
		})
	}
}
