package handlers

//go:generate mockgen -source=wager.go -destination=wager_mock.go -package=handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/logger"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/models"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/services"
	"github.com/shopspring/decimal"
)

// WagerResolver defines the interface that the ledger service must implement.
type WagerResolver interface {
	ResolveWager(ctx context.Context, accountID uuid.UUID, stake decimal.Decimal, side models.Side) (*models.WagerResult, error)
}

// FlipRequest represents the JSON body of a bet
// swagger:model FlipRequest
type FlipRequest struct {
	// Stake, positive with at most two decimals
	// required: true
	Amount decimal.Decimal `json:"amount" swaggertype:"number" example:"10.5"`

	// Side the bet is placed on
	// required: true
	ChosenSide models.Side `json:"chosenSide" swaggertype:"string" enums:"heads,tails" example:"heads"`
}

// FlipResponse represents a resolved bet
// swagger:model FlipResponse
type FlipResponse struct {
	// Side the coin landed on
	Result models.Side `json:"result" swaggertype:"string" example:"heads"`

	// Whether the chosen side matched
	Win bool `json:"win" example:"true"`

	// Amount credited, zero on a loss
	Payout float64 `json:"payout" example:"21"`

	// Balance after the bet
	NewBalance float64 `json:"newBalance" example:"1010.5"`

	// Stored bet record, omitted by quick bets
	Bet *models.WagerDB `json:"bet,omitempty"`
}

// NewFlipHandler returns an HTTP handler that places a bet and returns the stored record.
// @Summary Flip the coin
// @Description Places a bet on heads or tails. A win pays twice the stake.
// @Tags game
// @Accept json
// @Produce json
// @Param flipRequest body handlers.FlipRequest true "Bet"
// @Success 200 {object} handlers.FlipResponse "Resolved bet"
// @Failure 400 {object} handlers.ErrorResponse "Invalid amount / invalid side / insufficient funds"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized"
// @Failure 404 {object} handlers.ErrorResponse "Account not found"
// @Failure 500 {object} handlers.ErrorResponse "Failed to place bet"
// @Router /game/flip [post]
// @Security BearerAuth
func NewFlipHandler(svc WagerResolver) http.HandlerFunc {
	return newWagerHandler(svc, true)
}

// NewQuickBetHandler returns an HTTP handler that places a bet without echoing the stored record.
// @Summary Quick bet
// @Description Same as /game/flip, the response omits the bet record.
// @Tags game
// @Accept json
// @Produce json
// @Param flipRequest body handlers.FlipRequest true "Bet"
// @Success 200 {object} handlers.FlipResponse "Resolved bet"
// @Failure 400 {object} handlers.ErrorResponse "Invalid amount / invalid side / insufficient funds"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized"
// @Failure 404 {object} handlers.ErrorResponse "Account not found"
// @Failure 500 {object} handlers.ErrorResponse "Failed to place bet"
// @Router /game/quick-bet [post]
// @Security BearerAuth
func NewQuickBetHandler(svc WagerResolver) http.HandlerFunc {
	return newWagerHandler(svc, false)
}

func newWagerHandler(svc WagerResolver, withBet bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := accountID(w, r)
		if !ok {
			return
		}

		req, msg := decodeFlipRequest(r)
		if msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}

		res, err := svc.ResolveWager(r.Context(), id, req.Amount, req.ChosenSide)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrInvalidStake):
				writeError(w, http.StatusBadRequest, "Invalid bet amount")
			case errors.Is(err, services.ErrInvalidSide):
				writeError(w, http.StatusBadRequest, "Invalid coin side")
			case errors.Is(err, services.ErrInsufficientFunds):
				writeError(w, http.StatusBadRequest, "Insufficient funds")
			case errors.Is(err, services.ErrAccountNotFound):
				writeError(w, http.StatusNotFound, "Account not found")
			default:
				logger.Log.Errorw("failed to place bet", "account_id", id, "error", err)
				writeError(w, http.StatusInternalServerError, "Failed to place bet")
			}
			return
		}

		resp := FlipResponse{
			Result:     res.Outcome,
			Win:        res.Win,
			Payout:     res.Payout.InexactFloat64(),
			NewBalance: res.NewBalance.InexactFloat64(),
		}
		if withBet {
			bet := res.Wager
			resp.Bet = &bet
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// decodeFlipRequest parses the body field by field so a malformed amount or
// side is reported as such. It returns a client message on failure.
func decodeFlipRequest(r *http.Request) (FlipRequest, string) {
	var raw struct {
		Amount     json.RawMessage `json:"amount"`
		ChosenSide json.RawMessage `json:"chosenSide"`
	}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return FlipRequest{}, "invalid request body"
	}

	var req FlipRequest
	if len(raw.Amount) > 0 {
		if err := req.Amount.UnmarshalJSON(raw.Amount); err != nil {
			return FlipRequest{}, "Invalid bet amount"
		}
	}
	if len(raw.ChosenSide) > 0 {
		if err := json.Unmarshal(raw.ChosenSide, &req.ChosenSide); err != nil {
			return FlipRequest{}, "Invalid coin side"
		}
	}
	return req, ""
}
