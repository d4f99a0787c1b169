package handlers

//go:generate mockgen -source=history.go -destination=history_mock.go -package=handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/logger"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/models"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/services"
)

// HistoryReader defines the interface that the ledger service must implement.
type HistoryReader interface {
	History(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]models.WagerDB, int, error)
}

// HistoryResponse represents one page of bets
// swagger:model HistoryResponse
type HistoryResponse struct {
	// Bets, newest first
	Bets []models.WagerDB `json:"bets"`

	// Number of bets the account has placed
	Total int `json:"total" example:"42"`
}

// NewHistoryHandler returns an HTTP handler listing the account's bets.
// @Summary Bet history
// @Description Returns a page of bets, newest first, with the total count
// @Tags game
// @Produce json
// @Param limit query int false "Page size (default 10, max 100)"
// @Param offset query int false "Bets to skip"
// @Success 200 {object} handlers.HistoryResponse "Bet page"
// @Failure 400 {object} handlers.ErrorResponse "Invalid limit or offset"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized"
// @Failure 500 {object} handlers.ErrorResponse "Failed to load history"
// @Router /game/history [get]
// @Security BearerAuth
func NewHistoryHandler(svc HistoryReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := accountID(w, r)
		if !ok {
			return
		}

		limit, err := queryInt(r, "limit")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		offset, err := queryInt(r, "offset")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid offset")
			return
		}

		bets, total, err := svc.History(r.Context(), id, limit, offset)
		if err != nil {
			if errors.Is(err, services.ErrInvalidPage) {
				writeError(w, http.StatusBadRequest, "Invalid limit or offset")
				return
			}
			logger.Log.Errorw("failed to load history", "account_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to load history")
			return
		}

		writeJSON(w, http.StatusOK, HistoryResponse{
			Bets:  bets,
			Total: total,
		})
	}
}

// queryInt reads an optional integer query parameter; absent means zero.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
