package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/models"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func winResult(accountID uuid.UUID) *models.WagerResult {
	return &models.WagerResult{
		Outcome:    models.Heads,
		Win:        true,
		Payout:     decimal.NewFromInt(80),
		NewBalance: decimal.NewFromInt(140),
		Wager: models.WagerDB{
			WagerID:    1,
			AccountID:  accountID,
			Stake:      decimal.NewFromInt(40),
			ChosenSide: models.Heads,
			ActualSide: models.Heads,
			Win:        true,
			Payout:     decimal.NewFromInt(80),
			CreatedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		},
	}
}

func TestFlipHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accountID := uuid.New()

	tests := []struct {
		name         string
		body         string
		mockSetup    func(m *MockWagerResolver)
		expectedCode int
		expectedErr  string
	}{
		{
			name: "invalid json",
			body: `{"amount":`,
			mockSetup: func(m *MockWagerResolver) {
			},
			expectedCode: http.StatusBadRequest,
			expectedErr:  "invalid request body",
		},
		{
			name:         "non-numeric amount",
			body:         `{"amount":"abc","chosenSide":"heads"}`,
			mockSetup:    func(m *MockWagerResolver) {},
			expectedCode: http.StatusBadRequest,
			expectedErr:  "Invalid bet amount",
		},
		{
			name:         "boolean amount",
			body:         `{"amount":true,"chosenSide":"heads"}`,
			mockSetup:    func(m *MockWagerResolver) {},
			expectedCode: http.StatusBadRequest,
			expectedErr:  "Invalid bet amount",
		},
		{
			name:         "non-string side",
			body:         `{"amount":5,"chosenSide":1}`,
			mockSetup:    func(m *MockWagerResolver) {},
			expectedCode: http.StatusBadRequest,
			expectedErr:  "Invalid coin side",
		},
		{
			name: "quoted amount accepted",
			body: `{"amount":"12.50","chosenSide":"heads"}`,
			mockSetup: func(m *MockWagerResolver) {
				m.EXPECT().ResolveWager(gomock.Any(), accountID, gomock.Any(), models.Heads).
					DoAndReturn(func(_ context.Context, _ uuid.UUID, stake decimal.Decimal, _ models.Side) (*models.WagerResult, error) {
						assert.Equal(t, "12.5", stake.String())
						return nil, services.ErrInsufficientFunds
					})
			},
			expectedCode: http.StatusBadRequest,
			expectedErr:  "Insufficient funds",
		},
		{
			name: "invalid stake",
			body: `{"amount":-5,"chosenSide":"heads"}`,
			mockSetup: func(m *MockWagerResolver) {
				m.EXPECT().ResolveWager(gomock.Any(), accountID, gomock.Any(), models.Heads).
					Return(nil, services.ErrInvalidStake)
			},
			expectedCode: http.StatusBadRequest,
			expectedErr:  "Invalid bet amount",
		},
		{
			name: "invalid side",
			body: `{"amount":5,"chosenSide":"edge"}`,
			mockSetup: func(m *MockWagerResolver) {
				m.EXPECT().ResolveWager(gomock.Any(), accountID, gomock.Any(), models.Side("edge")).
					Return(nil, services.ErrInvalidSide)
			},
			expectedCode: http.StatusBadRequest,
			expectedErr:  "Invalid coin side",
		},
		{
			name: "insufficient funds",
			body: `{"amount":40,"chosenSide":"tails"}`,
			mockSetup: func(m *MockWagerResolver) {
				m.EXPECT().ResolveWager(gomock.Any(), accountID, gomock.Any(), models.Tails).
					Return(nil, services.ErrInsufficientFunds)
			},
			expectedCode: http.StatusBadRequest,
			expectedErr:  "Insufficient funds",
		},
		{
			name: "account not found",
			body: `{"amount":40,"chosenSide":"tails"}`,
			mockSetup: func(m *MockWagerResolver) {
				m.EXPECT().ResolveWager(gomock.Any(), accountID, gomock.Any(), models.Tails).
					Return(nil, services.ErrAccountNotFound)
			},
			expectedCode: http.StatusNotFound,
			expectedErr:  "Account not found",
		},
		{
			name: "persistence failure",
			body: `{"amount":40,"chosenSide":"tails"}`,
			mockSetup: func(m *MockWagerResolver) {
				m.EXPECT().ResolveWager(gomock.Any(), accountID, gomock.Any(), models.Tails).
					Return(nil, fmt.Errorf("%w: %w", services.ErrPersistenceFailure, errors.New("conn reset")))
			},
			expectedCode: http.StatusInternalServerError,
			expectedErr:  "Failed to place bet",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := NewMockWagerResolver(ctrl)
			tt.mockSetup(mockSvc)

			req := authenticated(httptest.NewRequest(http.MethodPost, "/game/flip", bytes.NewBufferString(tt.body)), accountID)
			rr := httptest.NewRecorder()

			NewFlipHandler(mockSvc).ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedCode, rr.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tt.expectedErr, resp.Error)
		})
	}
}

func TestFlipHandler_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accountID := uuid.New()
	mockSvc := NewMockWagerResolver(ctrl)
	mockSvc.EXPECT().
		ResolveWager(gomock.Any(), accountID, gomock.Any(), models.Heads).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, stake decimal.Decimal, _ models.Side) (*models.WagerResult, error) {
			assert.True(t, stake.Equal(decimal.NewFromInt(40)))
			return winResult(accountID), nil
		})

	req := authenticated(httptest.NewRequest(http.MethodPost, "/game/flip",
		bytes.NewBufferString(`{"amount":40,"chosenSide":"heads"}`)), accountID)
	rr := httptest.NewRecorder()

	NewFlipHandler(mockSvc).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "heads", resp["result"])
	assert.Equal(t, true, resp["win"])
	assert.Equal(t, 80.0, resp["payout"])
	assert.Equal(t, 140.0, resp["newBalance"])

	bet, ok := resp["bet"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1.0, bet["id"])
	assert.Equal(t, accountID.String(), bet["user_id"])
	assert.Equal(t, "40", bet["amount"])
	assert.Equal(t, "heads", bet["chosen_side"])
	assert.Equal(t, "heads", bet["result"])
}

func TestQuickBetHandler_OmitsBet(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accountID := uuid.New()
	mockSvc := NewMockWagerResolver(ctrl)
	mockSvc.EXPECT().
		ResolveWager(gomock.Any(), accountID, gomock.Any(), models.Heads).
		Return(winResult(accountID), nil)

	req := authenticated(httptest.NewRequest(http.MethodPost, "/game/quick-bet",
		bytes.NewBufferString(`{"amount":"40.00","chosenSide":"heads"}`)), accountID)
	rr := httptest.NewRecorder()

	NewQuickBetHandler(mockSvc).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"result":"heads","win":true,"payout":80,"newBalance":140}`, rr.Body.String())
}

func TestFlipHandler_Unauthorized(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	req := httptest.NewRequest(http.MethodPost, "/game/flip", bytes.NewBufferString(`{"amount":1,"chosenSide":"heads"}`))
	rr := httptest.NewRecorder()

	NewFlipHandler(NewMockWagerResolver(ctrl)).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
