package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/models"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditService_Reconcile(t *testing.T) {
	drift := models.AccountDrift{AccountID: uuid.New(), Balance: dec("10"), ExpectedBalance: dec("12")}

	tests := []struct {
		name      string
		drifts    []models.AccountDrift
		readErr   error
		wantCount int
		wantErr   error
	}{
		{name: "clean ledger", drifts: []models.AccountDrift{}, wantCount: 0},
		{name: "drifted account", drifts: []models.AccountDrift{drift}, wantCount: 1},
		{name: "read failure", readErr: errors.New("db down"), wantErr: services.ErrPersistenceFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			reader := services.NewMockDriftReader(ctrl)
			recorder := services.NewMockDriftRecorder(ctrl)
			reader.EXPECT().ListDrift(gomock.Any()).Return(tt.drifts, tt.readErr)
			if tt.wantErr == nil {
				recorder.EXPECT().SetDriftedAccounts(tt.wantCount)
			}

			svc := services.NewAuditService(reader, recorder)
			drifts, err := svc.Reconcile(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, drifts, tt.wantCount)
		})
	}
}

func TestAuditService_Reconcile_WithoutRecorder(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	reader := services.NewMockDriftReader(ctrl)
	reader.EXPECT().ListDrift(gomock.Any()).Return(nil, nil)

	drifts, err := services.NewAuditService(reader, nil).Reconcile(context.Background())
	require.NoError(t, err)
	assert.Empty(t, drifts)
}
