package services

//go:generate mockgen -source=audit.go -destination=audit_mock.go -package=services

import (
	"context"
	"fmt"

	"github.com/sbilibin2017/gw-coinflip-ledger/internal/logger"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/models"
)

// DriftReader lists accounts whose balance disagrees with their wager history.
type DriftReader interface {
	ListDrift(ctx context.Context) ([]models.AccountDrift, error)
}

// DriftRecorder reports how many accounts drifted in the last audit.
type DriftRecorder interface {
	SetDriftedAccounts(n int)
}

// AuditService reconciles balances against starting balance plus the net effect of all wagers.
type AuditService struct {
	reader   DriftReader
	recorder DriftRecorder
}

// NewAuditService creates a new AuditService. recorder may be nil.
func NewAuditService(reader DriftReader, recorder DriftRecorder) *AuditService {
	return &AuditService{reader: reader, recorder: recorder}
}

// Reconcile runs one audit pass and returns the drifted accounts.
func (s *AuditService) Reconcile(ctx context.Context) ([]models.AccountDrift, error) {
	drifts, err := s.reader.ListDrift(ctx)
	if err != nil {
		logger.Log.Errorw("ledger audit failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}

	for _, d := range drifts {
		logger.Log.Errorw("ledger drift detected",
			"account_id", d.AccountID,
			"balance", d.Balance.String(),
			"expected_balance", d.ExpectedBalance.String(),
		)
	}
	if s.recorder != nil {
		s.recorder.SetDriftedAccounts(len(drifts))
	}

	logger.Log.Infow("ledger audit finished", "drifted_accounts", len(drifts))
	return drifts, nil
}
