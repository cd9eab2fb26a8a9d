package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/infrastructure/metrics"
	"github.com/iho/stockledger/internal/usecase"
	"github.com/iho/stockledger/internal/usecase/mocks"
)

func TestReconciliationUseCase_CheckAll(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledgerRepo := mocks.NewMockLedgerRepository(ctrl)
	ledgerRepo.EXPECT().StockSummaries(gomock.Any(), "").Return([]*usecase.StockSummary{
		{LedgerEntryID: "entry-ok", InitialStock: 100, AvailableStock: 70, ActiveReserved: 30, ActiveContracts: 2},
		{LedgerEntryID: "entry-bad", InitialStock: 50, AvailableStock: 45, ActiveReserved: 10, ActiveContracts: 1},
	}, nil)

	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	uc := usecase.NewReconciliationUseCase(ledgerRepo, usecase.WithMetrics(m))

	report, err := uc.CheckAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.TotalEntries)
	assert.Equal(t, 1, report.ReconciledEntries)
	assert.False(t, report.Consistent())
	require.Len(t, report.Discrepancies, 1)
	assert.Equal(t, "entry-bad", report.Discrepancies[0].LedgerEntryID)
	assert.Equal(t, int64(-5), report.Discrepancies[0].Difference)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.InconsistentEntries))
}

func TestReconciliationUseCase_CheckEntry(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledgerRepo := mocks.NewMockLedgerRepository(ctrl)
	ledgerRepo.EXPECT().StockSummaries(gomock.Any(), "entry-1").Return([]*usecase.StockSummary{
		{LedgerEntryID: "entry-1", InitialStock: 10, AvailableStock: 10},
	}, nil)
	ledgerRepo.EXPECT().StockSummaries(gomock.Any(), "missing").Return(nil, nil)

	uc := usecase.NewReconciliationUseCase(ledgerRepo)

	result, err := uc.CheckEntry(context.Background(), "entry-1")
	require.NoError(t, err)
	assert.True(t, result.IsReconciled)
	assert.Zero(t, result.Difference)

	_, err = uc.CheckEntry(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrLedgerEntryNotFound)
}

func TestReconciliationUseCase_PropagatesStorageErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	storageErr := domain.NewInfrastructureError("stock summaries", errors.New("timeout"))
	ledgerRepo := mocks.NewMockLedgerRepository(ctrl)
	ledgerRepo.EXPECT().StockSummaries(gomock.Any(), "").Return(nil, storageErr)

	_, err := usecase.NewReconciliationUseCase(ledgerRepo).CheckAll(context.Background())
	assert.ErrorIs(t, err, storageErr)
}
