package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
	"github.com/iho/stockledger/internal/usecase/fakes"
	"github.com/iho/stockledger/internal/usecase/mocks"
)

func TestAuditUseCase_ContractHistory(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		offset    int
		wantLimit int
		wantOff   int
	}{
		{"defaults", 0, 0, 50, 0},
		{"explicit", 10, 20, 10, 20},
		{"limit too large", 1000, 0, 50, 0},
		{"negative offset", 5, -3, 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			rows := []*domain.AuditLog{{ID: "a-1", ResourceID: "contract-1"}}
			auditRepo := mocks.NewMockAuditRepository(ctrl)
			auditRepo.EXPECT().List(gomock.Any(), domain.AuditFilter{
				ResourceType: domain.ResourceTypeContract,
				ResourceID:   "contract-1",
				Limit:        tt.wantLimit,
				Offset:       tt.wantOff,
			}).Return(rows, nil)

			got, err := usecase.NewAuditUseCase(auditRepo).ContractHistory(context.Background(), "contract-1", tt.limit, tt.offset)
			require.NoError(t, err)
			assert.Equal(t, rows, got)
		})
	}
}

func TestAuditUseCase_ContractHistory_InvalidID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, err := usecase.NewAuditUseCase(mocks.NewMockAuditRepository(ctrl)).ContractHistory(context.Background(), "  ", 0, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidIDFormat)
}

func TestReservationUseCase_ReserveContract_AuditsRejection(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := fakes.NewStore()
	store.AddLedgerEntry(newEntry("entry-1", 2))

	auditRepo := mocks.NewMockAuditRepository(ctrl)
	auditRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, log *domain.AuditLog) error {
			assert.Equal(t, "consumer-1", log.UserID)
			assert.Equal(t, string(domain.AuditActionContractCreate), log.Action)
			assert.Equal(t, domain.ResourceTypeLedgerEntry, log.ResourceType)
			assert.Equal(t, "entry-1", log.ResourceID)
			assert.Equal(t, string(domain.AuditStatusFailure), log.Status)
			assert.Contains(t, log.ErrorMessage, domain.ErrInsufficientStock.Error())
			assert.NotEmpty(t, log.ID)
			return nil
		})

	uc := newReservationFixture(store, usecase.WithAuditRepository(auditRepo))

	_, err := uc.ReserveContract(context.Background(), usecase.ReserveContractInput{
		ConsumerUserID:     "consumer-1",
		At:                 testNow,
		ReservationRequest: usecase.ReservationRequest{LedgerEntryID: "entry-1", Quantity: 5},
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestReservationUseCase_ReserveContract_AuditWriteFailureKeepsRejection(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := fakes.NewStore()
	auditRepo := mocks.NewMockAuditRepository(ctrl)
	auditRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("audit table locked"))

	uc := newReservationFixture(store, usecase.WithAuditRepository(auditRepo))

	_, err := uc.ReserveContract(context.Background(), usecase.ReserveContractInput{
		ConsumerUserID:     "consumer-1",
		ReservationRequest: usecase.ReservationRequest{LedgerEntryID: "missing", Quantity: 1},
	})
	assert.ErrorIs(t, err, domain.ErrLedgerEntryNotFound)
}

func TestReservationUseCase_ReserveContract_InfrastructureFailureNotAudited(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := fakes.NewStore()
	store.AddLedgerEntry(newEntry("entry-1", 10))
	store.FailNext(fakes.OpCreateOutbox, domain.NewInfrastructureError("create outbox event", errors.New("disk full")))

	// No Create expectation: gomock fails the test if a failure row is written.
	auditRepo := mocks.NewMockAuditRepository(ctrl)
	uc := newReservationFixture(store, usecase.WithAuditRepository(auditRepo))

	_, err := uc.ReserveContract(context.Background(), usecase.ReserveContractInput{
		ConsumerUserID:     "consumer-1",
		ReservationRequest: usecase.ReservationRequest{LedgerEntryID: "entry-1", Quantity: 3},
	})
	assert.True(t, domain.IsInfrastructure(err))
}

func TestReleaseUseCase_CancelContract_AuditsRejection(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	auditRepo := mocks.NewMockAuditRepository(ctrl)
	auditRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, log *domain.AuditLog) error {
			assert.Equal(t, "consumer-1", log.UserID)
			assert.Equal(t, string(domain.AuditActionContractCancel), log.Action)
			assert.Equal(t, domain.ResourceTypeContract, log.ResourceType)
			assert.Equal(t, "nope", log.ResourceID)
			assert.Equal(t, string(domain.AuditStatusFailure), log.Status)
			assert.Equal(t, testNow, log.CreatedAt)
			assert.Equal(t, "req-7", log.RequestID)
			return nil
		})

	uc := newReleaseFixture(fakes.NewStore(), usecase.WithAuditRepository(auditRepo))

	ctx := domain.WithRequestID(context.Background(), "req-7")
	err := uc.CancelContract(ctx, usecase.CancelContractInput{
		ActorUserID: "consumer-1",
		ContractID:  "nope",
		At:          testNow,
	})
	assert.ErrorIs(t, err, domain.ErrContractNotFound)
}
