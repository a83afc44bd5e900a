package usecase

import (
	"context"

	"github.com/WaldoAlejo/punto-cambio-ledger/internal/domain"
)

// MovementUseCase serves the read-only ledger query path used by
// reporting. It never mutates.
type MovementUseCase struct {
	movementRepo MovementRepository
}

// NewMovementUseCase creates a new MovementUseCase.
func NewMovementUseCase(movementRepo MovementRepository) *MovementUseCase {
	return &MovementUseCase{movementRepo: movementRepo}
}

// Get retrieves a movement by ID.
func (uc *MovementUseCase) Get(ctx context.Context, id string) (*domain.Movement, error) {
	return uc.movementRepo.GetByID(ctx, id)
}

// ListByStream lists a stream's movements with pagination, newest first.
func (uc *MovementUseCase) ListByStream(ctx context.Context, pointID, currencyID string, limit, offset int) ([]*domain.Movement, error) {
	limit, offset = domain.ValidatePagination(limit, offset)
	return uc.movementRepo.ListByPointCurrency(ctx, pointID, currencyID, limit, offset)
}

// ListStreams lists every (point, currency) pair with ledger activity.
func (uc *MovementUseCase) ListStreams(ctx context.Context) ([]PointCurrency, error) {
	return uc.movementRepo.ListStreams(ctx)
}
