package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/WaldoAlejo/punto-cambio-ledger/internal/domain"
	"github.com/WaldoAlejo/punto-cambio-ledger/internal/infrastructure/metrics"
)

// BalanceUseCase serves the materialized balance read path. Callers
// never compute balances themselves; they either read the aggregate
// here or replay the ledger through the reconciliation engine.
type BalanceUseCase struct {
	balanceRepo  BalanceRepository
	movementRepo MovementRepository
	anchorRepo   AnchorRepository
	cache        Cache
	cacheTTL     time.Duration
	metrics      *metrics.Metrics
}

// NewBalanceUseCase creates a new BalanceUseCase. cache may be nil.
func NewBalanceUseCase(
	balanceRepo BalanceRepository,
	movementRepo MovementRepository,
	anchorRepo AnchorRepository,
	cache Cache,
) *BalanceUseCase {
	return &BalanceUseCase{
		balanceRepo:  balanceRepo,
		movementRepo: movementRepo,
		anchorRepo:   anchorRepo,
		cache:        cache,
		cacheTTL:     BalanceCacheTTL,
	}
}

// WithMetrics enables Prometheus instrumentation. m may be nil.
func (uc *BalanceUseCase) WithMetrics(m *metrics.Metrics) *BalanceUseCase {
	uc.metrics = m
	return uc
}

// Get returns the current balance for a stream, defaulting to a zero
// balance for streams with no movements yet.
func (uc *BalanceUseCase) Get(ctx context.Context, pointID, currencyID string) (*domain.Balance, error) {
	if cached := uc.fromCache(ctx, pointID, currencyID); cached != nil {
		if uc.metrics != nil {
			uc.metrics.BalanceCacheHits.Inc()
		}
		return cached, nil
	}
	if uc.metrics != nil && uc.cache != nil {
		uc.metrics.BalanceCacheMiss.Inc()
	}

	balance, err := uc.balanceRepo.Get(ctx, pointID, currencyID)
	if err != nil {
		if errors.Is(err, domain.ErrBalanceNotFound) {
			return domain.NewZeroBalance(pointID, currencyID), nil
		}
		return nil, err
	}

	uc.toCache(ctx, balance)

	return balance, nil
}

// List lists balances with pagination.
func (uc *BalanceUseCase) List(ctx context.Context, limit, offset int) ([]*domain.Balance, error) {
	limit, offset = domain.ValidatePagination(limit, offset)
	return uc.balanceRepo.List(ctx, limit, offset)
}

// AmountAt returns the cash balance as it stood at a point in time,
// read from the ledger chain rather than the aggregate.
func (uc *BalanceUseCase) AmountAt(ctx context.Context, pointID, currencyID string, at time.Time) (decimal.Decimal, error) {
	last, err := uc.movementRepo.LastBefore(ctx, pointID, currencyID, at)
	if err == nil {
		return last.NewBalance, nil
	}
	if !errors.Is(err, domain.ErrMovementNotFound) {
		return decimal.Zero, err
	}

	// No movements yet at the cutoff: the anchor, if any, is the balance.
	anchor, err := uc.anchorRepo.GetActiveAt(ctx, pointID, currencyID, at)
	if err != nil {
		if errors.Is(err, domain.ErrAnchorNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}

	return anchor.Amount, nil
}

func (uc *BalanceUseCase) fromCache(ctx context.Context, pointID, currencyID string) *domain.Balance {
	if uc.cache == nil {
		return nil
	}

	data, err := uc.cache.Get(ctx, balanceCacheKey(pointID, currencyID))
	if err != nil || data == nil {
		return nil
	}

	var balance domain.Balance
	if err := json.Unmarshal(data, &balance); err != nil {
		return nil
	}

	return &balance
}

func (uc *BalanceUseCase) toCache(ctx context.Context, balance *domain.Balance) {
	if uc.cache == nil {
		return
	}

	data, err := json.Marshal(balance)
	if err != nil {
		return
	}

	_ = uc.cache.Set(ctx, balanceCacheKey(balance.PointID, balance.CurrencyID), data, uc.cacheTTL)
}
