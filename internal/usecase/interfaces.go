package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/WaldoAlejo/punto-cambio-ledger/internal/domain"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_interfaces.go -package=mocks

// PointCurrency identifies one ledger stream.
type PointCurrency struct {
	PointID    string
	CurrencyID string
}

// MovementRepository defines data access for ledger movements.
type MovementRepository interface {
	Create(ctx context.Context, tx Transaction, movement *domain.Movement) error
	GetByID(ctx context.Context, id string) (*domain.Movement, error)
	// GetByReference looks up an existing movement by its dedup key.
	// Returns domain.ErrMovementNotFound when no movement matches.
	GetByReference(ctx context.Context, tx Transaction, pointID, currencyID string, movementType domain.MovementType, refType domain.ReferenceType, refID string) (*domain.Movement, error)
	ListByPointCurrency(ctx context.Context, pointID, currencyID string, limit, offset int) ([]*domain.Movement, error)
	// ListForReplay returns movements in [from, to] ordered by insertion sequence.
	ListForReplay(ctx context.Context, pointID, currencyID string, from, to time.Time) ([]*domain.Movement, error)
	// ListAllOrdered returns every movement of the stream in sequence order.
	ListAllOrdered(ctx context.Context, pointID, currencyID string) ([]*domain.Movement, error)
	// ListAllOrderedTx is ListAllOrdered inside a repair transaction.
	ListAllOrderedTx(ctx context.Context, tx Transaction, pointID, currencyID string) ([]*domain.Movement, error)
	// LastBefore returns the newest movement at or before the cutoff,
	// or domain.ErrMovementNotFound.
	LastBefore(ctx context.Context, pointID, currencyID string, at time.Time) (*domain.Movement, error)
	// UpdateChain rewrites the stored chain columns of one movement.
	// Administrative exception used only by chain repair.
	UpdateChain(ctx context.Context, tx Transaction, id string, previousBalance, newBalance decimal.Decimal) error
	// FindDuplicateGroups returns movements sharing a dedup key, each
	// group ordered by sequence.
	FindDuplicateGroups(ctx context.Context, tx Transaction, pointID, currencyID string) ([][]*domain.Movement, error)
	// Delete removes a movement. Used only by the duplicate sweep.
	Delete(ctx context.Context, tx Transaction, id string) error
	// ListStreams returns every (point, currency) pair with movements.
	ListStreams(ctx context.Context) ([]PointCurrency, error)
}

// BalanceRepository defines data access for materialized balances.
type BalanceRepository interface {
	Get(ctx context.Context, pointID, currencyID string) (*domain.Balance, error)
	// GetForUpdate locks the balance row, the per-stream serialization
	// point for every mutating operation.
	GetForUpdate(ctx context.Context, tx Transaction, pointID, currencyID string) (*domain.Balance, error)
	CreateTx(ctx context.Context, tx Transaction, balance *domain.Balance) error
	Update(ctx context.Context, tx Transaction, balance *domain.Balance, updatedAt time.Time) error
	List(ctx context.Context, limit, offset int) ([]*domain.Balance, error)
}

// AnchorRepository defines data access for initial balance anchors.
type AnchorRepository interface {
	GetActive(ctx context.Context, pointID, currencyID string) (*domain.InitialBalance, error)
	// GetActiveAt returns the anchor that was active at the cutoff.
	GetActiveAt(ctx context.Context, pointID, currencyID string, at time.Time) (*domain.InitialBalance, error)
	DeactivateTx(ctx context.Context, tx Transaction, pointID, currencyID string) error
	CreateTx(ctx context.Context, tx Transaction, anchor *domain.InitialBalance) error
}

// TransferRepository defines data access for inter-branch transfers.
type TransferRepository interface {
	Create(ctx context.Context, transfer *domain.Transfer) error
	GetByID(ctx context.Context, id string) (*domain.Transfer, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.Transfer, error)
	UpdateStatus(ctx context.Context, tx Transaction, id string, status domain.TransferStatus, updatedAt time.Time) error
	ListByPoint(ctx context.Context, pointID string, limit, offset int) ([]*domain.Transfer, error)
}

// AuditRepository defines data access for administrative audit logs.
type AuditRepository interface {
	CreateTx(ctx context.Context, tx Transaction, log *domain.AuditLog) error
	ListByResource(ctx context.Context, resourceType, resourceID string) ([]*domain.AuditLog, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retryer retries an operation on transient failures.
type Retryer interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
}
