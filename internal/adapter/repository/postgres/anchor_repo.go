package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/WaldoAlejo/punto-cambio-ledger/internal/domain"
	"github.com/WaldoAlejo/punto-cambio-ledger/internal/usecase"
)

const anchorColumns = `id, point_id, currency_id, amount, assigned_at, assigned_by, active`

// AnchorRepository implements usecase.AnchorRepository.
type AnchorRepository struct {
	pool *pgxpool.Pool
}

// NewAnchorRepository creates a new AnchorRepository.
func NewAnchorRepository(pool *pgxpool.Pool) *AnchorRepository {
	return &AnchorRepository{pool: pool}
}

// GetActive returns the active anchor for a stream.
func (r *AnchorRepository) GetActive(ctx context.Context, pointID, currencyID string) (*domain.InitialBalance, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+anchorColumns+`
		FROM initial_balances
		WHERE point_id = $1 AND currency_id = $2 AND active
		ORDER BY assigned_at DESC
		LIMIT 1`,
		pointID, currencyID,
	)

	return scanAnchor(row)
}

// GetActiveAt returns the anchor active at or before the cutoff.
func (r *AnchorRepository) GetActiveAt(ctx context.Context, pointID, currencyID string, at time.Time) (*domain.InitialBalance, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+anchorColumns+`
		FROM initial_balances
		WHERE point_id = $1 AND currency_id = $2 AND active AND assigned_at <= $3
		ORDER BY assigned_at DESC
		LIMIT 1`,
		pointID, currencyID, timeToPgTimestamptz(at),
	)

	return scanAnchor(row)
}

// DeactivateTx deactivates every anchor of a stream. Superseded anchors
// stay in place for the audit trail.
func (r *AnchorRepository) DeactivateTx(ctx context.Context, tx usecase.Transaction, pointID, currencyID string) error {
	pgxTx := tx.(*Tx).PgxTx()

	_, err := pgxTx.Exec(ctx, `
		UPDATE initial_balances
		SET active = false
		WHERE point_id = $1 AND currency_id = $2 AND active`,
		pointID, currencyID,
	)

	return err
}

// CreateTx inserts a new anchor.
func (r *AnchorRepository) CreateTx(ctx context.Context, tx usecase.Transaction, anchor *domain.InitialBalance) error {
	pgxTx := tx.(*Tx).PgxTx()

	_, err := pgxTx.Exec(ctx, `
		INSERT INTO initial_balances (id, point_id, currency_id, amount, assigned_at, assigned_by, active)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)`,
		anchor.ID,
		anchor.PointID,
		anchor.CurrencyID,
		decimalToNumeric(anchor.Amount),
		timeToPgTimestamptz(anchor.AssignedAt),
		anchor.AssignedBy,
		anchor.Active,
	)

	return err
}

func scanAnchor(row pgx.Row) (*domain.InitialBalance, error) {
	var (
		a          domain.InitialBalance
		amount     pgtype.Numeric
		assignedAt pgtype.Timestamptz
		assignedBy pgtype.Text
	)

	err := row.Scan(&a.ID, &a.PointID, &a.CurrencyID, &amount, &assignedAt, &assignedBy, &a.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAnchorNotFound
		}

		return nil, err
	}

	a.Amount = numericToDecimal(amount)
	a.AssignedAt = assignedAt.Time
	a.AssignedBy = assignedBy.String

	return &a, nil
}
