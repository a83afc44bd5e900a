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

const transferColumns = `id, origin_point_id, dest_point_id, currency_id, amount, channel,
	status, description, created_by, created_at, updated_at`

// TransferRepository implements usecase.TransferRepository.
type TransferRepository struct {
	pool *pgxpool.Pool
}

// NewTransferRepository creates a new TransferRepository.
func NewTransferRepository(pool *pgxpool.Pool) *TransferRepository {
	return &TransferRepository{pool: pool}
}

// Create inserts a new transfer.
func (r *TransferRepository) Create(ctx context.Context, transfer *domain.Transfer) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO transfers (
			id, origin_point_id, dest_point_id, currency_id, amount, channel,
			status, description, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11)`,
		transfer.ID,
		transfer.OriginPointID,
		transfer.DestPointID,
		transfer.CurrencyID,
		decimalToNumeric(transfer.Amount),
		string(transfer.Channel),
		string(transfer.Status),
		transfer.Description,
		transfer.CreatedBy,
		timeToPgTimestamptz(transfer.CreatedAt),
		timeToPgTimestamptz(transfer.UpdatedAt),
	)

	return err
}

// GetByID retrieves a transfer by ID.
func (r *TransferRepository) GetByID(ctx context.Context, id string) (*domain.Transfer, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+transferColumns+`
		FROM transfers
		WHERE id = $1`,
		id,
	)

	return scanTransfer(row)
}

// GetByIDForUpdate locks the transfer row for a lifecycle transition.
func (r *TransferRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Transfer, error) {
	pgxTx := tx.(*Tx).PgxTx()

	row := pgxTx.QueryRow(ctx, `
		SELECT `+transferColumns+`
		FROM transfers
		WHERE id = $1
		FOR UPDATE`,
		id,
	)

	return scanTransfer(row)
}

// UpdateStatus persists a lifecycle transition.
func (r *TransferRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, id string, status domain.TransferStatus, updatedAt time.Time) error {
	pgxTx := tx.(*Tx).PgxTx()

	tag, err := pgxTx.Exec(ctx, `
		UPDATE transfers
		SET status = $2, updated_at = $3
		WHERE id = $1`,
		id, string(status), timeToPgTimestamptz(updatedAt),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransferNotFound
	}

	return nil
}

// ListByPoint lists transfers where the point is origin or destination.
func (r *TransferRepository) ListByPoint(ctx context.Context, pointID string, limit, offset int) ([]*domain.Transfer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+transferColumns+`
		FROM transfers
		WHERE origin_point_id = $1 OR dest_point_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		pointID, int32(limit), int32(offset),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []*domain.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}

	return transfers, rows.Err()
}

func scanTransfer(row pgx.Row) (*domain.Transfer, error) {
	var (
		t         domain.Transfer
		amount    pgtype.Numeric
		desc      pgtype.Text
		createdBy pgtype.Text
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)

	err := row.Scan(
		&t.ID, &t.OriginPointID, &t.DestPointID, &t.CurrencyID, &amount,
		(*string)(&t.Channel), (*string)(&t.Status), &desc, &createdBy,
		&createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransferNotFound
		}

		return nil, err
	}

	t.Amount = numericToDecimal(amount)
	t.Description = desc.String
	t.CreatedBy = createdBy.String
	t.CreatedAt = createdAt.Time
	t.UpdatedAt = updatedAt.Time

	return &t, nil
}
