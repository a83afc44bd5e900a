package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/WaldoAlejo/punto-cambio-ledger/internal/domain"
	"github.com/WaldoAlejo/punto-cambio-ledger/internal/usecase"
)

const movementColumns = `id, point_id, currency_id, movement_type, channel, amount,
	previous_balance, new_balance, reference_type, reference_id,
	description, actor_id, sequence, created_at`

// MovementRepository implements usecase.MovementRepository.
type MovementRepository struct {
	pool *pgxpool.Pool
}

// NewMovementRepository creates a new MovementRepository.
func NewMovementRepository(pool *pgxpool.Pool) *MovementRepository {
	return &MovementRepository{pool: pool}
}

// pgErrUniqueViolation is raised by the partial dedup index when two
// transactions race the same reference key; the loser is a duplicate.
const pgErrUniqueViolation = "23505"

// Create inserts a movement and assigns its insertion sequence. The
// sequence, not the wall clock, is the stream's replay order.
func (r *MovementRepository) Create(ctx context.Context, tx usecase.Transaction, movement *domain.Movement) error {
	pgxTx := tx.(*Tx).PgxTx()

	err := pgxTx.QueryRow(ctx, `
		INSERT INTO movements (
			id, point_id, currency_id, movement_type, channel, amount,
			previous_balance, new_balance, reference_type, reference_id,
			description, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11, $12, $13)
		RETURNING sequence`,
		movement.ID,
		movement.PointID,
		movement.CurrencyID,
		string(movement.Type),
		string(movement.Channel),
		decimalToNumeric(movement.Amount),
		decimalToNumeric(movement.PreviousBalance),
		decimalToNumeric(movement.NewBalance),
		string(movement.ReferenceType),
		movement.ReferenceID,
		movement.Description,
		movement.ActorID,
		timeToPgTimestamptz(movement.CreatedAt),
	).Scan(&movement.Sequence)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return domain.ErrDuplicateMovement
		}

		return err
	}

	return nil
}

// GetByID retrieves a movement by ID.
func (r *MovementRepository) GetByID(ctx context.Context, id string) (*domain.Movement, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+movementColumns+`
		FROM movements
		WHERE id = $1`,
		id,
	)

	return scanMovement(row)
}

// GetByReference looks up a movement by its dedup key inside the
// recording transaction.
func (r *MovementRepository) GetByReference(ctx context.Context, tx usecase.Transaction, pointID, currencyID string, movementType domain.MovementType, refType domain.ReferenceType, refID string) (*domain.Movement, error) {
	pgxTx := tx.(*Tx).PgxTx()

	row := pgxTx.QueryRow(ctx, `
		SELECT `+movementColumns+`
		FROM movements
		WHERE point_id = $1 AND currency_id = $2 AND movement_type = $3
		  AND reference_type = $4 AND reference_id = $5
		ORDER BY sequence
		LIMIT 1`,
		pointID, currencyID, string(movementType), string(refType), refID,
	)

	return scanMovement(row)
}

// ListByPointCurrency lists a stream's movements newest first.
func (r *MovementRepository) ListByPointCurrency(ctx context.Context, pointID, currencyID string, limit, offset int) ([]*domain.Movement, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+movementColumns+`
		FROM movements
		WHERE point_id = $1 AND currency_id = $2
		ORDER BY sequence DESC
		LIMIT $3 OFFSET $4`,
		pointID, currencyID, int32(limit), int32(offset),
	)
	if err != nil {
		return nil, err
	}

	return scanMovements(rows)
}

// ListForReplay returns movements in [from, to] in insertion order.
func (r *MovementRepository) ListForReplay(ctx context.Context, pointID, currencyID string, from, to time.Time) ([]*domain.Movement, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+movementColumns+`
		FROM movements
		WHERE point_id = $1 AND currency_id = $2
		  AND created_at >= $3 AND created_at <= $4
		ORDER BY sequence`,
		pointID, currencyID, timeToPgTimestamptz(from), timeToPgTimestamptz(to),
	)
	if err != nil {
		return nil, err
	}

	return scanMovements(rows)
}

// ListAllOrdered returns every movement of a stream in insertion order.
func (r *MovementRepository) ListAllOrdered(ctx context.Context, pointID, currencyID string) ([]*domain.Movement, error) {
	return r.listAllOrdered(ctx, r.pool, pointID, currencyID)
}

// ListAllOrderedTx is ListAllOrdered inside a repair transaction.
func (r *MovementRepository) ListAllOrderedTx(ctx context.Context, tx usecase.Transaction, pointID, currencyID string) ([]*domain.Movement, error) {
	return r.listAllOrdered(ctx, tx.(*Tx).PgxTx(), pointID, currencyID)
}

func (r *MovementRepository) listAllOrdered(ctx context.Context, q querier, pointID, currencyID string) ([]*domain.Movement, error) {
	rows, err := q.Query(ctx, `
		SELECT `+movementColumns+`
		FROM movements
		WHERE point_id = $1 AND currency_id = $2
		ORDER BY sequence`,
		pointID, currencyID,
	)
	if err != nil {
		return nil, err
	}

	return scanMovements(rows)
}

// LastBefore returns the newest movement at or before the cutoff.
func (r *MovementRepository) LastBefore(ctx context.Context, pointID, currencyID string, at time.Time) (*domain.Movement, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+movementColumns+`
		FROM movements
		WHERE point_id = $1 AND currency_id = $2 AND created_at <= $3
		ORDER BY sequence DESC
		LIMIT 1`,
		pointID, currencyID, timeToPgTimestamptz(at),
	)

	return scanMovement(row)
}

// UpdateChain rewrites one movement's stored chain columns. Reserved
// for chain repair.
func (r *MovementRepository) UpdateChain(ctx context.Context, tx usecase.Transaction, id string, previousBalance, newBalance decimal.Decimal) error {
	pgxTx := tx.(*Tx).PgxTx()

	tag, err := pgxTx.Exec(ctx, `
		UPDATE movements
		SET previous_balance = $2, new_balance = $3
		WHERE id = $1`,
		id, decimalToNumeric(previousBalance), decimalToNumeric(newBalance),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMovementNotFound
	}

	return nil
}

// FindDuplicateGroups returns movements sharing a dedup key, each group
// ordered by sequence.
func (r *MovementRepository) FindDuplicateGroups(ctx context.Context, tx usecase.Transaction, pointID, currencyID string) ([][]*domain.Movement, error) {
	pgxTx := tx.(*Tx).PgxTx()

	rows, err := pgxTx.Query(ctx, `
		SELECT `+movementColumns+`
		FROM movements
		WHERE point_id = $1 AND currency_id = $2
		  AND reference_type IS NOT NULL AND reference_id IS NOT NULL
		  AND (movement_type, reference_type, reference_id) IN (
			SELECT movement_type, reference_type, reference_id
			FROM movements
			WHERE point_id = $1 AND currency_id = $2
			  AND reference_type IS NOT NULL AND reference_id IS NOT NULL
			GROUP BY movement_type, reference_type, reference_id
			HAVING COUNT(*) > 1
		  )
		ORDER BY movement_type, reference_type, reference_id, sequence`,
		pointID, currencyID,
	)
	if err != nil {
		return nil, err
	}

	movements, err := scanMovements(rows)
	if err != nil {
		return nil, err
	}

	var groups [][]*domain.Movement
	var current []*domain.Movement
	for _, m := range movements {
		if len(current) > 0 && !sameDedupKey(current[0], m) {
			groups = append(groups, current)
			current = nil
		}
		current = append(current, m)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}

	return groups, nil
}

func sameDedupKey(a, b *domain.Movement) bool {
	return a.Type == b.Type && a.ReferenceType == b.ReferenceType && a.ReferenceID == b.ReferenceID
}

// Delete removes a movement. Reserved for the duplicate sweep.
func (r *MovementRepository) Delete(ctx context.Context, tx usecase.Transaction, id string) error {
	pgxTx := tx.(*Tx).PgxTx()

	tag, err := pgxTx.Exec(ctx, `DELETE FROM movements WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMovementNotFound
	}

	return nil
}

// ListStreams returns every (point, currency) pair with movements.
func (r *MovementRepository) ListStreams(ctx context.Context) ([]usecase.PointCurrency, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT point_id, currency_id
		FROM movements
		ORDER BY point_id, currency_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var streams []usecase.PointCurrency
	for rows.Next() {
		var s usecase.PointCurrency
		if err := rows.Scan(&s.PointID, &s.CurrencyID); err != nil {
			return nil, err
		}
		streams = append(streams, s)
	}

	return streams, rows.Err()
}

func scanMovement(row pgx.Row) (*domain.Movement, error) {
	var (
		m         domain.Movement
		amount    pgtype.Numeric
		previous  pgtype.Numeric
		next      pgtype.Numeric
		refType   pgtype.Text
		refID     pgtype.Text
		desc      pgtype.Text
		actor     pgtype.Text
		createdAt pgtype.Timestamptz
	)

	err := row.Scan(
		&m.ID, &m.PointID, &m.CurrencyID, (*string)(&m.Type), (*string)(&m.Channel),
		&amount, &previous, &next, &refType, &refID, &desc, &actor,
		&m.Sequence, &createdAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMovementNotFound
		}

		return nil, err
	}

	m.Amount = numericToDecimal(amount)
	m.PreviousBalance = numericToDecimal(previous)
	m.NewBalance = numericToDecimal(next)
	m.ReferenceType = domain.ReferenceType(refType.String)
	m.ReferenceID = refID.String
	m.Description = desc.String
	m.ActorID = actor.String
	m.CreatedAt = createdAt.Time

	return &m, nil
}

func scanMovements(rows pgx.Rows) ([]*domain.Movement, error) {
	defer rows.Close()

	var movements []*domain.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}

	return movements, rows.Err()
}
