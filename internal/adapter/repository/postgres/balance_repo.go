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

const balanceColumns = `point_id, currency_id, amount, cash_bills, cash_coins, bank, version, updated_at`

// BalanceRepository implements usecase.BalanceRepository.
type BalanceRepository struct {
	pool *pgxpool.Pool
}

// NewBalanceRepository creates a new BalanceRepository.
func NewBalanceRepository(pool *pgxpool.Pool) *BalanceRepository {
	return &BalanceRepository{pool: pool}
}

// Get retrieves the balance for a stream.
func (r *BalanceRepository) Get(ctx context.Context, pointID, currencyID string) (*domain.Balance, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+balanceColumns+`
		FROM balances
		WHERE point_id = $1 AND currency_id = $2`,
		pointID, currencyID,
	)

	return scanBalance(row)
}

// GetForUpdate locks the balance row. This lock is the per-stream
// serialization point for every mutating ledger operation.
func (r *BalanceRepository) GetForUpdate(ctx context.Context, tx usecase.Transaction, pointID, currencyID string) (*domain.Balance, error) {
	pgxTx := tx.(*Tx).PgxTx()

	row := pgxTx.QueryRow(ctx, `
		SELECT `+balanceColumns+`
		FROM balances
		WHERE point_id = $1 AND currency_id = $2
		FOR UPDATE`,
		pointID, currencyID,
	)

	return scanBalance(row)
}

// CreateTx inserts the zero row for a stream's first movement. The
// insert itself takes the row lock for the rest of the transaction.
func (r *BalanceRepository) CreateTx(ctx context.Context, tx usecase.Transaction, balance *domain.Balance) error {
	pgxTx := tx.(*Tx).PgxTx()

	_, err := pgxTx.Exec(ctx, `
		INSERT INTO balances (point_id, currency_id, amount, cash_bills, cash_coins, bank, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, now())`,
		balance.PointID,
		balance.CurrencyID,
		decimalToNumeric(balance.Amount),
		decimalToNumeric(balance.CashBills),
		decimalToNumeric(balance.CashCoins),
		decimalToNumeric(balance.Bank),
	)

	return err
}

// Update writes the balance back under the lock taken by GetForUpdate.
func (r *BalanceRepository) Update(ctx context.Context, tx usecase.Transaction, balance *domain.Balance, updatedAt time.Time) error {
	pgxTx := tx.(*Tx).PgxTx()

	tag, err := pgxTx.Exec(ctx, `
		UPDATE balances
		SET amount = $3, cash_bills = $4, cash_coins = $5, bank = $6,
		    version = version + 1, updated_at = $7
		WHERE point_id = $1 AND currency_id = $2`,
		balance.PointID,
		balance.CurrencyID,
		decimalToNumeric(balance.Amount),
		decimalToNumeric(balance.CashBills),
		decimalToNumeric(balance.CashCoins),
		decimalToNumeric(balance.Bank),
		timeToPgTimestamptz(updatedAt),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBalanceNotFound
	}

	return nil
}

// List lists balances with pagination.
func (r *BalanceRepository) List(ctx context.Context, limit, offset int) ([]*domain.Balance, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+balanceColumns+`
		FROM balances
		ORDER BY point_id, currency_id
		LIMIT $1 OFFSET $2`,
		int32(limit), int32(offset),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []*domain.Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}

	return balances, rows.Err()
}

func scanBalance(row pgx.Row) (*domain.Balance, error) {
	var (
		b         domain.Balance
		amount    pgtype.Numeric
		bills     pgtype.Numeric
		coins     pgtype.Numeric
		bank      pgtype.Numeric
		updatedAt pgtype.Timestamptz
	)

	err := row.Scan(
		&b.PointID, &b.CurrencyID, &amount, &bills, &coins, &bank,
		&b.Version, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBalanceNotFound
		}

		return nil, err
	}

	b.Amount = numericToDecimal(amount)
	b.CashBills = numericToDecimal(bills)
	b.CashCoins = numericToDecimal(coins)
	b.Bank = numericToDecimal(bank)
	b.UpdatedAt = updatedAt.Time

	return &b, nil
}
