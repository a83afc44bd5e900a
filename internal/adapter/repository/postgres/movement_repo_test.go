package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/WaldoAlejo/punto-cambio-ledger/internal/domain"
)

func pgTextValue(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func testMovement() *domain.Movement {
	return &domain.Movement{
		ID:              "mov-1",
		PointID:         "point-1",
		CurrencyID:      "USD",
		Type:            domain.MovementIncome,
		Channel:         domain.ChannelCashBills,
		Amount:          decimal.NewFromInt(100),
		PreviousBalance: decimal.NewFromInt(50),
		NewBalance:      decimal.NewFromInt(150),
		ReferenceType:   domain.ReferenceTransfer,
		ReferenceID:     "transfer-9",
		ActorID:         "user-1",
		CreatedAt:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMovementRepositoryCreateAssignsSequence(t *testing.T) {
	pool := newMockPool(t)
	tx := beginMockTx(t, pool)

	pool.ExpectQuery(`INSERT INTO movements(?s).*RETURNING sequence`).
		WithArgs(anyArgs(13)...).
		WillReturnRows(pgxmock.NewRows([]string{"sequence"}).AddRow(int64(7)))

	movement := testMovement()
	err := NewMovementRepository(nil).Create(context.Background(), tx, movement)
	require.NoError(t, err)
	require.Equal(t, int64(7), movement.Sequence)
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestMovementRepositoryCreateMapsUniqueViolation(t *testing.T) {
	pool := newMockPool(t)
	tx := beginMockTx(t, pool)

	pool.ExpectQuery(`INSERT INTO movements`).
		WithArgs(anyArgs(13)...).
		WillReturnError(&pgconn.PgError{
			Code:           pgErrUniqueViolation,
			ConstraintName: "idx_movements_dedup_reference",
		})

	err := NewMovementRepository(nil).Create(context.Background(), tx, testMovement())
	require.ErrorIs(t, err, domain.ErrDuplicateMovement)
}

func TestMovementRepositoryCreatePassesThroughOtherErrors(t *testing.T) {
	pool := newMockPool(t)
	tx := beginMockTx(t, pool)

	pgErr := &pgconn.PgError{Code: pgErrDeadlock}
	pool.ExpectQuery(`INSERT INTO movements`).WithArgs(anyArgs(13)...).WillReturnError(pgErr)

	err := NewMovementRepository(nil).Create(context.Background(), tx, testMovement())
	require.ErrorIs(t, err, pgErr)
	require.NotErrorIs(t, err, domain.ErrDuplicateMovement)
}

func TestMovementRepositoryGetByReferenceScan(t *testing.T) {
	pool := newMockPool(t)
	tx := beginMockTx(t, pool)

	rows := pgxmock.NewRows([]string{
		"id", "point_id", "currency_id", "movement_type", "channel", "amount",
		"previous_balance", "new_balance", "reference_type", "reference_id",
		"description", "actor_id", "sequence", "created_at",
	}).AddRow(
		"mov-1", "point-1", "USD", "INCOME", "CASH_BILLS",
		decimalToNumeric(decimal.NewFromInt(100)),
		decimalToNumeric(decimal.NewFromInt(50)),
		decimalToNumeric(decimal.NewFromInt(150)),
		pgTextValue("TRANSFER"), pgTextValue("transfer-9"),
		pgTextValue(""), pgTextValue("user-1"),
		int64(3),
		timeToPgTimestamptz(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	)

	pool.ExpectQuery(`FROM movements(?s).*reference_type = \$4`).
		WithArgs("point-1", "USD", "INCOME", "TRANSFER", "transfer-9").
		WillReturnRows(rows)

	movement, err := NewMovementRepository(nil).GetByReference(
		context.Background(), tx,
		"point-1", "USD", domain.MovementIncome, domain.ReferenceTransfer, "transfer-9",
	)
	require.NoError(t, err)
	require.Equal(t, "mov-1", movement.ID)
	require.Equal(t, domain.MovementIncome, movement.Type)
	require.Equal(t, domain.ReferenceTransfer, movement.ReferenceType)
	require.Equal(t, "transfer-9", movement.ReferenceID)
	require.Equal(t, int64(3), movement.Sequence)
	require.True(t, movement.Amount.Equal(decimal.NewFromInt(100)))
	require.True(t, movement.NewBalance.Equal(decimal.NewFromInt(150)))
}
