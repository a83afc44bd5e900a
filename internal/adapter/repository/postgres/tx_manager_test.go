package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

// anyArgs builds n wildcard matchers for expectations that do not
// assert argument values; pgxmock matches argument counts even when
// WithArgs is omitted.
func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestTxManagerCommit(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectBegin()
	pool.ExpectCommit()

	tx, err := newTxManagerWithPool(pool).Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Commit(context.Background()))
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestTxManagerRollback(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectBegin()
	pool.ExpectRollback()

	tx, err := newTxManagerWithPool(pool).Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(context.Background()))
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestTxManagerBeginError(t *testing.T) {
	pool := newMockPool(t)
	beginErr := errors.New("begin failed")
	pool.ExpectBegin().WillReturnError(beginErr)

	_, err := newTxManagerWithPool(pool).Begin(context.Background())
	require.ErrorIs(t, err, beginErr)
}

func TestTxManagerCommitError(t *testing.T) {
	pool := newMockPool(t)
	commitErr := errors.New("commit failed")
	pool.ExpectBegin()
	pool.ExpectCommit().WillReturnError(commitErr)

	tx, err := newTxManagerWithPool(pool).Begin(context.Background())
	require.NoError(t, err)
	require.ErrorIs(t, tx.Commit(context.Background()), commitErr)
}
