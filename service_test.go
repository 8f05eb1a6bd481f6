/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package dbkeeper

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/last1971/dbkeeper/database"
	"github.com/last1971/dbkeeper/driver"
	"github.com/last1971/dbkeeper/driver/bundriver"
)

func newMockPool(t *testing.T) (*database.ConnectionPool, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	handle := bundriver.WrapDB(bun.NewDB(sqlDB, pgdialect.New()))
	pool, err := database.NewConnectionPoolFromHandle(handle, 3, database.WithPoolLogger(database.NopLogger()))
	require.NoError(t, err)
	return pool, mock
}

func TestRunInPoolCommits(t *testing.T) {
	ctx := context.Background()
	pool, mock := newMockPool(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE accounts").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectClose()

	err := RunInPool(ctx, pool, driver.ReadCommitted, func(ctx context.Context, tx *database.Transaction) error {
		_, err := tx.Execute(ctx, "UPDATE accounts SET balance = balance - ? WHERE id = ?", 10, 1)
		return err
	})
	require.NoError(t, err)

	stats := pool.GetStats()
	assert.Equal(t, 0, stats.ActiveTransactions)
	assert.Equal(t, 0, stats.ActiveConnections)
	assert.EqualValues(t, 1, stats.TransactionsCommitted)
	require.NoError(t, pool.Destroy())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInPoolRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	pool, mock := newMockPool(t)
	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectClose()

	boom := errors.New("insufficient funds")
	err := RunInPool(ctx, pool, driver.Serializable, func(context.Context, *database.Transaction) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stats := pool.GetStats()
	assert.Equal(t, 0, stats.ActiveTransactions)
	assert.EqualValues(t, 1, stats.TransactionsRolledBack)
	assert.EqualValues(t, 1, stats.ConnectionsDetached)
	require.NoError(t, pool.Destroy())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInPoolRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	pool, mock := newMockPool(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = RunInPool(ctx, pool, driver.ReadCommitted, func(context.Context, *database.Transaction) error {
			panic("bug")
		})
	})
	assert.Equal(t, 0, pool.GetActiveTransactionsCount())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTransactionWithoutPool(t *testing.T) {
	database.SetPool(nil)
	err := RunInTransaction(context.Background(), driver.ReadCommitted, func(context.Context, *database.Transaction) error {
		return nil
	})
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestRunUsesPoolDefaultIsolation(t *testing.T) {
	ctx := context.Background()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	handle := bundriver.WrapDB(bun.NewDB(sqlDB, pgdialect.New()))
	pool, err := database.NewConnectionPoolFromHandle(handle, 2,
		database.WithPoolLogger(database.NopLogger()),
		database.WithDefaultIsolation(driver.Serializable))
	require.NoError(t, err)
	database.SetPool(pool)
	t.Cleanup(func() { database.SetPool(nil) })

	mock.ExpectBegin()
	mock.ExpectCommit()

	var seen driver.Isolation
	err = Run(ctx, func(_ context.Context, tx *database.Transaction) error {
		seen = tx.Isolation()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, driver.Serializable, seen)
	assert.NoError(t, mock.ExpectationsWereMet())

	database.SetPool(nil)
	assert.ErrorIs(t, Run(ctx, func(context.Context, *database.Transaction) error { return nil }), ErrNotInitialized)
}

func TestRunInPoolDetachesWhenBodyCommits(t *testing.T) {
	ctx := context.Background()
	pool, mock := newMockPool(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectClose()

	err := RunInPool(ctx, pool, driver.ReadCommitted, func(ctx context.Context, tx *database.Transaction) error {
		return tx.Commit(ctx)
	})
	require.NoError(t, err)

	stats := pool.GetStats()
	assert.Equal(t, 0, stats.ActiveTransactions)
	assert.Equal(t, 0, stats.ActiveConnections)
	assert.EqualValues(t, 1, stats.TransactionsCommitted)
	assert.EqualValues(t, 1, stats.ConnectionsDetached)
	require.NoError(t, pool.Destroy())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInPoolDetachesWhenBodyRollsBack(t *testing.T) {
	ctx := context.Background()
	pool, mock := newMockPool(t)
	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectClose()

	boom := errors.New("validation failed")
	err := RunInPool(ctx, pool, driver.ReadCommitted, func(ctx context.Context, tx *database.Transaction) error {
		if err := tx.Rollback(ctx); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stats := pool.GetStats()
	assert.Equal(t, 0, stats.ActiveConnections)
	assert.EqualValues(t, 1, stats.TransactionsRolledBack)
	assert.EqualValues(t, 1, stats.ConnectionsDetached)
	require.NoError(t, pool.Destroy())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInPoolBodyCommitDetach(t *testing.T) {
	ctx := context.Background()
	pool, mock := newMockPool(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectClose()

	err := RunInPool(ctx, pool, driver.ReadCommitted, func(ctx context.Context, tx *database.Transaction) error {
		return tx.CommitDetach(ctx)
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, pool.GetStats().ConnectionsDetached)
	require.NoError(t, pool.Destroy())
	assert.NoError(t, mock.ExpectationsWereMet())
}
