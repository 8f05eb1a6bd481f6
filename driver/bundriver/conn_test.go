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

package bundriver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/last1971/dbkeeper/driver"
)

func newMockPool(t *testing.T) (*Pool, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	return WrapDB(bun.NewDB(sqlDB, pgdialect.New())), mock
}

func TestWrapDBExposesDatabase(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := bun.NewDB(sqlDB, pgdialect.New())
	p := WrapDB(db)
	assert.Same(t, db, p.DB())

	mock.ExpectClose()
	require.NoError(t, p.Destroy())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPooledConnTransaction(t *testing.T) {
	ctx := context.Background()
	pool, mock := newMockPool(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (name) VALUES ('alice')")).
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM users WHERE id = 7")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(7, "alice"))
	mock.ExpectCommit()
	mock.ExpectClose()

	conn, err := pool.Get(ctx)
	require.NoError(t, err)
	tx, err := conn.Begin(ctx, driver.ReadCommitted)
	require.NoError(t, err)

	res, err := tx.Execute(ctx, "INSERT INTO users (name) VALUES (?)", "alice")
	require.NoError(t, err)
	affected, err := res.RowsAffected()
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)

	rows, err := tx.Query(ctx, "SELECT id, name FROM users WHERE id = ?", 7)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 7, rows[0]["id"])
	assert.Equal(t, "alice", rows[0]["name"])

	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, conn.Detach())
	require.NoError(t, pool.Destroy())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPooledConnRollbackAndEmptyResult(t *testing.T) {
	ctx := context.Background()
	pool, mock := newMockPool(t)

	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"one"}))
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM users").WillReturnError(errors.New("locked"))
	mock.ExpectRollback()
	mock.ExpectClose()

	conn, err := pool.Get(ctx)
	require.NoError(t, err)

	rows, err := conn.Query(ctx, "SELECT 1")
	require.NoError(t, err)
	assert.Empty(t, rows)

	tx, err := conn.Begin(ctx, driver.Serializable)
	require.NoError(t, err)
	_, err = tx.Execute(ctx, "DELETE FROM users")
	assert.EqualError(t, err, "locked")
	require.NoError(t, tx.Rollback(ctx))

	require.NoError(t, conn.Detach())
	require.NoError(t, pool.Destroy())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttachRefusedKeepsErrorCode(t *testing.T) {
	o := driver.DefaultOptions()
	o.Type = driver.TypeMySQL
	o.Host = "127.0.0.1"
	o.Port = 1
	o.DBName = "nothing"
	o.ConnectTimeout = 2 * time.Second

	_, err := New().Attach(context.Background(), o)
	require.Error(t, err)
	assert.Equal(t, "ECONNREFUSED", driver.ErrorCode(err))
	is, kind := driver.IsSqlError(err)
	assert.True(t, is)
	assert.Equal(t, driver.ConnectionErr, kind)
}

func TestUnsupportedType(t *testing.T) {
	_, err := New().Attach(context.Background(), &driver.Options{Type: "oracle"})
	assert.ErrorContains(t, err, "unsupported database type")

	_, err = New().Create(context.Background(), &driver.Options{Type: driver.TypeMySQL, DBName: "x", Charset: "utf8; DROP"})
	assert.ErrorContains(t, err, "invalid charset")
}

func TestSQLiteLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("sqlite integration")
	}
	ctx := context.Background()
	o := driver.DefaultOptions()
	o.Type = driver.TypeSQLite
	o.DBName = filepath.Join(t.TempDir(), "keeper.db")
	d := New()

	_, err := d.Attach(ctx, o)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	conn, err := d.Create(ctx, o)
	require.NoError(t, err)
	_, err = conn.Execute(ctx, "CREATE TABLE items (id INTEGER PRIMARY KEY, label TEXT)")
	require.NoError(t, err)

	tx, err := conn.Begin(ctx, driver.ReadCommittedReadOnly)
	require.NoError(t, err)
	res, err := tx.Execute(ctx, "INSERT INTO items (label) VALUES (?)", "first")
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	assert.EqualValues(t, 1, id)
	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, conn.Detach())

	_, err = d.Create(ctx, o)
	assert.True(t, errors.Is(err, os.ErrExist))

	conn, err = d.AttachOrCreate(ctx, o)
	require.NoError(t, err)
	rows, err := conn.Query(ctx, "SELECT id, label FROM items")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 1, rows[0]["id"])
	require.NoError(t, conn.Detach())

	pool, err := d.Pool(ctx, 2, o)
	require.NoError(t, err)
	pc, err := pool.Get(ctx)
	require.NoError(t, err)
	rows, err = pc.Query(ctx, "SELECT count(*) AS n FROM items")
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows[0]["n"])
	require.NoError(t, pc.Detach())
	assert.NoError(t, pool.Destroy())
}
