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
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/last1971/dbkeeper/driver"
)

// Conn is one database/sql connection. A standalone Conn owns its private
// *bun.DB and closes it on Detach; a pooled Conn returns to its pool.
type Conn struct {
	db    *bun.DB
	conn  bun.Conn
	owned bool
}

var _ driver.Conn = (*Conn)(nil)

func (c *Conn) Query(ctx context.Context, query string, params ...interface{}) ([]driver.Row, error) {
	return scanRows(ctx, c.conn.NewRaw(query, params...))
}

func (c *Conn) Execute(ctx context.Context, query string, params ...interface{}) (driver.Result, error) {
	return c.conn.ExecContext(ctx, query, params...)
}

func (c *Conn) Begin(ctx context.Context, isolation driver.Isolation) (driver.Tx, error) {
	tx, err := c.conn.BeginTx(ctx, txOptions(c.db.Dialect().Name(), isolation))
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

func (c *Conn) Detach() error {
	err := c.conn.Close()
	if c.owned {
		if cerr := c.db.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

type Tx struct {
	tx bun.Tx
}

var _ driver.Tx = (*Tx)(nil)

func (t *Tx) Query(ctx context.Context, query string, params ...interface{}) ([]driver.Row, error) {
	return scanRows(ctx, t.tx.NewRaw(query, params...))
}

func (t *Tx) Execute(ctx context.Context, query string, params ...interface{}) (driver.Result, error) {
	return t.tx.ExecContext(ctx, query, params...)
}

// Commit and Rollback ignore ctx; database/sql binds a transaction to the
// context it was begun with.
func (t *Tx) Commit(_ context.Context) error {
	return t.tx.Commit()
}

func (t *Tx) Rollback(_ context.Context) error {
	return t.tx.Rollback()
}

// Pool is a database/sql pool behind a *bun.DB.
type Pool struct {
	db *bun.DB
}

var _ driver.Pool = (*Pool)(nil)

// WrapDB adopts an existing Bun database as a driver pool. Destroy closes it.
func WrapDB(db *bun.DB) *Pool {
	return &Pool{db: db}
}

func (p *Pool) Get(ctx context.Context) (driver.Conn, error) {
	c, err := p.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &Conn{db: p.db, conn: c}, nil
}

func (p *Pool) Destroy() error {
	return p.db.Close()
}

// DB exposes the underlying Bun database.
func (p *Pool) DB() *bun.DB {
	return p.db
}

func scanRows(ctx context.Context, q *bun.RawQuery) ([]driver.Row, error) {
	var rows []map[string]interface{}
	if err := q.Scan(ctx, &rows); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	out := make([]driver.Row, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out, nil
}

// txOptions maps an isolation level to database/sql options. SQLite only
// knows serializable transactions, so the hint is dropped there.
func txOptions(name dialect.Name, isolation driver.Isolation) *sql.TxOptions {
	if name == dialect.SQLite {
		return &sql.TxOptions{}
	}
	switch isolation {
	case driver.ReadUncommitted:
		return &sql.TxOptions{Isolation: sql.LevelReadUncommitted}
	case driver.RepeatableRead:
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead}
	case driver.Serializable:
		return &sql.TxOptions{Isolation: sql.LevelSerializable}
	case driver.ReadCommittedReadOnly:
		return &sql.TxOptions{Isolation: sql.LevelReadCommitted, ReadOnly: true}
	default:
		return &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	}
}
