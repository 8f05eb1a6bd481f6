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

package pgxdriver

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/last1971/dbkeeper/driver"
)

// ErrLastInsertID is returned by Result.LastInsertId; use RETURNING instead.
var ErrLastInsertID = errors.New("pgxdriver: LastInsertId is not supported")

// querier is the surface shared by *pgx.Conn, *pgxpool.Conn and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type beginner interface {
	querier
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

type Conn struct {
	q     beginner
	close func() error
}

var _ driver.Conn = (*Conn)(nil)

func (c *Conn) Query(ctx context.Context, query string, params ...interface{}) ([]driver.Row, error) {
	return collect(ctx, c.q, query, params)
}

func (c *Conn) Execute(ctx context.Context, query string, params ...interface{}) (driver.Result, error) {
	return execute(ctx, c.q, query, params)
}

func (c *Conn) Begin(ctx context.Context, isolation driver.Isolation) (driver.Tx, error) {
	tx, err := c.q.BeginTx(ctx, txOptions(isolation))
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

// Detach closes a standalone connection or releases a pooled one.
func (c *Conn) Detach() error {
	return c.close()
}

type Tx struct {
	tx pgx.Tx
}

var _ driver.Tx = (*Tx)(nil)

func (t *Tx) Query(ctx context.Context, query string, params ...interface{}) ([]driver.Row, error) {
	return collect(ctx, t.tx, query, params)
}

func (t *Tx) Execute(ctx context.Context, query string, params ...interface{}) (driver.Result, error) {
	return execute(ctx, t.tx, query, params)
}

func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *Tx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

type Pool struct {
	pool *pgxpool.Pool
}

var _ driver.Pool = (*Pool)(nil)

func (p *Pool) Get(ctx context.Context) (driver.Conn, error) {
	c, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Conn{q: c, close: func() error {
		c.Release()
		return nil
	}}, nil
}

func (p *Pool) Destroy() error {
	p.pool.Close()
	return nil
}

type result struct {
	tag pgconn.CommandTag
}

func (r result) LastInsertId() (int64, error) {
	return 0, ErrLastInsertID
}

func (r result) RowsAffected() (int64, error) {
	return r.tag.RowsAffected(), nil
}

func collect(ctx context.Context, q querier, query string, params []interface{}) ([]driver.Row, error) {
	rows, err := q.Query(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}
	out := make([]driver.Row, len(maps))
	for i, m := range maps {
		out[i] = m
	}
	return out, nil
}

func execute(ctx context.Context, q querier, query string, params []interface{}) (driver.Result, error) {
	tag, err := q.Exec(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	return result{tag: tag}, nil
}

func txOptions(isolation driver.Isolation) pgx.TxOptions {
	switch isolation {
	case driver.ReadUncommitted:
		return pgx.TxOptions{IsoLevel: pgx.ReadUncommitted}
	case driver.RepeatableRead:
		return pgx.TxOptions{IsoLevel: pgx.RepeatableRead}
	case driver.Serializable:
		return pgx.TxOptions{IsoLevel: pgx.Serializable}
	case driver.ReadCommittedReadOnly:
		return pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadOnly}
	default:
		return pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
	}
}
