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

package driver

import (
	"context"
)

// Row is a single result row keyed by column name.
type Row = map[string]interface{}

// Result describes the outcome of a statement that does not return rows.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

// Executor runs statements against a connection or a transaction.
type Executor interface {
	Query(ctx context.Context, query string, params ...interface{}) ([]Row, error)
	Execute(ctx context.Context, query string, params ...interface{}) (Result, error)
}

// Conn is a live driver-level connection. Implementations must be comparable
// (pointer types) because the pool tracks them by identity.
type Conn interface {
	Executor
	// Begin starts a transaction with the requested isolation level.
	Begin(ctx context.Context, isolation Isolation) (Tx, error)
	// Detach releases the connection. For pooled connections this hands the
	// connection back to the driver pool.
	Detach() error
}

// Tx is a live driver-level transaction bound to one connection.
type Tx interface {
	Executor
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Pool is a bounded driver-level connection pool.
type Pool interface {
	// Get acquires one connection, blocking until a slot is free or ctx is done.
	Get(ctx context.Context) (Conn, error)
	// Destroy releases every resource held by the pool.
	Destroy() error
}

// Driver opens connections and pools for a database backend.
type Driver interface {
	Attach(ctx context.Context, opts *Options) (Conn, error)
	Create(ctx context.Context, opts *Options) (Conn, error)
	AttachOrCreate(ctx context.Context, opts *Options) (Conn, error)
	Pool(ctx context.Context, max int, opts *Options) (Pool, error)
}
