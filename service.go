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

// Package dbkeeper wires configuration, the driver backends and the
// connection pool together for applications that want one process-wide pool.
package dbkeeper

import (
	"context"
	"errors"

	"github.com/last1971/dbkeeper/database"
	"github.com/last1971/dbkeeper/driver"
)

var ErrNotInitialized = errors.New("database pool is not initialized")

// TxFunc is the body of a managed transaction. It must not commit, roll back
// or detach tx itself.
type TxFunc func(ctx context.Context, tx *database.Transaction) error

// Open loads the configuration at path, applies DB_* environment overrides
// and installs the process-wide pool.
func Open(ctx context.Context, path string) (*database.ConnectionPool, error) {
	cfg, err := database.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return database.InitPool(ctx, cfg)
}

// Close rolls back leftovers and destroys the process-wide pool.
func Close(ctx context.Context) error {
	return database.ClosePool(ctx)
}

// Run runs fn in a transaction taken from the process-wide pool at the
// configured default isolation level.
func Run(ctx context.Context, fn TxFunc) error {
	pool := database.GetPool()
	if pool == nil {
		return ErrNotInitialized
	}
	return RunInPool(ctx, pool, pool.DefaultIsolation(), fn)
}

// RunInTransaction runs fn in a transaction taken from the process-wide pool.
func RunInTransaction(ctx context.Context, isolation driver.Isolation, fn TxFunc) error {
	return RunInPool(ctx, database.GetPool(), isolation, fn)
}

// RunInPool runs fn in a transaction taken from pool. The transaction commits
// when fn returns nil and rolls back otherwise, including on panic; the
// connection is detached in every case, also when fn closed tx itself.
func RunInPool(ctx context.Context, pool *database.ConnectionPool, isolation driver.Isolation, fn TxFunc) error {
	if pool == nil {
		return ErrNotInitialized
	}
	tx, err := pool.GetTransaction(ctx, isolation)
	if err != nil {
		return err
	}

	finished := false
	defer func() {
		if !finished {
			release(ctx, tx, nil)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		finished = true
		release(ctx, tx, err)
		return err
	}
	finished = true
	if !tx.IsActive() {
		release(ctx, tx, nil)
		return nil
	}
	if err := tx.CommitDetach(ctx); err != nil {
		if tx.IsActive() {
			release(ctx, tx, err)
		}
		return err
	}
	return nil
}

// release rolls back an active tx and detaches its connection. A tx that fn
// already closed is only detached.
func release(ctx context.Context, tx *database.Transaction, cause error) {
	if !tx.IsActive() {
		if err := tx.Detach(); err != nil && !errors.Is(err, database.ErrNoConnection) {
			database.GetLogger().Warn("managed transaction detach failed", "tx", tx.ID(), "cause", cause, "error", err)
		}
		return
	}
	if err := tx.RollbackDetach(ctx); err != nil {
		database.GetLogger().Warn("managed transaction rollback failed", "tx", tx.ID(), "cause", cause, "error", err)
	}
}
