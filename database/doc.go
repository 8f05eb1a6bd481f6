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

// Package database tracks the lifecycle of connections and transactions
// opened through a driver.Driver.
//
// A Connection owns one driver connection. A Transaction owns one driver
// transaction and reports its close to the Connection it was started on,
// which relays the event to its Observer. ConnectionPool is the Observer
// used for pooled connections: it keeps live sets of active transactions and
// connections, exposes counts and statistics, and can roll back everything
// still open.
//
//	pool, err := database.NewConnectionPool(ctx, drv, 5, opts)
//	conn, err := pool.GetConnection(ctx)
//	tx, err := conn.Transaction(ctx, driver.ReadCommitted)
//	rows, err := tx.QueryAutoCommit(ctx, "SELECT 1")
package database
