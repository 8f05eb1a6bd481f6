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

package database

import (
	"context"
	"sort"
	"sync"

	"github.com/last1971/dbkeeper/driver"
)

// PoolStats is a point-in-time view of a ConnectionPool.
type PoolStats struct {
	MaxConnections       int
	ActiveConnections    int
	AvailableConnections int
	ActiveTransactions   int

	TransactionsCreated    uint64
	TransactionsCommitted  uint64
	TransactionsRolledBack uint64
	ConnectionsDetached    uint64
}

type PoolOption func(*ConnectionPool)

func WithPoolLogger(l Logger) PoolOption {
	return func(p *ConnectionPool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithDefaultIsolation sets the level Begin uses.
func WithDefaultIsolation(iso driver.Isolation) PoolOption {
	return func(p *ConnectionPool) { p.isolation = iso }
}

// ConnectionPool hands out pooled connections and tracks which connections
// and transactions are live. Tracking is driven by observer events: a
// connection counts as active from its first transaction until it detaches.
type ConnectionPool struct {
	mu           sync.RWMutex
	max          int
	isolation    driver.Isolation
	pool         driver.Pool
	transactions map[*Transaction]uint64
	connections  map[driver.Conn]struct{}
	seq          uint64
	committed    uint64
	rolledBack   uint64
	detached     uint64
	logger       Logger
}

var _ Observer = (*ConnectionPool)(nil)

// NewConnectionPool opens a driver pool bounded by max and wraps it.
func NewConnectionPool(ctx context.Context, drv driver.Driver, max int, opts *driver.Options, popts ...PoolOption) (*ConnectionPool, error) {
	if max <= 0 {
		return nil, ErrInvalidMaxConnections
	}
	if drv == nil {
		return nil, ErrNoDriver
	}
	handle, err := drv.Pool(ctx, max, opts)
	if err != nil {
		GetLogger().Error("create connection pool failed", "max", max, "error", err, "code", driver.ErrorCode(err))
		return nil, err
	}
	return NewConnectionPoolFromHandle(handle, max, popts...)
}

// NewConnectionPoolFromHandle wraps an existing driver pool.
func NewConnectionPoolFromHandle(handle driver.Pool, max int, popts ...PoolOption) (*ConnectionPool, error) {
	if max <= 0 {
		return nil, ErrInvalidMaxConnections
	}
	if handle == nil {
		return nil, ErrNoDriver
	}
	p := &ConnectionPool{
		max:          max,
		pool:         handle,
		transactions: make(map[*Transaction]uint64),
		connections:  make(map[driver.Conn]struct{}),
		logger:       GetLogger(),
	}
	for _, opt := range popts {
		opt(p)
	}
	return p, nil
}

// GetConnection acquires a driver connection and wraps it in a Connection
// observed by this pool. It may block until the driver pool has a free slot.
func (p *ConnectionPool) GetConnection(ctx context.Context) (*Connection, error) {
	h, err := p.pool.Get(ctx)
	if err != nil {
		p.logger.Error("acquire pooled connection failed", "error", err, "code", driver.ErrorCode(err))
		return nil, err
	}
	return NewConnection(nil, WithHandle(h), WithObserver(p), WithConnectionLogger(p.logger)), nil
}

// GetTransaction acquires a connection and begins a transaction on it.
func (p *ConnectionPool) GetTransaction(ctx context.Context, isolation driver.Isolation) (*Transaction, error) {
	conn, err := p.GetConnection(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := conn.Transaction(ctx, isolation)
	if err != nil {
		if derr := conn.Detach(); derr != nil {
			p.logger.Warn("release connection after failed begin", "error", derr)
		}
		return nil, err
	}
	return tx, nil
}

// Begin is GetTransaction at the pool's default isolation level.
func (p *ConnectionPool) Begin(ctx context.Context) (*Transaction, error) {
	return p.GetTransaction(ctx, p.isolation)
}

func (p *ConnectionPool) DefaultIsolation() driver.Isolation {
	return p.isolation
}

func (p *ConnectionPool) OnTransactionCreated(handle driver.Conn, tx *Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	p.transactions[tx] = p.seq
	if handle != nil {
		p.connections[handle] = struct{}{}
	}
}

func (p *ConnectionPool) OnTransactionClosed(_ driver.Conn, tx *Transaction) {
	state := tx.State()
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.transactions[tx]; !ok {
		return
	}
	delete(p.transactions, tx)
	switch state {
	case StateCommitted:
		p.committed++
	case StateRolledBack:
		p.rolledBack++
	}
}

func (p *ConnectionPool) OnConnectionDetached(handle driver.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.connections, handle)
	p.detached++
}

func (p *ConnectionPool) GetActiveTransactionsCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.transactions)
}

// GetActiveTransactions returns the live transactions in creation order.
func (p *ConnectionPool) GetActiveTransactions() []*Transaction {
	type entry struct {
		tx  *Transaction
		seq uint64
	}
	p.mu.RLock()
	entries := make([]entry, 0, len(p.transactions))
	for tx, seq := range p.transactions {
		entries = append(entries, entry{tx, seq})
	}
	p.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]*Transaction, len(entries))
	for i, e := range entries {
		out[i] = e.tx
	}
	return out
}

func (p *ConnectionPool) GetActiveConnectionsCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.connections)
}

func (p *ConnectionPool) GetMaxConnections() int {
	return p.max
}

// GetAvailableConnectionsCount is max minus the connections currently
// tracked as active.
func (p *ConnectionPool) GetAvailableConnectionsCount() int {
	return p.max - p.GetActiveConnectionsCount()
}

func (p *ConnectionPool) GetStats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return PoolStats{
		MaxConnections:         p.max,
		ActiveConnections:      len(p.connections),
		AvailableConnections:   p.max - len(p.connections),
		ActiveTransactions:     len(p.transactions),
		TransactionsCreated:    p.seq,
		TransactionsCommitted:  p.committed,
		TransactionsRolledBack: p.rolledBack,
		ConnectionsDetached:    p.detached,
	}
}

// RollbackAllTransactions rolls back every live transaction. Every rollback
// is attempted; failures are collected into a *RollbackError and the failed
// transactions stay active.
func (p *ConnectionPool) RollbackAllTransactions(ctx context.Context) error {
	snapshot := p.GetActiveTransactions()
	var errs []error
	for _, tx := range snapshot {
		if err := tx.Rollback(ctx); err != nil {
			p.logger.Warn("rollback failed", "tx", tx.ID(), "error", err, "code", driver.ErrorCode(err))
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &RollbackError{Errors: errs}
}

// Destroy releases the driver pool. Tracked transactions and connections
// are left as they are.
func (p *ConnectionPool) Destroy() error {
	if p.pool == nil {
		return nil
	}
	return p.pool.Destroy()
}
