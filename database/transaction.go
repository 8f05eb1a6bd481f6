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
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/last1971/dbkeeper/driver"
	"github.com/last1971/dbkeeper/types"
)

// State is the lifecycle position of a Transaction.
type State int

const (
	StateConstructed State = iota
	StateActive
	StateCommitted
	StateRolledBack
)

var _ types.BaseEnum = StateConstructed

var stateNames = map[State]string{
	StateConstructed: "constructed",
	StateActive:      "active",
	StateCommitted:   "committed",
	StateRolledBack:  "rolled_back",
}

var stateDescs = map[State]string{
	StateConstructed: "created, begin not yet issued",
	StateActive:      "begun and accepting statements",
	StateCommitted:   "closed by commit",
	StateRolledBack:  "closed by rollback",
}

func (s State) IsValid() bool {
	_, ok := stateNames[s]
	return ok
}

func (s State) Number() int { return int(s) }

func (s State) String() string { return s.Name() }

func (s State) Name() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return types.IllegalName
}

func (s State) Desc() string {
	if d, ok := stateDescs[s]; ok {
		return d
	}
	return types.IllegalDesc
}

// Closed reports whether the state is terminal.
func (s State) Closed() bool {
	return s == StateCommitted || s == StateRolledBack
}

type ownerMode int

const (
	ownerNone ownerMode = iota
	ownerConnection
	ownerHandle
)

type TransactionOption func(*Transaction)

// WithTransactionLogger overrides the logger used for auto-commit failures.
func WithTransactionLogger(l Logger) TransactionOption {
	return func(t *Transaction) {
		if l != nil {
			t.logger = l
		}
	}
}

// Transaction wraps one driver transaction. The ownership mode is fixed at
// construction and decides where close events and detach calls go.
type Transaction struct {
	mu        sync.Mutex
	id        string
	isolation driver.Isolation
	mode      ownerMode
	owner     TransactionOwner
	handle    driver.Conn
	tx        driver.Tx
	state     State
	starting  bool
	logger    Logger
}

// NewTransaction builds a transaction whose events and detach go through owner.
func NewTransaction(owner TransactionOwner, isolation driver.Isolation, opts ...TransactionOption) *Transaction {
	t := newTransaction(isolation, opts)
	t.mode = ownerConnection
	t.owner = owner
	return t
}

// NewStandaloneTransaction builds a transaction bound directly to a driver
// connection. No observer is notified and Detach releases handle itself.
func NewStandaloneTransaction(handle driver.Conn, isolation driver.Isolation, opts ...TransactionOption) *Transaction {
	t := newTransaction(isolation, opts)
	t.mode = ownerHandle
	t.handle = handle
	return t
}

// WrapTransaction adopts a driver transaction that has already begun.
func WrapTransaction(tx driver.Tx, isolation driver.Isolation, opts ...TransactionOption) *Transaction {
	t := newTransaction(isolation, opts)
	t.tx = tx
	t.state = StateActive
	return t
}

func newTransaction(isolation driver.Isolation, opts []TransactionOption) *Transaction {
	t := &Transaction{
		id:        uuid.NewString(),
		isolation: isolation,
		state:     StateConstructed,
		logger:    GetLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transaction) ID() string { return t.id }

func (t *Transaction) Isolation() driver.Isolation { return t.isolation }

func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transaction) IsActive() bool {
	return t.State() == StateActive
}

// Init begins the driver transaction. It must be called exactly once before
// any statement.
func (t *Transaction) Init(ctx context.Context) error {
	t.mu.Lock()
	if t.state != StateConstructed || t.starting {
		t.mu.Unlock()
		return ErrTransactionStarted
	}
	var conn driver.Conn
	switch t.mode {
	case ownerConnection:
		if t.owner != nil {
			conn = t.owner.Handle()
		}
	case ownerHandle:
		conn = t.handle
	}
	if conn == nil {
		t.mu.Unlock()
		return ErrNoConnection
	}
	t.starting = true
	t.mu.Unlock()

	tx, err := conn.Begin(ctx, t.isolation)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.starting = false
	if err != nil {
		return err
	}
	t.tx = tx
	t.state = StateActive
	return nil
}

func (t *Transaction) Query(ctx context.Context, query string, params ...interface{}) ([]driver.Row, error) {
	tx, err := t.current()
	if err != nil {
		return nil, err
	}
	return tx.Query(ctx, query, params...)
}

func (t *Transaction) Execute(ctx context.Context, query string, params ...interface{}) (driver.Result, error) {
	tx, err := t.current()
	if err != nil {
		return nil, err
	}
	return tx.Execute(ctx, query, params...)
}

// QueryAutoCommit runs query and closes the transaction: commit and detach on
// success, rollback and detach on failure. The statement error is returned
// even when the rollback also fails.
func (t *Transaction) QueryAutoCommit(ctx context.Context, query string, params ...interface{}) ([]driver.Row, error) {
	rows, err := t.Query(ctx, query, params...)
	if err != nil {
		t.abort(ctx, err)
		return nil, err
	}
	if err := t.finish(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

// ExecuteAutoCommit is the Execute counterpart of QueryAutoCommit.
func (t *Transaction) ExecuteAutoCommit(ctx context.Context, query string, params ...interface{}) (driver.Result, error) {
	res, err := t.Execute(ctx, query, params...)
	if err != nil {
		t.abort(ctx, err)
		return nil, err
	}
	if err := t.finish(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

func (t *Transaction) Commit(ctx context.Context) error {
	_, err := t.end(ctx, true, false)
	return err
}

func (t *Transaction) Rollback(ctx context.Context) error {
	_, err := t.end(ctx, false, false)
	return err
}

// CommitDetach commits and then detaches the underlying connection.
func (t *Transaction) CommitDetach(ctx context.Context) error {
	_, err := t.end(ctx, true, true)
	return err
}

// RollbackDetach rolls back and then detaches the underlying connection.
func (t *Transaction) RollbackDetach(ctx context.Context) error {
	_, err := t.end(ctx, false, true)
	return err
}

// Detach releases the connection this transaction runs on.
func (t *Transaction) Detach() error {
	switch t.mode {
	case ownerConnection:
		if t.owner == nil {
			return ErrNoConnection
		}
		return t.owner.Detach()
	case ownerHandle:
		if t.handle == nil {
			return ErrNoConnection
		}
		return t.handle.Detach()
	default:
		return ErrNoConnection
	}
}

func (t *Transaction) current() (driver.Tx, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.state == StateConstructed || t.tx == nil:
		return nil, ErrTransactionNull
	case t.state.Closed():
		return nil, ErrTransactionClosed
	}
	return t.tx, nil
}

// end closes the transaction. closed reports whether the driver commit or
// rollback succeeded, so callers can tell it apart from a detach failure.
func (t *Transaction) end(ctx context.Context, commit, detach bool) (closed bool, err error) {
	tx, err := t.current()
	if err != nil {
		return false, err
	}
	if commit {
		err = tx.Commit(ctx)
	} else {
		err = tx.Rollback(ctx)
	}
	if err != nil {
		return false, err
	}

	t.mu.Lock()
	first := t.state == StateActive
	if first {
		if commit {
			t.state = StateCommitted
		} else {
			t.state = StateRolledBack
		}
	}
	t.mu.Unlock()

	if first && t.mode == ownerConnection && t.owner != nil {
		t.owner.OnTransactionClose(t)
	}
	if detach {
		return true, t.Detach()
	}
	return true, nil
}

func (t *Transaction) finish(ctx context.Context) error {
	closed, err := t.end(ctx, true, true)
	if err != nil && !closed {
		t.abort(ctx, err)
	}
	return err
}

// abort rolls back and detaches after a failed auto-commit step. Failures
// here are logged, never returned.
func (t *Transaction) abort(ctx context.Context, cause error) {
	if errors.Is(cause, ErrTransactionNull) || errors.Is(cause, ErrTransactionClosed) {
		return
	}
	if _, err := t.end(ctx, false, true); err != nil {
		t.logger.Warn("rollback after failed statement", "tx", t.id, "cause", cause, "error", err, "code", driver.ErrorCode(err))
	}
}
