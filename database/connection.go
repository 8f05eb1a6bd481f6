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
	"sync"

	"github.com/last1971/dbkeeper/driver"
)

type ConnectionOption func(*Connection)

// WithObserver reports transaction and detach events to o.
func WithObserver(o Observer) ConnectionOption {
	return func(c *Connection) { c.observer = o }
}

func WithConnectionLogger(l Logger) ConnectionOption {
	return func(c *Connection) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHandle adopts an already attached driver connection.
func WithHandle(h driver.Conn) ConnectionOption {
	return func(c *Connection) { c.handle = h }
}

// Connection owns at most one driver connection at a time.
type Connection struct {
	mu       sync.Mutex
	driver   driver.Driver
	handle   driver.Conn
	observer Observer
	logger   Logger
}

func NewConnection(drv driver.Driver, opts ...ConnectionOption) *Connection {
	c := &Connection{
		driver: drv,
		logger: GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BuildAndAttach creates a Connection and attaches it in one step.
func BuildAndAttach(ctx context.Context, drv driver.Driver, opts *driver.Options, copts ...ConnectionOption) (*Connection, error) {
	c := NewConnection(drv, copts...)
	if err := c.Attach(ctx, opts); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Connection) Attach(ctx context.Context, opts *driver.Options) error {
	return c.open("attach", opts, func(d driver.Driver) (driver.Conn, error) {
		return d.Attach(ctx, opts)
	})
}

func (c *Connection) Create(ctx context.Context, opts *driver.Options) error {
	return c.open("create", opts, func(d driver.Driver) (driver.Conn, error) {
		return d.Create(ctx, opts)
	})
}

func (c *Connection) AttachOrCreate(ctx context.Context, opts *driver.Options) error {
	return c.open("attach or create", opts, func(d driver.Driver) (driver.Conn, error) {
		return d.AttachOrCreate(ctx, opts)
	})
}

func (c *Connection) open(op string, opts *driver.Options, fn func(driver.Driver) (driver.Conn, error)) error {
	if c.driver == nil {
		return ErrNoDriver
	}
	h, err := fn(c.driver)
	if err != nil {
		c.logger.Error("database "+op+" failed", "type", opts.Clone().Type, "error", err, "code", driver.ErrorCode(err))
		return err
	}
	c.mu.Lock()
	c.handle = h
	c.mu.Unlock()
	return nil
}

// Handle returns the attached driver connection, or nil.
func (c *Connection) Handle() driver.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}

func (c *Connection) IsAttached() bool {
	return c.Handle() != nil
}

func (c *Connection) Query(ctx context.Context, query string, params ...interface{}) ([]driver.Row, error) {
	h := c.Handle()
	if h == nil {
		return nil, ErrNoConnection
	}
	return h.Query(ctx, query, params...)
}

func (c *Connection) Execute(ctx context.Context, query string, params ...interface{}) (driver.Result, error) {
	h := c.Handle()
	if h == nil {
		return nil, ErrNoConnection
	}
	return h.Execute(ctx, query, params...)
}

// QueryDetach runs query and detaches once it has succeeded.
func (c *Connection) QueryDetach(ctx context.Context, query string, params ...interface{}) ([]driver.Row, error) {
	rows, err := c.Query(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	if err := c.Detach(); err != nil {
		return nil, err
	}
	return rows, nil
}

// ExecuteDetach runs query and detaches once it has succeeded.
func (c *Connection) ExecuteDetach(ctx context.Context, query string, params ...interface{}) (driver.Result, error) {
	res, err := c.Execute(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	if err := c.Detach(); err != nil {
		return nil, err
	}
	return res, nil
}

// Detach releases the driver connection and tells the observer about it.
// The handle is dropped and the observer notified even when the driver
// reports an error.
func (c *Connection) Detach() error {
	c.mu.Lock()
	h := c.handle
	c.handle = nil
	obs := c.observer
	c.mu.Unlock()
	if h == nil {
		return ErrNoConnection
	}

	err := h.Detach()
	if err != nil {
		c.logger.Warn("database detach failed", "error", err, "code", driver.ErrorCode(err))
	}
	if obs != nil {
		obs.OnConnectionDetached(h)
	}
	return err
}

// Transaction begins a transaction owned by this connection.
func (c *Connection) Transaction(ctx context.Context, isolation driver.Isolation) (*Transaction, error) {
	h := c.Handle()
	if h == nil {
		return nil, ErrNoConnection
	}
	tx := NewTransaction(c, isolation, WithTransactionLogger(c.logger))
	if err := tx.Init(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	obs := c.observer
	c.mu.Unlock()
	if obs != nil {
		obs.OnTransactionCreated(h, tx)
	}
	c.logger.Debug("transaction started", "tx", tx.ID(), "isolation", isolation.Name())
	return tx, nil
}

// OnTransactionClose relays a transaction close to the observer.
func (c *Connection) OnTransactionClose(tx *Transaction) {
	c.mu.Lock()
	h, obs := c.handle, c.observer
	c.mu.Unlock()
	if obs != nil {
		obs.OnTransactionClosed(h, tx)
	}
}
