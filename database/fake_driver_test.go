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

type fakeResult struct {
	affected int64
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.affected, nil }

type fakeTx struct {
	mu          sync.Mutex
	conn        *fakeConn
	isolation   driver.Isolation
	queries     int
	executes    int
	commits     int
	rollbacks   int
	queryErr    error
	execErr     error
	commitErr   error
	rollbackErr error
}

func (t *fakeTx) Query(_ context.Context, _ string, _ ...interface{}) ([]driver.Row, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queries++
	if t.queryErr != nil {
		return nil, t.queryErr
	}
	return []driver.Row{{"id": int64(1)}}, nil
}

func (t *fakeTx) Execute(_ context.Context, _ string, _ ...interface{}) (driver.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.executes++
	if t.execErr != nil {
		return nil, t.execErr
	}
	return fakeResult{affected: 1}, nil
}

func (t *fakeTx) Commit(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.commits++
	return t.commitErr
}

func (t *fakeTx) Rollback(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollbacks++
	return t.rollbackErr
}

func (t *fakeTx) counts() (commits, rollbacks int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.commits, t.rollbacks
}

// fakeConn records every call. The *Err fields of the transactions it begins
// are copied from txTemplate.
type fakeConn struct {
	mu         sync.Mutex
	queries    int
	executes   int
	begins     int
	detaches   int
	queryErr   error
	beginErr   error
	detachErr  error
	txTemplate fakeTx
	txs        []*fakeTx
}

func (c *fakeConn) Query(_ context.Context, _ string, _ ...interface{}) ([]driver.Row, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries++
	if c.queryErr != nil {
		return nil, c.queryErr
	}
	return []driver.Row{{"one": int64(1)}}, nil
}

func (c *fakeConn) Execute(_ context.Context, _ string, _ ...interface{}) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.executes++
	return fakeResult{affected: 2}, nil
}

func (c *fakeConn) Begin(_ context.Context, isolation driver.Isolation) (driver.Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.begins++
	if c.beginErr != nil {
		return nil, c.beginErr
	}
	tx := &fakeTx{
		conn:        c,
		isolation:   isolation,
		queryErr:    c.txTemplate.queryErr,
		execErr:     c.txTemplate.execErr,
		commitErr:   c.txTemplate.commitErr,
		rollbackErr: c.txTemplate.rollbackErr,
	}
	c.txs = append(c.txs, tx)
	return tx, nil
}

func (c *fakeConn) Detach() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detaches++
	return c.detachErr
}

func (c *fakeConn) lastTx() *fakeTx {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.txs) == 0 {
		return nil
	}
	return c.txs[len(c.txs)-1]
}

func (c *fakeConn) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queries + c.executes + c.begins + c.detaches
}

func (c *fakeConn) detachCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detaches
}

type fakePool struct {
	mu       sync.Mutex
	newConn  func() *fakeConn
	conns    []*fakeConn
	getErr   error
	destroys int
}

func (p *fakePool) Get(context.Context) (driver.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.getErr != nil {
		return nil, p.getErr
	}
	c := &fakeConn{}
	if p.newConn != nil {
		c = p.newConn()
	}
	p.conns = append(p.conns, c)
	return c, nil
}

func (p *fakePool) Destroy() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.destroys++
	return nil
}

type fakeDriver struct {
	mu             sync.Mutex
	conn           *fakeConn
	err            error
	pool           *fakePool
	attaches       int
	creates        int
	attachOrCreate int
	pools          int
	poolMax        int
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{conn: &fakeConn{}, pool: &fakePool{}}
}

func (d *fakeDriver) open(counter *int) (driver.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	*counter++
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

func (d *fakeDriver) Attach(context.Context, *driver.Options) (driver.Conn, error) {
	return d.open(&d.attaches)
}

func (d *fakeDriver) Create(context.Context, *driver.Options) (driver.Conn, error) {
	return d.open(&d.creates)
}

func (d *fakeDriver) AttachOrCreate(context.Context, *driver.Options) (driver.Conn, error) {
	return d.open(&d.attachOrCreate)
}

func (d *fakeDriver) Pool(_ context.Context, max int, _ *driver.Options) (driver.Pool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pools++
	d.poolMax = max
	if d.err != nil {
		return nil, d.err
	}
	return d.pool, nil
}

type event struct {
	kind   string
	handle driver.Conn
	tx     *Transaction
}

type recordingObserver struct {
	mu     sync.Mutex
	events []event
}

func (o *recordingObserver) OnTransactionCreated(h driver.Conn, tx *Transaction) {
	o.record(event{"created", h, tx})
}

func (o *recordingObserver) OnTransactionClosed(h driver.Conn, tx *Transaction) {
	o.record(event{"closed", h, tx})
}

func (o *recordingObserver) OnConnectionDetached(h driver.Conn) {
	o.record(event{"detached", h, nil})
}

func (o *recordingObserver) record(e event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
}

func (o *recordingObserver) kinds() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.events))
	for i, e := range o.events {
		out[i] = e.kind
	}
	return out
}
