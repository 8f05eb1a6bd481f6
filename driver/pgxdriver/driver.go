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
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/last1971/dbkeeper/driver"
)

const (
	defaultHost   = "localhost"
	defaultPort   = 5432
	maintenanceDB = "postgres"
)

type Logger interface {
	Warn(msg string, fields ...interface{})
}

type Option func(*Driver)

func WithLogger(l Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// Driver opens pgx connections and pgxpool pools.
type Driver struct {
	logger Logger
}

var _ driver.Driver = (*Driver)(nil)

func New(opts ...Option) *Driver {
	d := &Driver{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var encodingPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func (d *Driver) Attach(ctx context.Context, opts *driver.Options) (driver.Conn, error) {
	o := opts.Clone()
	return d.attach(ctx, o, o.DBName)
}

// Create issues CREATE DATABASE from the maintenance database, then attaches.
func (d *Driver) Create(ctx context.Context, opts *driver.Options) (driver.Conn, error) {
	o := opts.Clone()
	stmt, err := createStatement(o)
	if err != nil {
		return nil, err
	}
	admin, err := d.attach(ctx, o, maintenanceDB)
	if err != nil {
		return nil, err
	}
	_, err = admin.Execute(ctx, stmt)
	if derr := admin.Detach(); derr != nil && d.logger != nil {
		d.logger.Warn("close maintenance connection failed", "error", derr)
	}
	if err != nil {
		return nil, err
	}
	return d.attach(ctx, o, o.DBName)
}

// AttachOrCreate falls back to Create on SQLSTATE 3D000.
func (d *Driver) AttachOrCreate(ctx context.Context, opts *driver.Options) (driver.Conn, error) {
	conn, err := d.Attach(ctx, opts)
	if err == nil {
		return conn, nil
	}
	if !driver.IsUnknownDatabase(err) {
		return nil, err
	}
	return d.Create(ctx, opts)
}

func (d *Driver) Pool(ctx context.Context, max int, opts *driver.Options) (driver.Pool, error) {
	o := opts.Clone()
	cfg, err := poolConfig(o, max)
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, o.Timeout())
	defer cancel()
	if err := p.Ping(pingCtx); err != nil {
		p.Close()
		return nil, err
	}
	return &Pool{pool: p}, nil
}

func (d *Driver) attach(ctx context.Context, o *driver.Options, dbName string) (*Conn, error) {
	cfg, err := connConfig(o, dbName)
	if err != nil {
		return nil, err
	}
	c, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Conn{q: c, close: func() error {
		closeCtx, cancel := context.WithTimeout(context.Background(), o.Timeout())
		defer cancel()
		return c.Close(closeCtx)
	}}, nil
}

func connConfig(o *driver.Options, dbName string) (*pgx.ConnConfig, error) {
	if o.Type != "" && o.Type != driver.TypePgx && o.Type != driver.TypePostgres {
		return nil, fmt.Errorf("pgxdriver: unsupported database type %q", o.Type)
	}
	cfg, err := pgx.ParseConfig(connString(o, dbName))
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	return cfg, nil
}

// connString renders o as a postgres:// URL. sslmode defaults to disable.
func connString(o *driver.Options, dbName string) string {
	host := o.Host
	if host == "" {
		host = defaultHost
	}
	port := o.Port
	if port <= 0 {
		port = defaultPort
	}
	sslMode := o.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	timeout := int(o.Timeout() / time.Second)
	if timeout < 1 {
		timeout = 1
	}

	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("connect_timeout", strconv.Itoa(timeout))
	if o.Charset != "" {
		q.Set("client_encoding", o.Charset)
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/" + dbName,
		RawQuery: q.Encode(),
	}
	if o.Username != "" {
		u.User = url.UserPassword(o.Username, o.Password)
	}
	return u.String()
}

func poolConfig(o *driver.Options, max int) (*pgxpool.Config, error) {
	if max <= 0 {
		return nil, errors.New("pool size must be positive")
	}
	cc, err := connConfig(o, o.DBName)
	if err != nil {
		return nil, err
	}
	cfg, err := pgxpool.ParseConfig("")
	if err != nil {
		return nil, fmt.Errorf("parse pgxpool config: %w", err)
	}
	cfg.ConnConfig = cc
	cfg.MaxConns = int32(max)
	if o.ConnMaxLifetime > 0 {
		cfg.MaxConnLifetime = o.ConnMaxLifetime
	}
	if o.ConnMaxIdleTime > 0 {
		cfg.MaxConnIdleTime = o.ConnMaxIdleTime
	}
	return cfg, nil
}

func createStatement(o *driver.Options) (string, error) {
	if o.DBName == "" {
		return "", errors.New("database name is required")
	}
	stmt := "CREATE DATABASE " + pgx.Identifier{o.DBName}.Sanitize()
	if o.Template != "" {
		stmt += " TEMPLATE " + pgx.Identifier{o.Template}.Sanitize()
	}
	if o.Charset != "" {
		if !encodingPattern.MatchString(o.Charset) {
			return "", fmt.Errorf("invalid encoding %q", o.Charset)
		}
		stmt += " ENCODING '" + o.Charset + "'"
	}
	return stmt, nil
}
