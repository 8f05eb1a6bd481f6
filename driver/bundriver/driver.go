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
	"fmt"
	"os"
	"regexp"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/schema"

	"github.com/last1971/dbkeeper/driver"
)

// Logger is the subset of a structured logger the backend reports through.
type Logger interface {
	Warn(msg string, fields ...interface{})
}

type Option func(*Driver)

func WithLogger(l Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// Driver opens Bun-backed connections and pools.
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

var charsetPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Attach opens a dedicated single-connection handle to an existing database.
func (d *Driver) Attach(ctx context.Context, opts *driver.Options) (driver.Conn, error) {
	o := opts.Clone()
	if isSQLite(o) {
		if _, err := os.Stat(o.DBName); err != nil {
			return nil, fmt.Errorf("sqlite database %q: %w", o.DBName, err)
		}
	}
	return d.attach(ctx, o, o.DBName)
}

// Create creates the database and attaches to it.
func (d *Driver) Create(ctx context.Context, opts *driver.Options) (driver.Conn, error) {
	o := opts.Clone()
	if o.DBName == "" {
		return nil, errors.New("database name is required")
	}
	if o.Charset != "" && !charsetPattern.MatchString(o.Charset) {
		return nil, fmt.Errorf("invalid charset %q", o.Charset)
	}

	switch strings.ToLower(o.Type) {
	case driver.TypeSQLite:
		if _, err := os.Stat(o.DBName); err == nil {
			return nil, fmt.Errorf("sqlite database %q: %w", o.DBName, os.ErrExist)
		}
		return d.attach(ctx, o, o.DBName)
	case driver.TypeMySQL:
		if err := d.createDatabase(ctx, o, "", mysqlCreateStatement(o)); err != nil {
			return nil, err
		}
	case driver.TypePostgres:
		if err := d.createDatabase(ctx, o, "postgres", postgresCreateStatement(o)); err != nil {
			return nil, err
		}
	default:
		return nil, unsupported(o)
	}
	return d.attach(ctx, o, o.DBName)
}

// AttachOrCreate attaches, creating the database first when it is missing.
func (d *Driver) AttachOrCreate(ctx context.Context, opts *driver.Options) (driver.Conn, error) {
	o := opts.Clone()
	if isSQLite(o) {
		return d.attach(ctx, o, o.DBName)
	}
	conn, err := d.attach(ctx, o, o.DBName)
	if err == nil {
		return conn, nil
	}
	if !driver.IsUnknownDatabase(err) {
		return nil, err
	}
	return d.Create(ctx, o)
}

// Pool opens a database/sql pool capped at max open connections.
func (d *Driver) Pool(ctx context.Context, max int, opts *driver.Options) (driver.Pool, error) {
	o := opts.Clone()
	db, err := d.openDB(o, o.DBName)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(max)
	idle := o.MaxIdleConns
	if idle > max {
		idle = max
	}
	db.SetMaxIdleConns(idle)
	db.SetConnMaxLifetime(o.ConnMaxLifetime)
	db.SetConnMaxIdleTime(o.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, o.Timeout())
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Pool{db: db}, nil
}

func (d *Driver) attach(ctx context.Context, o *driver.Options, dbName string) (*Conn, error) {
	db, err := d.openDB(o, dbName)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, o.Timeout())
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	c, err := db.Conn(pingCtx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Conn{db: db, conn: c, owned: true}, nil
}

func (d *Driver) createDatabase(ctx context.Context, o *driver.Options, adminDB string, stmt schema.QueryWithArgs) error {
	admin, err := d.attach(ctx, o, adminDB)
	if err != nil {
		return err
	}
	defer func() {
		if derr := admin.Detach(); derr != nil && d.logger != nil {
			d.logger.Warn("close admin connection failed", "error", derr)
		}
	}()
	_, err = admin.conn.NewRaw(stmt.Query, stmt.Args...).Exec(ctx)
	return err
}

func mysqlCreateStatement(o *driver.Options) schema.QueryWithArgs {
	q := "CREATE DATABASE ?"
	if o.Charset != "" {
		q += " CHARACTER SET " + o.Charset
	}
	return bun.SafeQuery(q, bun.Ident(o.DBName))
}

func postgresCreateStatement(o *driver.Options) schema.QueryWithArgs {
	q := "CREATE DATABASE ?"
	args := []interface{}{bun.Ident(o.DBName)}
	if o.Template != "" {
		q += " TEMPLATE ?"
		args = append(args, bun.Ident(o.Template))
	}
	if o.Charset != "" {
		q += " ENCODING ?"
		args = append(args, o.Charset)
	}
	return bun.SafeQuery(q, args...)
}

func (d *Driver) openDB(o *driver.Options, dbName string) (*bun.DB, error) {
	var (
		sqlDB   *sql.DB
		dialect schema.Dialect
		err     error
	)
	switch strings.ToLower(o.Type) {
	case driver.TypeMySQL:
		sqlDB, err = sql.Open("mysql", mysqlDSN(o, dbName))
		dialect = mysqldialect.New()
	case driver.TypePostgres:
		sqlDB, err = sql.Open("postgres", postgresDSN(o, dbName))
		dialect = pgdialect.New()
	case driver.TypeSQLite:
		sqlDB, err = sql.Open(sqliteshim.ShimName, dbName)
		dialect = sqlitedialect.New()
	default:
		return nil, unsupported(o)
	}
	if err != nil {
		return nil, err
	}

	db := bun.NewDB(sqlDB, dialect)
	d.addHooks(db, o)
	return db, nil
}

func (d *Driver) addHooks(db *bun.DB, o *driver.Options) {
	if o.EnableQueryLog {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	}
	if o.SlowQueryTime > 0 && d.logger != nil {
		db.AddQueryHook(NewSlowQueryHook(o.SlowQueryTime, d.logger))
	}
}

func isSQLite(o *driver.Options) bool {
	return strings.EqualFold(o.Type, driver.TypeSQLite)
}

func unsupported(o *driver.Options) error {
	return fmt.Errorf("bundriver: unsupported database type %q", o.Type)
}
