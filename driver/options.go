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
	"time"
)

// Supported values for Options.Type.
const (
	TypeMySQL    = "mysql"
	TypePostgres = "postgres"
	TypeSQLite   = "sqlite"
	TypePgx      = "pgx"
)

// Options describes how a backend reaches a database. The database package
// never interprets these values; they are handed to the driver as-is.
type Options struct {
	Type            string        `json:"type" yaml:"type" envconfig:"DB_TYPE"` // mysql、postgres、sqlite、pgx
	Host            string        `json:"host" yaml:"host" envconfig:"DB_HOST"`
	Port            int           `json:"port" yaml:"port" envconfig:"DB_PORT"`
	Username        string        `json:"username" yaml:"username" envconfig:"DB_USERNAME"`
	Password        string        `json:"password" yaml:"password" envconfig:"DB_PASSWORD"`
	DBName          string        `json:"dbname" yaml:"dbname" envconfig:"DB_NAME"` // database name, or file path for sqlite
	SSLMode         string        `json:"sslmode" yaml:"sslmode" envconfig:"DB_SSLMODE"`
	Charset         string        `json:"charset" yaml:"charset" envconfig:"DB_CHARSET"` // MySQL:utf8mb4  、Postgres:UTF8
	Template        string        `json:"template" yaml:"template" envconfig:"DB_TEMPLATE"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns" envconfig:"DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime" envconfig:"DB_CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" yaml:"conn_max_idle_time" envconfig:"DB_CONN_MAX_IDLE_TIME"`
	ConnectTimeout  time.Duration `json:"connect_timeout" yaml:"connect_timeout" envconfig:"DB_CONNECT_TIMEOUT"`
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout" envconfig:"DB_READ_TIMEOUT"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout" envconfig:"DB_WRITE_TIMEOUT"`
	EnableQueryLog  bool          `json:"enable_query_log" yaml:"enable_query_log" envconfig:"DB_ENABLE_QUERY_LOG"`
	SlowQueryTime   time.Duration `json:"slow_query_time" yaml:"slow_query_time" envconfig:"DB_SLOW_QUERY_TIME"`
}

// DefaultOptions returns options with sensible defaults for timeouts and
// connection recycling. Type and addressing fields are left empty.
func DefaultOptions() *Options {
	return &Options{
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: time.Minute * 30,
		ConnectTimeout:  time.Second * 10,
		ReadTimeout:     time.Second * 30,
		WriteTimeout:    time.Second * 30,
		SlowQueryTime:   time.Second * 2,
	}
}

// Clone returns a shallow copy so callers can derive options without
// mutating the original.
func (o *Options) Clone() *Options {
	if o == nil {
		return DefaultOptions()
	}
	c := *o
	return &c
}

// Timeout returns ConnectTimeout, falling back to 30s when unset.
func (o *Options) Timeout() time.Duration {
	if o == nil || o.ConnectTimeout <= 0 {
		return 30 * time.Second
	}
	return o.ConnectTimeout
}
