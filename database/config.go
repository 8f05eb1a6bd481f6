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
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/last1971/dbkeeper/driver"
	"github.com/last1971/dbkeeper/driver/bundriver"
	"github.com/last1971/dbkeeper/driver/pgxdriver"
	"github.com/last1971/dbkeeper/utils"
)

// Config is the on-disk configuration of a pool.
type Config struct {
	Connection driver.Options `json:"connection" yaml:"connection"`
	Pool       PoolConfig     `json:"pool" yaml:"pool"`
	Log        LogConfig      `json:"log" yaml:"log"`
}

type PoolConfig struct {
	MaxConnections int    `json:"max_connections" yaml:"max_connections" envconfig:"DB_POOL_MAX"`
	Isolation      string `json:"isolation" yaml:"isolation" envconfig:"DB_ISOLATION"` // read_committed by default
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level" envconfig:"LOG_LEVEL"`
	Format string `json:"format" yaml:"format" envconfig:"CONSOLE_LOG_FORMAT"` // text or json
}

// DefaultConfig returns a sqlite configuration with a pool of ten.
func DefaultConfig() *Config {
	conn := driver.DefaultOptions()
	conn.Type = driver.TypeSQLite
	conn.DBName = "dbkeeper.db"
	return &Config{
		Connection: *conn,
		Pool: PoolConfig{
			MaxConnections: 10,
			Isolation:      driver.ReadCommitted.Name(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads a YAML file over DefaultConfig and applies DB_* environment
// overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if err := cfg.overrideFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) overrideFromEnv() error {
	if err := envconfig.Process("", &c.Connection); err != nil {
		return fmt.Errorf("failed to read connection env: %w", err)
	}
	if err := envconfig.Process("", &c.Pool); err != nil {
		return fmt.Errorf("failed to read pool env: %w", err)
	}
	if err := envconfig.Process("", &c.Log); err != nil {
		return fmt.Errorf("failed to read log env: %w", err)
	}
	return nil
}

// Validate checks the fields the database package itself relies on.
func (c *Config) Validate() error {
	if c.Pool.MaxConnections <= 0 {
		return ErrInvalidMaxConnections
	}
	if _, err := driver.ParseIsolation(c.Pool.Isolation); err != nil {
		return err
	}
	switch strings.ToLower(c.Connection.Type) {
	case driver.TypeMySQL, driver.TypePostgres, driver.TypeSQLite, driver.TypePgx:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedType, c.Connection.Type)
	}
}

// Isolation returns the configured default isolation level.
func (c *Config) Isolation() driver.Isolation {
	iso, err := driver.ParseIsolation(c.Pool.Isolation)
	if err != nil {
		return driver.ReadCommitted
	}
	return iso
}

// PoolOptions returns the pool options derived from c.
func (c *Config) PoolOptions() []PoolOption {
	return []PoolOption{WithDefaultIsolation(c.Isolation())}
}

// ApplyLogging pushes the log section into the utils logger registry.
func (c *Config) ApplyLogging() {
	if c.Log.Format != "" {
		utils.ConfigureConsoleLogFormat(c.Log.Format)
	}
	if c.Log.Level != "" {
		utils.ConfigureLogLevel(c.Log.Level)
	}
}

// NewDriver returns the backend that serves opts.Type.
func NewDriver(opts *driver.Options) (driver.Driver, error) {
	if opts == nil {
		return nil, fmt.Errorf("%w: no options", ErrUnsupportedType)
	}
	switch strings.ToLower(opts.Type) {
	case driver.TypeMySQL, driver.TypePostgres, driver.TypeSQLite:
		return bundriver.New(bundriver.WithLogger(GetLogger())), nil
	case driver.TypePgx:
		return pgxdriver.New(pgxdriver.WithLogger(GetLogger())), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, opts.Type)
	}
}
