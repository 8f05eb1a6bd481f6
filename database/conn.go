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
	"fmt"
	"sync"
)

var (
	globalMu     sync.RWMutex
	globalPool   *ConnectionPool
	globalConfig *Config
)

// GetPool returns the process-wide pool, or nil before InitPool.
func GetPool() *ConnectionPool {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalPool
}

// GetConfig returns the configuration the global pool was built from.
func GetConfig() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalConfig
}

// InitPool builds the backend for cfg and installs it as the process-wide pool.
func InitPool(ctx context.Context, cfg *Config) (*ConnectionPool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.ApplyLogging()

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalPool != nil {
		return nil, fmt.Errorf("database pool already initialized")
	}
	drv, err := NewDriver(&cfg.Connection)
	if err != nil {
		return nil, err
	}
	pool, err := NewConnectionPool(ctx, drv, cfg.Pool.MaxConnections, &cfg.Connection, cfg.PoolOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	globalPool = pool
	globalConfig = cfg
	GetLogger().Info("database pool ready", "type", cfg.Connection.Type, "max", cfg.Pool.MaxConnections, "isolation", pool.DefaultIsolation().Name())
	return pool, nil
}

// SetPool installs an already built pool as the process-wide one.
func SetPool(pool *ConnectionPool) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalPool = pool
}

// ClosePool rolls back whatever is still open on the global pool and
// destroys it.
func ClosePool(ctx context.Context) error {
	globalMu.Lock()
	pool := globalPool
	globalPool = nil
	globalConfig = nil
	globalMu.Unlock()
	if pool == nil {
		return nil
	}

	rbErr := pool.RollbackAllTransactions(ctx)
	if rbErr != nil {
		GetLogger().Warn("rollback on close failed", "error", rbErr)
	}
	return errors.Join(rbErr, pool.Destroy())
}
