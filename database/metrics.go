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
	"github.com/prometheus/client_golang/prometheus"
)

// PoolCollector exports ConnectionPool statistics to Prometheus.
type PoolCollector struct {
	pool *ConnectionPool

	activeTransactions   *prometheus.Desc
	activeConnections    *prometheus.Desc
	maxConnections       *prometheus.Desc
	availableConnections *prometheus.Desc
	txCreated            *prometheus.Desc
	txCommitted          *prometheus.Desc
	txRolledBack         *prometheus.Desc
	connsDetached        *prometheus.Desc
}

var _ prometheus.Collector = (*PoolCollector)(nil)

func NewPoolCollector(pool *ConnectionPool, namespace string) *PoolCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "pool", name), help, nil, nil)
	}
	return &PoolCollector{
		pool:                 pool,
		activeTransactions:   desc("active_transactions", "Transactions created and not yet closed."),
		activeConnections:    desc("active_connections", "Connections with a transaction that have not been detached."),
		maxConnections:       desc("max_connections", "Configured pool capacity."),
		availableConnections: desc("available_connections", "Capacity minus active connections."),
		txCreated:            desc("transactions_created_total", "Transactions started through the pool."),
		txCommitted:          desc("transactions_committed_total", "Transactions closed by commit."),
		txRolledBack:         desc("transactions_rolled_back_total", "Transactions closed by rollback."),
		connsDetached:        desc("connections_detached_total", "Pooled connections detached."),
	}
}

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeTransactions
	ch <- c.activeConnections
	ch <- c.maxConnections
	ch <- c.availableConnections
	ch <- c.txCreated
	ch <- c.txCommitted
	ch <- c.txRolledBack
	ch <- c.connsDetached
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.pool.GetStats()
	ch <- prometheus.MustNewConstMetric(c.activeTransactions, prometheus.GaugeValue, float64(s.ActiveTransactions))
	ch <- prometheus.MustNewConstMetric(c.activeConnections, prometheus.GaugeValue, float64(s.ActiveConnections))
	ch <- prometheus.MustNewConstMetric(c.maxConnections, prometheus.GaugeValue, float64(s.MaxConnections))
	ch <- prometheus.MustNewConstMetric(c.availableConnections, prometheus.GaugeValue, float64(s.AvailableConnections))
	ch <- prometheus.MustNewConstMetric(c.txCreated, prometheus.CounterValue, float64(s.TransactionsCreated))
	ch <- prometheus.MustNewConstMetric(c.txCommitted, prometheus.CounterValue, float64(s.TransactionsCommitted))
	ch <- prometheus.MustNewConstMetric(c.txRolledBack, prometheus.CounterValue, float64(s.TransactionsRolledBack))
	ch <- prometheus.MustNewConstMetric(c.connsDetached, prometheus.CounterValue, float64(s.ConnectionsDetached))
}
