// Package driver defines the contract a database backend must satisfy to be
// managed by the database package: connections, transactions, bounded pools,
// connection options, isolation levels and driver error classification.
package driver
