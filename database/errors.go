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
	"errors"
	"strings"
)

// Precondition errors raised before any driver call is made.
var (
	ErrNoConnection          = errors.New("create or attach database first")
	ErrTransactionNull       = errors.New("transaction is null")
	ErrTransactionClosed     = errors.New("transaction is already closed")
	ErrTransactionStarted    = errors.New("transaction is already started")
	ErrInvalidMaxConnections = errors.New("max connections must be greater than zero")
	ErrUnsupportedType       = errors.New("unsupported database type")
	ErrNoDriver              = errors.New("database driver is not set")
)

// RollbackError aggregates the failures of a RollbackAllTransactions sweep.
type RollbackError struct {
	Errors []error
}

func (e *RollbackError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return "Rollback errors: " + strings.Join(msgs, ", ")
}

// Unwrap exposes the individual driver errors to errors.Is and errors.As.
func (e *RollbackError) Unwrap() []error {
	return e.Errors
}
