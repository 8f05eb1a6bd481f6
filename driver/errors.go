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
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"syscall"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

type SQLError int

const (
	UnknownErr SQLError = iota
	ConnectionErr
	UnknownDatabaseErr
	NoTableErr
	DuplicateKeyErr
	NotNullViolationErr
	ForeignKeyViolationErr
	SerializationFailureErr
	DeadlockErr
)

var errnoNames = map[syscall.Errno]string{
	syscall.ECONNREFUSED: "ECONNREFUSED",
	syscall.ECONNRESET:   "ECONNRESET",
	syscall.ECONNABORTED: "ECONNABORTED",
	syscall.ETIMEDOUT:    "ETIMEDOUT",
	syscall.EHOSTUNREACH: "EHOSTUNREACH",
	syscall.ENETUNREACH:  "ENETUNREACH",
	syscall.EPIPE:        "EPIPE",
}

// ErrorCode extracts the machine-readable code carried by a driver error:
// the errno name for network failures, the MySQL error number, or the
// PostgreSQL SQLSTATE. It returns "" when the error carries no code.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return strconv.Itoa(int(mysqlErr.Number))
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		if name, ok := errnoNames[errno]; ok {
			return name
		}
		return fmt.Sprintf("ERRNO_%d", int(errno))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "ETIMEDOUT"
	}
	return ""
}

// IsSqlError classifies a driver error. The boolean reports whether the
// error was recognised as coming from a database or its transport.
func IsSqlError(err error) (is bool, sqlErr SQLError) {
	if err == nil {
		return false, UnknownErr
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1049:
			return true, UnknownDatabaseErr
		case 1146:
			return true, NoTableErr
		case 1062:
			return true, DuplicateKeyErr
		case 1048:
			return true, NotNullViolationErr
		case 1216, 1217, 1451, 1452:
			return true, ForeignKeyViolationErr
		case 1213:
			return true, DeadlockErr
		case 1045, 1040, 2002, 2003, 2006, 2013:
			return true, ConnectionErr
		default:
			return true, UnknownErr
		}
	}
	if code := sqlState(err); code != "" {
		switch {
		case code == "3D000":
			return true, UnknownDatabaseErr
		case code == "42P01":
			return true, NoTableErr
		case code == "23505":
			return true, DuplicateKeyErr
		case code == "23502":
			return true, NotNullViolationErr
		case code == "23503":
			return true, ForeignKeyViolationErr
		case code == "40001":
			return true, SerializationFailureErr
		case code == "40P01":
			return true, DeadlockErr
		case strings.HasPrefix(code, "08"), code == "28P01", code == "28000":
			return true, ConnectionErr
		default:
			return true, UnknownErr
		}
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return true, ConnectionErr
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "unknown database") ||
		(strings.Contains(s, "database") && strings.Contains(s, "does not exist")) {
		return true, UnknownDatabaseErr
	}
	if strings.Contains(s, "no such table") {
		return true, NoTableErr
	}
	if strings.Contains(s, "unique constraint failed") {
		return true, DuplicateKeyErr
	}
	if strings.Contains(s, "not null constraint failed") {
		return true, NotNullViolationErr
	}
	if strings.Contains(s, "foreign key constraint failed") {
		return true, ForeignKeyViolationErr
	}
	if strings.Contains(s, "connection refused") ||
		strings.Contains(s, "bad connection") ||
		strings.Contains(s, "broken pipe") {
		return true, ConnectionErr
	}
	return false, UnknownErr
}

func sqlState(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsUnknownDatabase reports whether err means the target database is missing.
func IsUnknownDatabase(err error) bool {
	is, kind := IsSqlError(err)
	return is && kind == UnknownDatabaseErr
}
