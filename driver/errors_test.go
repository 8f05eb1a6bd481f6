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
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	refused := &net.OpError{
		Op:  "dial",
		Net: "tcp",
		Err: os.NewSyscallError("connect", syscall.ECONNREFUSED),
	}

	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), ""},
		{"refused", refused, "ECONNREFUSED"},
		{"wrapped refused", fmt.Errorf("dial: %w", refused), "ECONNREFUSED"},
		{"mysql", &mysql.MySQLError{Number: 1049, Message: "Unknown database 'x'"}, "1049"},
		{"pq", &pq.Error{Code: "3D000"}, "3D000"},
		{"pgconn", &pgconn.PgError{Code: "40001"}, "40001"},
		{"deadline", context.DeadlineExceeded, "ETIMEDOUT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ErrorCode(tc.err))
		})
	}
}

func TestIsSqlError(t *testing.T) {
	is, kind := IsSqlError(&mysql.MySQLError{Number: 1062})
	assert.True(t, is)
	assert.Equal(t, DuplicateKeyErr, kind)

	is, kind = IsSqlError(&pq.Error{Code: "40P01"})
	assert.True(t, is)
	assert.Equal(t, DeadlockErr, kind)

	is, kind = IsSqlError(&pgconn.PgError{Code: "08006"})
	assert.True(t, is)
	assert.Equal(t, ConnectionErr, kind)

	is, kind = IsSqlError(os.NewSyscallError("connect", syscall.ECONNREFUSED))
	assert.True(t, is)
	assert.Equal(t, ConnectionErr, kind)

	is, kind = IsSqlError(errors.New("SQL logic error: no such table: users (1)"))
	assert.True(t, is)
	assert.Equal(t, NoTableErr, kind)

	is, _ = IsSqlError(errors.New("something else"))
	assert.False(t, is)

	is, _ = IsSqlError(nil)
	assert.False(t, is)
}

func TestIsUnknownDatabase(t *testing.T) {
	assert.True(t, IsUnknownDatabase(&mysql.MySQLError{Number: 1049}))
	assert.True(t, IsUnknownDatabase(&pq.Error{Code: "3D000"}))
	assert.True(t, IsUnknownDatabase(&pgconn.PgError{Code: "3D000"}))
	assert.True(t, IsUnknownDatabase(errors.New(`database "orders" does not exist`)))
	assert.False(t, IsUnknownDatabase(&pq.Error{Code: "23505"}))
}

func TestOptionsClone(t *testing.T) {
	opts := DefaultOptions()
	opts.Host = "db"
	c := opts.Clone()
	c.Host = "other"
	assert.Equal(t, "db", opts.Host)

	var nilOpts *Options
	assert.NotNil(t, nilOpts.Clone())
	assert.Equal(t, opts.ConnectTimeout, opts.Timeout())
	assert.Equal(t, DefaultOptions().ConnectTimeout, nilOpts.Clone().Timeout())
}
