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
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/last1971/dbkeeper/driver"
)

const (
	defaultHost         = "localhost"
	defaultMySQLPort    = 3306
	defaultPostgresPort = 5432
)

func hostPort(o *driver.Options, defPort int) string {
	host := o.Host
	if host == "" {
		host = defaultHost
	}
	port := o.Port
	if port <= 0 {
		port = defPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// mysqlDSN builds a go-sql-driver DSN for dbName. An empty dbName connects
// to the server without selecting a schema.
func mysqlDSN(o *driver.Options, dbName string) string {
	cfg := mysql.NewConfig()
	cfg.User = o.Username
	cfg.Passwd = o.Password
	cfg.Net = "tcp"
	cfg.Addr = hostPort(o, defaultMySQLPort)
	cfg.DBName = dbName
	cfg.ParseTime = true
	cfg.Loc = time.Local
	cfg.Timeout = o.Timeout()
	cfg.ReadTimeout = o.ReadTimeout
	cfg.WriteTimeout = o.WriteTimeout
	if o.Charset != "" {
		cfg.Params = map[string]string{"charset": o.Charset}
	}
	return cfg.FormatDSN()
}

// postgresDSN builds a lib/pq connection URL for dbName.
func postgresDSN(o *driver.Options, dbName string) string {
	sslMode := o.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("connect_timeout", strconv.Itoa(int(o.Timeout().Seconds())))
	u := url.URL{
		Scheme:   "postgres",
		Host:     hostPort(o, defaultPostgresPort),
		Path:     "/" + dbName,
		RawQuery: q.Encode(),
	}
	if o.Username != "" {
		u.User = url.UserPassword(o.Username, o.Password)
	}
	return u.String()
}
