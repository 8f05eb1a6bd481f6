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
	"fmt"
	"strings"

	"github.com/last1971/dbkeeper/types"
)

// Isolation is the consistency mode requested for a transaction's lifetime.
// The zero value is ReadCommitted.
type Isolation int

const (
	ReadCommitted Isolation = iota
	ReadUncommitted
	RepeatableRead
	Serializable
	ReadCommittedReadOnly
)

var _ types.BaseEnum = ReadCommitted

var isolationNames = map[Isolation]string{
	ReadCommitted:         "read_committed",
	ReadUncommitted:       "read_uncommitted",
	RepeatableRead:        "repeatable_read",
	Serializable:          "serializable",
	ReadCommittedReadOnly: "read_committed_read_only",
}

var isolationDescs = map[Isolation]string{
	ReadCommitted:         "READ COMMITTED",
	ReadUncommitted:       "READ UNCOMMITTED",
	RepeatableRead:        "REPEATABLE READ",
	Serializable:          "SERIALIZABLE",
	ReadCommittedReadOnly: "READ COMMITTED, READ ONLY",
}

func (i Isolation) IsValid() bool {
	_, ok := isolationNames[i]
	return ok
}

func (i Isolation) Number() int {
	if !i.IsValid() {
		return types.IllegalValue
	}
	return int(i)
}

func (i Isolation) Name() string {
	if name, ok := isolationNames[i]; ok {
		return name
	}
	return types.IllegalName
}

func (i Isolation) Desc() string {
	if desc, ok := isolationDescs[i]; ok {
		return desc
	}
	return types.IllegalDesc
}

func (i Isolation) String() string {
	return i.Name()
}

// ReadOnly reports whether the level asks for a read-only transaction.
func (i Isolation) ReadOnly() bool {
	return i == ReadCommittedReadOnly
}

// ParseIsolation accepts names such as "serializable", "READ COMMITTED" or
// "read-committed-read-only". An empty string yields ReadCommitted.
func ParseIsolation(s string) (Isolation, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	if norm == "" {
		return ReadCommitted, nil
	}
	norm = strings.NewReplacer("-", "_", " ", "_", ",", "").Replace(norm)
	for iso, name := range isolationNames {
		if name == norm {
			return iso, nil
		}
	}
	return ReadCommitted, fmt.Errorf("unknown isolation level: %q", s)
}

// IsolationFromNumber converts a persisted Number back into an Isolation.
func IsolationFromNumber(n int) (Isolation, error) {
	iso := Isolation(n)
	if !iso.IsValid() {
		return ReadCommitted, fmt.Errorf("unknown isolation number: %d", n)
	}
	return iso, nil
}
