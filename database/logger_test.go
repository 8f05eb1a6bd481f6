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
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingLogger struct {
	nopLogger
	warns int
}

func (l *countingLogger) Warn(string, ...interface{}) { l.warns++ }

func TestInitLoggerFirstCallWins(t *testing.T) {
	globalLoggerMu.Lock()
	saved := globalLogger
	globalLogger = nil
	globalLoggerMu.Unlock()
	t.Cleanup(func() {
		globalLoggerMu.Lock()
		globalLogger = saved
		globalLoggerMu.Unlock()
	})

	InitLogger(nil)
	first := &countingLogger{}
	InitLogger(first)
	InitLogger(&countingLogger{})
	assert.Same(t, first, GetLogger())

	c := NewConnection(newFakeDriver())
	assert.ErrorIs(t, c.Detach(), ErrNoConnection)
	c = NewConnection(nil, WithHandle(&fakeConn{detachErr: assert.AnError}))
	assert.ErrorIs(t, c.Detach(), assert.AnError)
	assert.Equal(t, 1, first.warns)
}

func TestGetLoggerDefault(t *testing.T) {
	globalLoggerMu.Lock()
	saved := globalLogger
	globalLogger = nil
	globalLoggerMu.Unlock()
	t.Cleanup(func() {
		globalLoggerMu.Lock()
		globalLogger = saved
		globalLoggerMu.Unlock()
	})

	l := GetLogger()
	assert.IsType(t, &DefaultLogger{}, l)
	assert.Same(t, l, GetLogger())
}
