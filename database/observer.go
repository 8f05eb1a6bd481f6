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

import "github.com/last1971/dbkeeper/driver"

// Observer receives lifecycle events from connections and the transactions
// they own. A Connection holds its observer as a back-reference only; the
// observer never controls the lifetime of what it watches.
type Observer interface {
	OnTransactionCreated(handle driver.Conn, tx *Transaction)
	OnTransactionClosed(handle driver.Conn, tx *Transaction)
	OnConnectionDetached(handle driver.Conn)
}

// TransactionOwner is what a Transaction needs from the Connection it was
// started on.
type TransactionOwner interface {
	Handle() driver.Conn
	Detach() error
	OnTransactionClose(tx *Transaction)
}
