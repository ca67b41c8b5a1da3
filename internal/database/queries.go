/**
 * Copyright 2025-present Six Path Studio
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

const (
	// Pending payment queries
	queryInsertPendingPayment = `
		INSERT INTO pending_payments (reference, username, product_id, token_amount, price_sol)
		VALUES (?, ?, ?, ?, ?)`

	queryGetPendingPayment = `
		SELECT reference, username, product_id, token_amount, price_sol, created_at
		FROM pending_payments
		WHERE reference = ?`

	queryGetPendingForClaim = `
		SELECT username, token_amount
		FROM pending_payments
		WHERE reference = ?`

	queryDeletePendingPayment = `
		DELETE FROM pending_payments WHERE reference = ?`

	queryPurgeStalePending = `
		DELETE FROM pending_payments WHERE created_at < ?`

	// Balance queries
	queryGetBalance = `
		SELECT balance
		FROM user_tokens
		WHERE username = ?`

	queryUpsertBalanceIncrement = `
		INSERT INTO user_tokens (username, balance) VALUES (?, ?)
		ON CONFLICT(username) DO UPDATE SET
			balance = balance + excluded.balance,
			updated_at = CURRENT_TIMESTAMP`

	queryGuardedBalanceDecrement = `
		UPDATE user_tokens
		SET balance = balance - ?, updated_at = CURRENT_TIMESTAMP
		WHERE username = ? AND balance >= ?`

	// Ledger queries
	queryCheckCreditedReference = `
		SELECT id FROM ledger_transactions
		WHERE reference = ? AND transaction_type = 'credit'
		LIMIT 1`

	queryInsertLedgerTransaction = `
		INSERT INTO ledger_transactions (
			id, username, transaction_type, amount, balance_before, balance_after,
			reference, signature, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetTransactionHistory = `
		SELECT id, username, transaction_type, amount, balance_before, balance_after,
		       COALESCE(reference, ''), COALESCE(signature, ''), created_at
		FROM ledger_transactions
		WHERE username = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`
)
