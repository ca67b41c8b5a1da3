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

package store

import (
	"context"
	"errors"
	"time"

	"sixpath-store-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrDuplicateReference  = errors.New("duplicate payment reference")
	ErrPendingNotFound     = errors.New("no pending payment found for reference")
	ErrAlreadyCredited     = errors.New("payment already credited")
	ErrInsufficientBalance = errors.New("insufficient token balance")
	ErrConcurrentClaim     = errors.New("pending payment claimed concurrently")
)

// PendingPaymentParams contains the parameters for creating a pending payment.
type PendingPaymentParams struct {
	Reference   string
	Username    string
	ProductID   int64
	TokenAmount int64
	PriceSOL    decimal.Decimal
}

// PaymentStore defines the contract the payment engine depends on. The
// pending-payment table and the token ledger live behind one interface
// because the claim-and-credit step must span both atomically.
type PaymentStore interface {
	// --- Pending payments ---
	CreatePendingPayment(ctx context.Context, params PendingPaymentParams) (*models.PendingPayment, error)
	GetPendingPayment(ctx context.Context, reference string) (*models.PendingPayment, error)
	DeletePendingPayment(ctx context.Context, reference string) error
	PurgeStale(ctx context.Context, olderThan time.Duration) (int64, error)

	// --- Credit / balances ---

	// ClaimAndCredit atomically deletes the pending payment and credits the
	// buyer's balance in a single database transaction. The delete acts as
	// the mutual-exclusion gate: of N concurrent callers exactly one
	// succeeds; the rest receive ErrAlreadyCredited.
	ClaimAndCredit(ctx context.Context, reference, signature string) (*models.LedgerTransaction, error)

	// CheckVerified reports whether a credit has been recorded for the
	// reference. Read-only; used by status polling.
	CheckVerified(ctx context.Context, reference string) (bool, error)

	GetBalance(ctx context.Context, username string) (int64, error)
	SpendTokens(ctx context.Context, username string, amount int64) (int64, error)
	GetTransactionHistory(ctx context.Context, username string, limit, offset int) ([]models.LedgerTransaction, error)

	// --- Lifecycle ---
	Close()
}
