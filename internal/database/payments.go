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

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"sixpath-store-go/internal/models"
	"sixpath-store-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (s *Service) CreatePendingPayment(ctx context.Context, params store.PendingPaymentParams) (*models.PendingPayment, error) {
	zap.L().Info("Creating pending payment",
		zap.String("reference", params.Reference),
		zap.String("username", params.Username),
		zap.Int64("product_id", params.ProductID),
		zap.Int64("token_amount", params.TokenAmount),
		zap.String("price_sol", params.PriceSOL.String()))

	_, err := s.db.ExecContext(ctx, queryInsertPendingPayment,
		params.Reference, params.Username, params.ProductID,
		params.TokenAmount, params.PriceSOL.String())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", store.ErrDuplicateReference, params.Reference)
		}
		return nil, fmt.Errorf("failed to create pending payment: %w", err)
	}

	return s.GetPendingPayment(ctx, params.Reference)
}

func (s *Service) GetPendingPayment(ctx context.Context, reference string) (*models.PendingPayment, error) {
	var payment models.PendingPayment
	var priceStr string
	err := s.db.QueryRowContext(ctx, queryGetPendingPayment, reference).
		Scan(&payment.Reference, &payment.Username, &payment.ProductID,
			&payment.TokenAmount, &priceStr, &payment.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", store.ErrPendingNotFound, reference)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending payment: %w", err)
	}

	payment.PriceSOL, err = decimal.NewFromString(priceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse price '%s': %w", priceStr, err)
	}

	return &payment, nil
}

func (s *Service) DeletePendingPayment(ctx context.Context, reference string) error {
	if _, err := s.db.ExecContext(ctx, queryDeletePendingPayment, reference); err != nil {
		return fmt.Errorf("failed to delete pending payment: %w", err)
	}
	return nil
}

// PurgeStale removes pending payments older than the given age. Nothing
// invokes this automatically; abandoned intents are cleaned up out of band.
func (s *Service) PurgeStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	result, err := s.db.ExecContext(ctx, queryPurgeStalePending, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge stale pending payments: %w", err)
	}

	purged, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}

	if purged > 0 {
		zap.L().Info("Purged stale pending payments",
			zap.Int64("purged", purged),
			zap.Time("cutoff", cutoff))
	}
	return purged, nil
}

// ClaimAndCredit settles a verified payment: it deletes the pending record
// and credits the buyer's balance inside one database transaction. The
// delete is the claim gate -- if another caller settled the reference
// first, zero rows are affected and ErrAlreadyCredited is returned without
// touching the balance. A single transaction also means a crash cannot
// leave the balance incremented with the pending record still present, or
// the record gone with nothing credited.
func (s *Service) ClaimAndCredit(ctx context.Context, reference, signature string) (*models.LedgerTransaction, error) {
	zap.L().Info("Claiming pending payment for credit",
		zap.String("reference", reference),
		zap.String("signature", signature))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Read the promise while holding the write transaction
	var username string
	var tokenAmount int64
	err = tx.QueryRowContext(ctx, queryGetPendingForClaim, reference).
		Scan(&username, &tokenAmount)
	if err == sql.ErrNoRows {
		// Record gone: either never existed or already settled
		var creditID string
		checkErr := tx.QueryRowContext(ctx, queryCheckCreditedReference, reference).Scan(&creditID)
		if checkErr == nil {
			return nil, fmt.Errorf("%w: %s", store.ErrAlreadyCredited, reference)
		}
		return nil, fmt.Errorf("%w: %s", store.ErrPendingNotFound, reference)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pending payment: %w", err)
	}

	// Claim gate: exactly one caller gets rows_affected == 1
	result, err := tx.ExecContext(ctx, queryDeletePendingPayment, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending payment: %w", err)
	}
	claimed, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if claimed == 0 {
		return nil, fmt.Errorf("%w: %s", store.ErrConcurrentClaim, reference)
	}

	// Current balance (zero for first-time buyers)
	var balanceBefore int64
	err = tx.QueryRowContext(ctx, queryGetBalance, username).Scan(&balanceBefore)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get current balance: %w", err)
	}
	balanceAfter := balanceBefore + tokenAmount

	// Ledger row; the unique reference index is a second idempotency barrier
	ledgerTx := &models.LedgerTransaction{
		ID:              uuid.New().String(),
		Username:        username,
		TransactionType: "credit",
		Amount:          tokenAmount,
		BalanceBefore:   balanceBefore,
		BalanceAfter:    balanceAfter,
		Reference:       reference,
		Signature:       signature,
		CreatedAt:       time.Now(),
	}
	_, err = tx.ExecContext(ctx, queryInsertLedgerTransaction,
		ledgerTx.ID, ledgerTx.Username, ledgerTx.TransactionType, ledgerTx.Amount,
		ledgerTx.BalanceBefore, ledgerTx.BalanceAfter, ledgerTx.Reference,
		ledgerTx.Signature, ledgerTx.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", store.ErrAlreadyCredited, reference)
		}
		return nil, fmt.Errorf("failed to insert ledger transaction: %w", err)
	}

	// Atomic upsert-increment; never a blind overwrite
	if _, err := tx.ExecContext(ctx, queryUpsertBalanceIncrement, username, tokenAmount); err != nil {
		return nil, fmt.Errorf("failed to credit balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit credit: %w", err)
	}

	zap.L().Info("Payment credited",
		zap.String("reference", reference),
		zap.String("username", username),
		zap.Int64("token_amount", tokenAmount),
		zap.Int64("old_balance", balanceBefore),
		zap.Int64("new_balance", balanceAfter))

	return ledgerTx, nil
}

// CheckVerified reports whether a credit exists for the reference. Success
// deletes the pending record, so the ledger audit trail is the durable
// verified marker the status watcher polls.
func (s *Service) CheckVerified(ctx context.Context, reference string) (bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, queryCheckCreditedReference, reference).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check verified status: %w", err)
	}
	return true, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
