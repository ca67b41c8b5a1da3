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

package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sixpath-store-go/internal/models"
	"sixpath-store-go/internal/solana"
	"sixpath-store-go/internal/store"

	"go.uber.org/zap"
)

// VerifyState is a terminal outcome of the verification state machine.
type VerifyState string

const (
	// StateVerified means a qualifying transfer settled and the buyer
	// was credited exactly once.
	StateVerified VerifyState = "verified"
	// StateRejected means the payment definitively did not happen:
	// unknown reference, on-chain failure, or identity mismatch.
	StateRejected VerifyState = "rejected"
	// StateExhausted means every attempt hit a transient condition.
	// Funds may have moved; recovery is the right next step.
	StateExhausted VerifyState = "exhausted"
)

// VerifyResult reports the structured outcome of a verification run so
// callers and tests can assert on retry behavior deterministically.
type VerifyResult struct {
	State     VerifyState
	Attempts  int
	LastDelay time.Duration
	Signature string
	Err       error
}

// runVerification is the search/inspect/credit loop shared by Verify and
// Recover. The caller holds the per-reference lock and has already
// resolved the pending record.
//
// Transient conditions (reference not yet indexed, details not yet
// materialized, RPC failures) are retried with exponential backoff. A
// settled on-chain failure is terminal on the spot: retrying cannot turn
// a failed transaction into a successful one.
func (s *Service) runVerification(ctx context.Context, pending *models.PendingPayment, maxRetries int) (*VerifyResult, error) {
	if maxRetries < 0 {
		maxRetries = s.cfg.MaxRetries
	}

	result := &VerifyResult{}
	minLamports := solana.LamportsFromSOL(pending.PriceSOL)
	maxAttempts := maxRetries + 1
	delay := s.cfg.BackoffBase

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.Attempts = attempt

		outcome, err := s.inspectChain(ctx, pending.Reference, minLamports)
		if err == nil {
			return s.finalize(ctx, pending, outcome, result)
		}

		if isTerminalChainError(err) {
			zap.L().Warn("Payment rejected",
				zap.String("reference", pending.Reference),
				zap.Int("attempt", attempt),
				zap.Error(err))
			result.State = StateRejected
			result.Err = fmt.Errorf("%w: %v", ErrOnChainRejected, err)
			return result, result.Err
		}

		zap.L().Debug("Transfer not yet visible",
			zap.String("reference", pending.Reference),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(err))

		if attempt == maxAttempts {
			break
		}

		result.LastDelay = delay
		if err := s.sleep(ctx, delay); err != nil {
			result.State = StateExhausted
			result.Err = err
			return result, err
		}
		delay *= 2
		if delay > s.cfg.BackoffMax {
			delay = s.cfg.BackoffMax
		}
	}

	result.State = StateExhausted
	result.Err = fmt.Errorf("%w: reference %s after %d attempts",
		ErrExhausted, pending.Reference, result.Attempts)
	return result, result.Err
}

// inspectChain performs one search-then-inspect round: locate transfers
// tagged with the reference and examine the most recent one.
func (s *Service) inspectChain(ctx context.Context, reference string, minLamports uint64) (*solana.TransferOutcome, error) {
	signatures, err := s.chain.FindReferenceSignatures(ctx, reference)
	if err != nil {
		return nil, err
	}
	return s.chain.GetTransferOutcome(ctx, signatures[0], minLamports)
}

// isTerminalChainError separates settled negatives from lag. Anything
// not definitively settled (not-found, unavailable, RPC failures) is
// treated as transient.
func isTerminalChainError(err error) bool {
	return errors.Is(err, solana.ErrTransactionFailed) ||
		errors.Is(err, solana.ErrNoMerchantTransfer)
}

// finalize performs the one-time credit. The store's claim-and-credit is
// the atomic gate: a concurrent settler winning the race surfaces as
// ErrAlreadyCredited, which is still a verified payment from this
// caller's point of view.
func (s *Service) finalize(ctx context.Context, pending *models.PendingPayment, outcome *solana.TransferOutcome, result *VerifyResult) (*VerifyResult, error) {
	result.Signature = outcome.Signature

	_, err := s.store.ClaimAndCredit(ctx, pending.Reference, outcome.Signature)
	if err != nil && !errors.Is(err, store.ErrAlreadyCredited) {
		result.Err = fmt.Errorf("transfer confirmed but credit failed: %w", err)
		return result, result.Err
	}

	zap.L().Info("Payment verified",
		zap.String("reference", pending.Reference),
		zap.String("username", pending.Username),
		zap.String("signature", outcome.Signature),
		zap.Uint64("lamports", outcome.MerchantLamports),
		zap.Int("attempts", result.Attempts))

	result.State = StateVerified
	return result, nil
}
