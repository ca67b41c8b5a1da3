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
	"sync"
	"time"

	"sixpath-store-go/internal/catalog"
	"sixpath-store-go/internal/models"
	"sixpath-store-go/internal/solana"
	"sixpath-store-go/internal/store"

	solanago "github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// Chain is the slice of the Solana service the payment core depends on.
// Narrowed to an interface so the verification engine can be tested
// against a scripted chain.
type Chain interface {
	FindReferenceSignatures(ctx context.Context, reference string) ([]string, error)
	GetTransferOutcome(ctx context.Context, signature string, minLamports uint64) (*solana.TransferOutcome, error)
	BuildTransferTx(ctx context.Context, buyerAddress string, lamports uint64, reference string) (*solanago.Transaction, error)
	Merchant() string
}

// PaymentIntent is what InitializePayment hands back to the caller: the
// persisted reference plus an unsigned transaction for wallet-side
// signing and submission.
type PaymentIntent struct {
	Reference   string
	Product     models.Product
	Transaction *solanago.Transaction
}

// Service is the payment core. It owns reference generation, pending
// payment lifecycle, verification, recovery, and status checks.
type Service struct {
	store   store.PaymentStore
	chain   Chain
	catalog *catalog.Catalog
	cfg     models.PaymentsConfig

	// sleep is swappable so retry schedules can be asserted without
	// real waiting
	sleep func(ctx context.Context, d time.Duration) error

	refLocks sync.Map // reference -> *sync.Mutex
}

func NewService(paymentStore store.PaymentStore, chain Chain, productCatalog *catalog.Catalog, cfg models.PaymentsConfig) *Service {
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 8 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return &Service{
		store:   paymentStore,
		chain:   chain,
		catalog: productCatalog,
		cfg:     cfg,
		sleep:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// lockReference serializes verification per reference so concurrent
// verify, recover and poll calls cannot race each other to the credit
// step. Returns the unlock func.
func (s *Service) lockReference(reference string) func() {
	value, _ := s.refLocks.LoadOrStore(reference, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// InitializePayment starts a purchase in direct-transfer mode: generate
// a reference, persist the pending payment, then build an unsigned
// buyer-to-merchant transfer tagged with the reference. The pending
// record is written before the transaction exists so a transfer can
// never confirm against a reference the store has not seen.
func (s *Service) InitializePayment(ctx context.Context, username, buyerAddress string, productID int64) (*PaymentIntent, error) {
	if buyerAddress == "" {
		return nil, ErrNotConnected
	}
	if username == "" {
		return nil, fmt.Errorf("username cannot be empty")
	}

	product, ok := s.catalog.GetProductByID(productID)
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
	}

	reference, err := solana.NewReference()
	if err != nil {
		return nil, err
	}

	if _, err := s.store.CreatePendingPayment(ctx, store.PendingPaymentParams{
		Reference:   reference,
		Username:    username,
		ProductID:   product.ID,
		TokenAmount: product.TokenAmount,
		PriceSOL:    product.PriceSOL,
	}); err != nil {
		return nil, fmt.Errorf("failed to persist payment intent: %w", err)
	}

	lamports := solana.LamportsFromSOL(product.PriceSOL)
	tx, err := s.chain.BuildTransferTx(ctx, buyerAddress, lamports, reference)
	if err != nil {
		// Nothing was submitted; drop the intent so it cannot linger
		if delErr := s.store.DeletePendingPayment(ctx, reference); delErr != nil {
			zap.L().Warn("Failed to clean up pending payment after build failure",
				zap.String("reference", reference), zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to build transfer: %w", err)
	}

	zap.L().Info("Payment initialized",
		zap.String("username", username),
		zap.String("reference", reference),
		zap.Int64("product_id", product.ID),
		zap.String("price_sol", product.PriceSOL.String()))

	return &PaymentIntent{
		Reference:   reference,
		Product:     product,
		Transaction: tx,
	}, nil
}

// InitializePaymentURL starts a purchase in URL mode: persist the
// pending payment and return a solana: payment-request URL for display
// as a scannable code. The buyer's wallet supplies the sending identity.
func (s *Service) InitializePaymentURL(ctx context.Context, username string, productID int64) (reference, payURL string, err error) {
	if username == "" {
		return "", "", fmt.Errorf("username cannot be empty")
	}

	product, ok := s.catalog.GetProductByID(productID)
	if !ok {
		return "", "", fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
	}

	reference, err = solana.NewReference()
	if err != nil {
		return "", "", err
	}

	if _, err := s.store.CreatePendingPayment(ctx, store.PendingPaymentParams{
		Reference:   reference,
		Username:    username,
		ProductID:   product.ID,
		TokenAmount: product.TokenAmount,
		PriceSOL:    product.PriceSOL,
	}); err != nil {
		return "", "", fmt.Errorf("failed to persist payment intent: %w", err)
	}

	payURL = solana.PaymentURL(s.chain.Merchant(), product.PriceSOL, reference,
		product.Name,
		fmt.Sprintf("%d tokens for %s", product.TokenAmount, username))

	zap.L().Info("Payment URL generated",
		zap.String("username", username),
		zap.String("reference", reference),
		zap.Int64("product_id", product.ID))

	return reference, payURL, nil
}

// Verify runs the verification state machine for a reference. A
// negative maxRetries means the configured default.
func (s *Service) Verify(ctx context.Context, reference string, maxRetries int) (*VerifyResult, error) {
	unlock := s.lockReference(reference)
	defer unlock()

	pending, err := s.pendingOrSettled(ctx, reference)
	if err != nil {
		return &VerifyResult{State: StateRejected, Err: err}, err
	}
	if pending == nil {
		// Reference already settled by an earlier run
		return &VerifyResult{State: StateVerified}, nil
	}

	return s.runVerification(ctx, pending, maxRetries)
}

// Recover re-runs verification for a payment whose original flow broke
// after submission. The identity gate stops one user from claiming
// another's in-flight transfer.
func (s *Service) Recover(ctx context.Context, username, reference string, maxRetries int) (*VerifyResult, error) {
	unlock := s.lockReference(reference)
	defer unlock()

	pending, err := s.pendingOrSettled(ctx, reference)
	if err != nil {
		return &VerifyResult{State: StateRejected, Err: err}, err
	}
	if pending == nil {
		return &VerifyResult{State: StateVerified}, nil
	}

	if pending.Username != username {
		zap.L().Warn("Recovery identity mismatch",
			zap.String("reference", reference),
			zap.String("claimed_by", username))
		err := fmt.Errorf("%w: %s", ErrIdentityMismatch, reference)
		return &VerifyResult{State: StateRejected, Err: err}, err
	}

	return s.runVerification(ctx, pending, maxRetries)
}

// pendingOrSettled resolves a reference to its pending record. Returns
// (nil, nil) when the reference was already credited, and
// ErrUnknownReference when the store has never seen it.
func (s *Service) pendingOrSettled(ctx context.Context, reference string) (*models.PendingPayment, error) {
	pending, err := s.store.GetPendingPayment(ctx, reference)
	if err == nil {
		return pending, nil
	}
	if !errors.Is(err, store.ErrPendingNotFound) {
		return nil, fmt.Errorf("failed to look up pending payment: %w", err)
	}

	verified, checkErr := s.store.CheckVerified(ctx, reference)
	if checkErr != nil {
		return nil, fmt.Errorf("failed to check settled status: %w", checkErr)
	}
	if verified {
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownReference, reference)
}

// CheckStatus reports whether the reference's payment has been credited.
// Read-only; it never performs the credit itself.
func (s *Service) CheckStatus(ctx context.Context, reference string) (bool, error) {
	return s.store.CheckVerified(ctx, reference)
}
