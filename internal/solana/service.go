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

package solana

import (
	"context"
	"errors"
	"fmt"

	"sixpath-store-go/internal/models"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Sentinel errors distinguishing ledger lag from settled outcomes.
//
// ErrReferenceNotFound and ErrTransactionUnavailable mean "not visible on
// the queried node yet" -- indexing lags submission, so both are
// retryable. ErrTransactionFailed and ErrNoMerchantTransfer describe a
// settled transaction and retrying cannot change them.
var (
	ErrReferenceNotFound      = errors.New("no transaction found for reference")
	ErrTransactionUnavailable = errors.New("transaction details not yet available")
	ErrTransactionFailed      = errors.New("transaction failed on-chain")
	ErrNoMerchantTransfer     = errors.New("no qualifying transfer to merchant found")
)

// TransferOutcome describes a confirmed, successful transfer located by
// its payment reference.
type TransferOutcome struct {
	Signature        string
	Slot             uint64
	MerchantLamports uint64
}

// Service wraps Solana RPC calls behind the operations the payment core
// needs: locate transactions by reference, inspect their outcome, and
// build transfer transactions.
type Service struct {
	client   *rpc.Client
	merchant solanago.PublicKey
}

func NewService(cfg models.SolanaConfig) (*Service, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("solana RPC URL cannot be empty")
	}
	merchant, err := solanago.PublicKeyFromBase58(cfg.MerchantAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid merchant address %q: %w", cfg.MerchantAddress, err)
	}

	zap.L().Info("Initializing Solana RPC client",
		zap.String("rpc_url", cfg.RPCURL),
		zap.String("merchant", merchant.String()))

	return &Service{
		client:   rpc.New(cfg.RPCURL),
		merchant: merchant,
	}, nil
}

// Merchant returns the configured merchant address in base58 form.
func (s *Service) Merchant() string {
	return s.merchant.String()
}

// FindReferenceSignatures returns signatures of transactions tagged with
// the reference, most recent first. An empty result is reported as
// ErrReferenceNotFound: the transaction may simply not be indexed yet.
func (s *Service) FindReferenceSignatures(ctx context.Context, reference string) ([]string, error) {
	refKey, err := solanago.PublicKeyFromBase58(reference)
	if err != nil {
		return nil, fmt.Errorf("invalid reference %q: %w", reference, err)
	}

	limit := 10
	signatures, err := s.client.GetSignaturesForAddressWithOpts(ctx, refKey,
		&rpc.GetSignaturesForAddressOpts{
			Limit:      &limit,
			Commitment: rpc.CommitmentConfirmed,
		})
	if err != nil {
		return nil, fmt.Errorf("signature lookup failed: %w", err)
	}
	if len(signatures) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrReferenceNotFound, reference)
	}

	out := make([]string, 0, len(signatures))
	for _, sig := range signatures {
		out = append(out, sig.Signature.String())
	}
	return out, nil
}

// GetTransferOutcome fetches transaction details and checks whether it is
// a successful transfer of at least minLamports to the merchant.
func (s *Service) GetTransferOutcome(ctx context.Context, signature string, minLamports uint64) (*TransferOutcome, error) {
	sig, err := solanago.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature %q: %w", signature, err)
	}

	result, err := s.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:   solanago.EncodingBase64,
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		// The node knows the signature but has not materialized details yet
		return nil, fmt.Errorf("%w: %v", ErrTransactionUnavailable, err)
	}
	if result == nil || result.Meta == nil {
		return nil, fmt.Errorf("%w: %s", ErrTransactionUnavailable, signature)
	}

	if result.Meta.Err != nil {
		zap.L().Warn("Transaction failed on-chain",
			zap.String("signature", signature),
			zap.Any("error", result.Meta.Err))
		return nil, fmt.Errorf("%w: %v", ErrTransactionFailed, result.Meta.Err)
	}

	decoded, err := result.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction %s: %w", signature, err)
	}

	received, found := merchantLamportDelta(decoded.Message.AccountKeys, result.Meta, s.merchant)
	if !found || received == 0 {
		return nil, fmt.Errorf("%w: signature %s", ErrNoMerchantTransfer, signature)
	}
	if received < minLamports {
		return nil, fmt.Errorf("%w: merchant received %d lamports, expected at least %d",
			ErrNoMerchantTransfer, received, minLamports)
	}

	return &TransferOutcome{
		Signature:        signature,
		Slot:             uint64(result.Slot),
		MerchantLamports: received,
	}, nil
}

// merchantLamportDelta computes how many lamports the merchant account
// gained in the transaction, from the pre/post balance arrays.
func merchantLamportDelta(accountKeys []solanago.PublicKey, meta *rpc.TransactionMeta, merchant solanago.PublicKey) (uint64, bool) {
	for i, key := range accountKeys {
		if !key.Equals(merchant) {
			continue
		}
		if i >= len(meta.PreBalances) || i >= len(meta.PostBalances) {
			return 0, false
		}
		pre := meta.PreBalances[i]
		post := meta.PostBalances[i]
		if post <= pre {
			return 0, true
		}
		return post - pre, true
	}
	return 0, false
}

// LamportsFromSOL converts a SOL amount to lamports (the chain's smallest
// unit). Sub-lamport remainders are truncated.
func LamportsFromSOL(amount decimal.Decimal) uint64 {
	lamports := amount.Mul(decimal.NewFromInt(int64(solanago.LAMPORTS_PER_SOL)))
	return uint64(lamports.IntPart())
}
