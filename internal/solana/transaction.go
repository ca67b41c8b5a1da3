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
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// BuildTransferTx constructs an unsigned native-SOL transfer from the
// buyer to the merchant with the payment reference attached to the
// transfer instruction as a read-only non-signer account. The reference
// takes no part in execution; it exists so the transaction can be found
// later with a signature lookup on the reference key. The buyer is the
// fee payer and signs wallet-side.
func (s *Service) BuildTransferTx(ctx context.Context, buyerAddress string, lamports uint64, reference string) (*solanago.Transaction, error) {
	buyer, err := solanago.PublicKeyFromBase58(buyerAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid buyer address %q: %w", buyerAddress, err)
	}
	refKey, err := solanago.PublicKeyFromBase58(reference)
	if err != nil {
		return nil, fmt.Errorf("invalid reference %q: %w", reference, err)
	}
	if lamports == 0 {
		return nil, fmt.Errorf("transfer amount cannot be zero")
	}

	transfer := system.NewTransferInstruction(lamports, buyer, s.merchant).Build()
	data, err := transfer.Data()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transfer instruction: %w", err)
	}

	// Tag the instruction with the reference: read-only, non-signer
	accounts := append(solanago.AccountMetaSlice{}, transfer.Accounts()...)
	accounts = append(accounts, solanago.Meta(refKey))
	tagged := solanago.NewInstruction(system.ProgramID, accounts, data)

	recent, err := s.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent blockhash: %w", err)
	}

	tx, err := solanago.NewTransaction(
		[]solanago.Instruction{tagged},
		recent.Value.Blockhash,
		solanago.TransactionPayer(buyer),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}

	zap.L().Debug("Built transfer transaction",
		zap.String("buyer", buyer.String()),
		zap.String("merchant", s.merchant.String()),
		zap.Uint64("lamports", lamports),
		zap.String("reference", reference))

	return tx, nil
}
