package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sixpath-store-go/internal/models"
	"sixpath-store-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GetBalance returns the current token balance for a user (O(1) lookup).
// Unknown users have a zero balance.
func (s *Service) GetBalance(ctx context.Context, username string) (int64, error) {
	zap.L().Debug("Getting balance", zap.String("username", username))

	var balance int64
	err := s.db.QueryRowContext(ctx, queryGetBalance, username).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		zap.L().Error("Failed to get balance", zap.String("username", username), zap.Error(err))
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}

	return balance, nil
}

// SpendTokens atomically debits a user's balance. The decrement is guarded
// in SQL (balance >= amount) so concurrent spends cannot overdraw. Returns
// the remaining balance.
func (s *Service) SpendTokens(ctx context.Context, username string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("spend amount must be positive, got %d", amount)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var balanceBefore int64
	err = tx.QueryRowContext(ctx, queryGetBalance, username).Scan(&balanceBefore)
	if err == sql.ErrNoRows || (err == nil && balanceBefore < amount) {
		return 0, fmt.Errorf("%w: user %s has %d, needs %d", store.ErrInsufficientBalance, username, balanceBefore, amount)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get current balance: %w", err)
	}

	result, err := tx.ExecContext(ctx, queryGuardedBalanceDecrement, amount, username, amount)
	if err != nil {
		return 0, fmt.Errorf("failed to debit balance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return 0, fmt.Errorf("%w: user %s", store.ErrInsufficientBalance, username)
	}

	balanceAfter := balanceBefore - amount
	_, err = tx.ExecContext(ctx, queryInsertLedgerTransaction,
		uuid.New().String(), username, "debit", -amount,
		balanceBefore, balanceAfter, "", "", time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to insert ledger transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit debit: %w", err)
	}

	zap.L().Info("Tokens spent",
		zap.String("username", username),
		zap.Int64("amount", amount),
		zap.Int64("remaining", balanceAfter))
	return balanceAfter, nil
}

// GetTransactionHistory returns paginated ledger history for a user
func (s *Service) GetTransactionHistory(ctx context.Context, username string, limit, offset int) ([]models.LedgerTransaction, error) {
	rows, err := s.db.QueryContext(ctx, queryGetTransactionHistory, username, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var transactions []models.LedgerTransaction
	for rows.Next() {
		var tx models.LedgerTransaction
		err := rows.Scan(&tx.ID, &tx.Username, &tx.TransactionType, &tx.Amount,
			&tx.BalanceBefore, &tx.BalanceAfter, &tx.Reference, &tx.Signature, &tx.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}

	return transactions, nil
}
