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

package main

import (
	"context"
	"flag"
	"fmt"

	"sixpath-store-go/internal/common"
	"sixpath-store-go/internal/config"
	"sixpath-store-go/internal/models"

	"go.uber.org/zap"
)

func formatSignature(signature string) string {
	if signature == "" {
		return "none"
	}
	if len(signature) > 8 {
		return signature[:8] + "..."
	}
	return signature
}

func printTransaction(tx models.LedgerTransaction, isLast bool) {
	symbol := common.BoxPrefix(isLast)
	fmt.Printf("%s %-6s %+8d tokens  (%d -> %d, sig: %s, at: %s)\n",
		symbol,
		tx.TransactionType,
		tx.Amount,
		tx.BalanceBefore,
		tx.BalanceAfter,
		formatSignature(tx.Signature),
		tx.CreatedAt.Format("2006-01-02 15:04:05"))
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	userFlag := flag.String("user", "", "Username to report on (required)")
	limitFlag := flag.Int("limit", 20, "Maximum history entries to show")
	flag.Parse()

	if *userFlag == "" {
		logger.Fatal("-user is required")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	balance, err := dbService.GetBalance(ctx, *userFlag)
	if err != nil {
		logger.Fatal("Failed to get balance", zap.Error(err))
	}

	history, err := dbService.GetTransactionHistory(ctx, *userFlag, *limitFlag, 0)
	if err != nil {
		logger.Fatal("Failed to get transaction history", zap.Error(err))
	}

	common.PrintHeader("TOKEN BALANCE REPORT", common.DefaultWidth)
	fmt.Printf("\n┌─ User: %s\n", *userFlag)
	fmt.Printf("│  Balance: %d tokens\n", balance)
	fmt.Printf("│  History: %d entr(ies)\n", len(history))
	common.PrintBoxSeparator(78)

	for i, tx := range history {
		printTransaction(tx, i == len(history)-1)
	}

	summary := fmt.Sprintf("SUMMARY: %s holds %d tokens across %d recorded transaction(s)",
		*userFlag, balance, len(history))
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Balance query completed",
		zap.String("username", *userFlag),
		zap.Int64("balance", balance),
		zap.Int("history_entries", len(history)))
}
