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
	"time"

	"sixpath-store-go/internal/common"
	"sixpath-store-go/internal/config"
	"sixpath-store-go/internal/payments"

	"go.uber.org/zap"
)

func printResult(result *payments.VerifyResult) {
	fmt.Printf("Outcome:  %s\n", result.State)
	fmt.Printf("Attempts: %d\n", result.Attempts)
	if result.Signature != "" {
		fmt.Printf("Signature: %s\n", result.Signature)
	}
	if result.Err != nil {
		fmt.Printf("Reason:   %v\n", result.Err)
	}
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	refFlag := flag.String("ref", "", "Payment reference to verify")
	userFlag := flag.String("user", "", "Buyer username (required with -recover)")
	recoverFlag := flag.Bool("recover", false, "Run the identity-gated recovery path")
	retriesFlag := flag.Int("retries", -1, "Max retries (negative uses VERIFY_MAX_RETRIES)")
	purgeFlag := flag.Duration("purge", 0, "Purge pending payments older than this age and exit (e.g. 24h)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	if *purgeFlag > 0 {
		dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
		if err != nil {
			logger.Fatal("Failed to initialize database", zap.Error(err))
		}
		defer dbService.Close()

		purged, err := dbService.PurgeStale(ctx, *purgeFlag)
		if err != nil {
			logger.Fatal("Failed to purge stale pending payments", zap.Error(err))
		}
		fmt.Printf("Purged %d pending payment(s) older than %s\n", purged, *purgeFlag)
		return
	}

	if *refFlag == "" {
		logger.Fatal("-ref is required")
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	start := time.Now()
	var result *payments.VerifyResult
	if *recoverFlag {
		if *userFlag == "" {
			logger.Fatal("-user is required with -recover")
		}
		result, err = services.PaymentService.Recover(ctx, *userFlag, *refFlag, *retriesFlag)
	} else {
		result, err = services.PaymentService.Verify(ctx, *refFlag, *retriesFlag)
	}

	printResult(result)
	fmt.Printf("Elapsed:  %s\n", time.Since(start).Round(time.Millisecond))

	if err != nil {
		logger.Fatal("Verification did not succeed", zap.Error(err))
	}
	logger.Info("Verification succeeded", zap.String("reference", *refFlag))
}
