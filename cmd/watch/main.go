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
	"os"
	"os/signal"
	"syscall"
	"time"

	"sixpath-store-go/internal/common"
	"sixpath-store-go/internal/config"

	"go.uber.org/zap"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	refFlag := flag.String("ref", "", "Payment reference to watch")
	timeoutFlag := flag.Duration("timeout", 2*time.Minute, "Give up after this long")
	flag.Parse()

	if *refFlag == "" {
		logger.Fatal("-ref is required")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Watching payment status",
		zap.String("reference", *refFlag),
		zap.Duration("interval", cfg.Payments.WatchInterval),
		zap.Duration("timeout", *timeoutFlag))

	watcher := services.PaymentService.WatchPayment(ctx, *refFlag)
	defer watcher.Stop()

	select {
	case <-watcher.Verified():
		fmt.Printf("Payment %s verified\n", *refFlag)
	case <-time.After(*timeoutFlag):
		fmt.Printf("Gave up waiting for %s after %s\n", *refFlag, *timeoutFlag)
		os.Exit(1)
	case sig := <-sigCh:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	}
}
