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
	"encoding/base64"
	"flag"
	"fmt"

	"sixpath-store-go/internal/common"
	"sixpath-store-go/internal/config"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	userFlag := flag.String("user", "", "Buyer username (required)")
	productFlag := flag.Int64("product", 0, "Product id from the catalog (required unless -list)")
	buyerFlag := flag.String("buyer", "", "Buyer wallet address for direct-transfer mode")
	listFlag := flag.Bool("list", false, "List catalog products and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if *listFlag {
		common.PrintHeader("PRODUCT CATALOG", common.DefaultWidth)
		for _, product := range services.Catalog.Products() {
			fmt.Printf("  %3d  %-24s %6d tokens  %10s SOL\n",
				product.ID, product.Name, product.TokenAmount, product.PriceSOL.String())
		}
		return
	}

	if *userFlag == "" || *productFlag == 0 {
		logger.Fatal("Both -user and -product are required")
	}

	if *buyerFlag == "" {
		// URL mode: the buyer's wallet supplies the sending identity
		reference, payURL, err := services.PaymentService.InitializePaymentURL(ctx, *userFlag, *productFlag)
		if err != nil {
			logger.Fatal("Failed to initialize payment", zap.Error(err))
		}
		fmt.Printf("Reference:   %s\n", reference)
		fmt.Printf("Payment URL: %s\n", payURL)
		return
	}

	intent, err := services.PaymentService.InitializePayment(ctx, *userFlag, *buyerFlag, *productFlag)
	if err != nil {
		logger.Fatal("Failed to initialize payment", zap.Error(err))
	}

	rawTx, err := intent.Transaction.MarshalBinary()
	if err != nil {
		logger.Fatal("Failed to serialize transaction", zap.Error(err))
	}

	fmt.Printf("Reference:    %s\n", intent.Reference)
	fmt.Printf("Product:      %s (%d tokens, %s SOL)\n",
		intent.Product.Name, intent.Product.TokenAmount, intent.Product.PriceSOL.String())
	fmt.Printf("Unsigned tx:  %s\n", base64.StdEncoding.EncodeToString(rawTx))
	fmt.Println("\nSign and submit the transaction, then run the verify command with the reference.")
}
