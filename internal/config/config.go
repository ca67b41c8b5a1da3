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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"sixpath-store-go/internal/models"
)

func Load() (*models.Config, error) {
	merchantAddress := os.Getenv("MERCHANT_ADDRESS")
	if merchantAddress == "" {
		return nil, fmt.Errorf("MERCHANT_ADDRESS must be set")
	}

	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	backoffBase, err := getEnvDuration("VERIFY_BACKOFF_BASE", time.Second)
	if err != nil {
		return nil, err
	}

	backoffMax, err := getEnvDuration("VERIFY_BACKOFF_MAX", 8*time.Second)
	if err != nil {
		return nil, err
	}

	watchInterval, err := getEnvDuration("WATCH_INTERVAL", 3*time.Second)
	if err != nil {
		return nil, err
	}

	return &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "store.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
		},
		Solana: models.SolanaConfig{
			RPCURL:          getEnvString("SOLANA_RPC_URL", "https://api.devnet.solana.com"),
			MerchantAddress: merchantAddress,
		},
		Payments: models.PaymentsConfig{
			BackoffBase:   backoffBase,
			BackoffMax:    backoffMax,
			MaxRetries:    getEnvInt("VERIFY_MAX_RETRIES", 3),
			WatchInterval: watchInterval,
			ProductsFile:  getEnvString("PRODUCTS_FILE", "products.yaml"),
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
