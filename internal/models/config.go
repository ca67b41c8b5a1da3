package models

import "time"

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig
	Solana   SolanaConfig
	Payments PaymentsConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// SolanaConfig holds chain endpoint and merchant identity settings
type SolanaConfig struct {
	RPCURL          string
	MerchantAddress string
}

// PaymentsConfig holds verification engine and watcher settings
type PaymentsConfig struct {
	BackoffBase   time.Duration
	BackoffMax    time.Duration
	MaxRetries    int
	WatchInterval time.Duration
	ProductsFile  string
}
