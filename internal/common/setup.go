package common

import (
	"context"
	"log"
	"strings"

	"sixpath-store-go/internal/catalog"
	"sixpath-store-go/internal/database"
	"sixpath-store-go/internal/models"
	"sixpath-store-go/internal/payments"
	"sixpath-store-go/internal/solana"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService      *database.Service
	SolanaService  *solana.Service
	Catalog        *catalog.Catalog
	PaymentService *payments.Service
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	solanaService, err := solana.NewService(cfg.Solana)
	if err != nil {
		dbService.Close()
		return nil, err
	}

	zap.L().Info("Loading product catalog", zap.String("file", cfg.Payments.ProductsFile))
	productCatalog, err := catalog.Load(cfg.Payments.ProductsFile)
	if err != nil {
		dbService.Close()
		return nil, err
	}

	paymentService := payments.NewService(dbService, solanaService, productCatalog, cfg.Payments)

	return &Services{
		DbService:      dbService,
		SolanaService:  solanaService,
		Catalog:        productCatalog,
		PaymentService: paymentService,
	}, nil
}

// InitializeDatabaseOnly initializes just the database service without
// the Solana RPC client. Useful for read-only operations like querying
// balances.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (cs *Services) Close() {
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
