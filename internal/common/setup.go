package common

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"insurance-vault-go/internal/aggregate"
	"insurance-vault-go/internal/claims"
	"insurance-vault-go/internal/database"
	"insurance-vault-go/internal/evm"
	"insurance-vault-go/internal/ledger"
	"insurance-vault-go/internal/memledger"
	"insurance-vault-go/internal/models"

	ethcommon "github.com/ethereum/go-ethereum/common"
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
	Ledger       ledger.Ledger
	DbService    *database.Service
	Orchestrator *claims.Orchestrator
	Collector    *aggregate.Collector
	Vaults       *VaultDirectory
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

// InitializeLedger connects to the chain, or builds the demo protocol in memory
// when simulation is enabled
func InitializeLedger(ctx context.Context, cfg models.ChainConfig) (ledger.Ledger, error) {
	if cfg.Simulate {
		sender := cfg.User
		if sender == (ethcommon.Address{}) {
			sender = memledger.DemoUser
		}
		zap.L().Info("Using simulated ledger", zap.String("sender", sender.Hex()))
		return memledger.NewDemo(sender, uint64(time.Now().Unix())), nil
	}

	zap.L().Info("Connecting to chain", zap.String("rpc_url", cfg.RpcUrl))
	svc, err := evm.NewService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to chain: %w", err)
	}
	return svc, nil
}

func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, JournalConfig(cfg))
	if err != nil {
		return nil, err
	}

	l, err := InitializeLedger(ctx, cfg.Chain)
	if err != nil {
		dbService.Close()
		return nil, err
	}

	vaults, err := LoadVaultDisplay(cfg.Display.VaultsFile)
	if err != nil {
		l.Close()
		dbService.Close()
		return nil, err
	}

	services := NewServices(l, dbService, vaults, cfg.Poller.Concurrency)
	if err := services.Orchestrator.LoadExercised(ctx); err != nil {
		zap.L().Warn("Starting without journaled exercised receipts", zap.Error(err))
	}
	return services, nil
}

// NewServices wires the claim orchestrator and snapshot collector over an
// already open ledger and journal
func NewServices(l ledger.Ledger, dbService *database.Service, vaults *VaultDirectory, concurrency int) *Services {
	orchestrator := claims.NewOrchestrator(l, dbService, claims.WithConcurrency(concurrency))
	collector := aggregate.NewCollector(l,
		aggregate.WithConcurrency(concurrency),
		aggregate.WithDisplay(vaults.Lookup),
		aggregate.WithReceiptCache(dbService))

	return &Services{
		Ledger:       l,
		DbService:    dbService,
		Orchestrator: orchestrator,
		Collector:    collector,
		Vaults:       vaults,
	}
}

// JournalConfig returns the database settings for the action journal. A
// simulated ledger lives only as long as the process, so its journal does too.
func JournalConfig(cfg *models.Config) models.DatabaseConfig {
	db := cfg.Database
	if cfg.Chain.Simulate {
		db.Path = ":memory:"
		db.MaxOpenConns = 1
		db.MaxIdleConns = 1
		db.ConnMaxLifetime = 0
		db.ConnMaxIdleTime = 0
	}
	return db
}

// InitializeDatabaseOnly initializes just the action journal without a ledger
// Useful for read-only operations like browsing action history
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, JournalConfig(cfg))
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

// VaultSet returns the configured vaults, or discovers them through the factory
func (cs *Services) VaultSet(ctx context.Context, configured []ethcommon.Address) ([]ethcommon.Address, error) {
	if len(configured) > 0 {
		return configured, nil
	}
	return cs.Collector.Discover(ctx)
}

func (cs *Services) Close() {
	if cs.Ledger != nil {
		cs.Ledger.Close()
	}
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
