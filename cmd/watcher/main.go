/**
 * Copyright 2025-present Coinbase Global, Inc.
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

	"insurance-vault-go/internal/common"
	"insurance-vault-go/internal/config"
	"insurance-vault-go/internal/models"
	"insurance-vault-go/internal/poller"
	"insurance-vault-go/internal/units"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// ANSI color helpers for console output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

func printSummary(snap *models.Snapshot, verbose bool) {
	fmt.Printf("\n%s[%s] Snapshot #%d at virtual time %s (%d vaults, %d receipts)%s\n",
		colorCyan, snap.FetchedAt.Format("15:04:05"), snap.Seq,
		time.Unix(int64(snap.CurrentTime), 0).UTC().Format("2006-01-02 15:04"),
		len(snap.Vaults), len(snap.Receipts), colorReset)

	for _, vs := range snap.Vaults {
		v := vs.View
		color := colorGreen
		if v.PendingClaims.Sign() > 0 {
			color = colorYellow
		}
		fmt.Printf("  %s%-16s TVL %-16s buffer %-16s pending %-14s price %s%s\n",
			color, v.Name, units.FormatUSD(v.TotalAssets), units.FormatUSD(v.AvailableBuffer),
			units.FormatUSD(v.PendingClaims), units.FormatSharePrice(v.SharePrice), colorReset)
	}

	pending := 0
	for _, r := range snap.Receipts {
		if !r.Exercised {
			pending++
			fmt.Printf("  %s⧗ %s%s\n", colorYellow, common.ReceiptLine(r), colorReset)
		}
	}
	for _, f := range snap.Failures {
		fmt.Printf("  %s✗ %s%s\n", colorRed, common.FailureLine(f), colorReset)
	}

	if verbose {
		common.PrintSnapshot(snap)
	}

	zap.L().Info("Snapshot committed",
		zap.Uint64("seq", snap.Seq),
		zap.Int("vaults", len(snap.Vaults)),
		zap.Int("pending_receipts", pending),
		zap.Int("failures", len(snap.Failures)))
}

// reload re-reads VAULT_ADDRESSES and USER_ADDRESS and points the poller at them
func reload(p *poller.Poller) {
	if err := godotenv.Overload(); err != nil {
		zap.L().Debug("No .env file to reload", zap.Error(err))
	}
	cfg, err := config.Load()
	if err != nil {
		zap.L().Warn("Keeping current watch set, configuration reload failed", zap.Error(err))
		return
	}
	p.SetVaults(cfg.Poller.Vaults)
	p.SetUser(cfg.Chain.User)
	zap.L().Info("Configuration reloaded",
		zap.Int("vaults", len(cfg.Poller.Vaults)),
		zap.String("user", cfg.Chain.User.Hex()))
}

func main() {
	verbose := flag.Bool("verbose", false, "Print every vault with its policies on each poll")
	interval := flag.Duration("interval", 0, "Override POLL_INTERVAL")
	exercise := flag.Bool("exercise", false, "Exercise pending receipts once their vault buffer covers them")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}
	if *interval > 0 {
		cfg.Poller.Interval = *interval
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting vault watcher")

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if len(cfg.Poller.Vaults) > 0 {
		zap.L().Info("Watching configured vaults", zap.Int("count", len(cfg.Poller.Vaults)))
	} else {
		zap.L().Info("Watching ALL factory vaults (no VAULT_ADDRESSES set)")
	}

	commits := make(chan *models.Snapshot, 1)
	p := poller.NewPoller(poller.PollerConfig{
		Collector: services.Collector,
		Vaults:    cfg.Poller.Vaults,
		User:      cfg.Chain.User,
		Interval:  cfg.Poller.Interval,
		Exercised: services.Orchestrator.ExercisedIds,
		Journal:   services.DbService,
		OnCommit: func(snap *models.Snapshot) {
			printSummary(snap, *verbose)
			if !*exercise {
				return
			}
			// keep only the newest snapshot for the keeper
			select {
			case <-commits:
			default:
			}
			commits <- snap
		},
	})
	services.Orchestrator.SetInvalidate(p.Invalidate)

	if *exercise {
		zap.L().Info("Exercising covered receipts as they appear")
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case snap := <-commits:
					if ids := services.Orchestrator.ExerciseCovered(ctx, snap); len(ids) > 0 {
						zap.L().Info("Exercised covered receipts", zap.Int("count", len(ids)))
					}
				}
			}
		}()
	}

	if err := p.Start(ctx); err != nil {
		zap.L().Fatal("Failed to start poller", zap.Error(err))
	}

	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range sigChan {
		if sig != syscall.SIGHUP {
			break
		}
		reload(p)
	}

	zap.L().Info("Shutdown signal received, stopping watcher...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("Watcher stopped gracefully")
	case <-shutdownCtx.Done():
		zap.L().Warn("Forced shutdown after timeout")
	}
}
