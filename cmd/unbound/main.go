// Command unbound runs the vault node: the vault core with durable
// checkpoints, the operator loops against the configured venue, and the HTTP
// status/admin API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/unboundlabs/unbound/internal/api"
	"github.com/unboundlabs/unbound/internal/asset"
	"github.com/unboundlabs/unbound/internal/config"
	"github.com/unboundlabs/unbound/internal/exchange"
	"github.com/unboundlabs/unbound/internal/operator"
	"github.com/unboundlabs/unbound/internal/store"
	"github.com/unboundlabs/unbound/internal/swap"
	"github.com/unboundlabs/unbound/internal/vault"
	"github.com/unboundlabs/unbound/pkg/kv/pebble"
	"github.com/unboundlabs/unbound/pkg/log"
)

const checkpointInterval = time.Minute

func main() {
	configPath := flag.String("config", "", "path to config JSON")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Root.Fatal().Err(err).Msg("node stopped")
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level, err := log.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	logType := log.ConsoleLogger
	if cfg.LogFormat == "json" {
		logType = log.JSONLogger
	}
	log.Init(log.Options{LogLevel: level, Type: logType})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	db, err := pebble.New(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		return fmt.Errorf("open state db: %w", err)
	}
	st := store.New(db)
	defer st.Close()

	depositAsset := asset.NewToken(cfg.Vault.DepositSymbol, cfg.Vault.DepositDecimals)
	settlementAsset := asset.NewToken(cfg.Vault.SettlementSymbol, cfg.Vault.SettlementDecimals)

	swapper, err := buildSwapper(cfg, depositAsset, settlementAsset)
	if err != nil {
		return err
	}

	v, err := buildVault(cfg, st, depositAsset, settlementAsset, swapper)
	if err != nil {
		return err
	}

	var opSvc *operator.Service
	if cfg.Venue.BaseURL != "" {
		var marginLimit decimal.Decimal
		if cfg.Operator.MarginRatioLimit != "" {
			marginLimit, err = decimal.NewFromString(cfg.Operator.MarginRatioLimit)
			if err != nil {
				return fmt.Errorf("parse margin ratio limit: %w", err)
			}
		}
		venue := exchange.NewClient(cfg.Venue.BaseURL, cfg.Venue.APIKey, cfg.Venue.APISecret)
		opSvc = operator.New(operator.Config{
			Vault:              v,
			Venue:              venue,
			Swapper:            swapper,
			Account:            asset.Account(cfg.Vault.Operator),
			VenueFunding:       "venue",
			WithdrawAddress:    cfg.Venue.WithdrawAddress,
			VaultAccount:       asset.Account(cfg.Vault.Account),
			DepositAsset:       depositAsset,
			SettlementAsset:    settlementAsset,
			SettlementDecimals: cfg.Vault.SettlementDecimals,
			DepositAssetSymbol: cfg.Vault.DepositSymbol,
			SettlementSymbol:   cfg.Vault.SettlementSymbol,
			Market:             cfg.Venue.Market,
			DepositInterval:    seconds(cfg.Operator.DepositIntervalSeconds),
			WithdrawalInterval: seconds(cfg.Operator.WithdrawalIntervalSeconds),
			NAVInterval:        seconds(cfg.Operator.NAVIntervalSeconds),
			PositionInterval:   seconds(cfg.Operator.PositionIntervalSeconds),
			BatchSize:          cfg.Operator.BatchSize,

			RebalanceThresholdBps: cfg.Operator.RebalanceThresholdBps,
			MarginRatioLimit:      marginLimit,
		})
		opSvc.Start(ctx)
		log.Root.Info().Str("venue", cfg.Venue.BaseURL).Str("market", cfg.Venue.Market).Msg("operator loops started")
	} else {
		log.Root.Warn().Msg("no venue configured, operator loops disabled")
	}

	go checkpointLoop(ctx, v, st)

	apiServer := api.NewServer(api.Config{
		Vault:        v,
		Operator:     opSvc,
		Journal:      st,
		AdminAccount: asset.Account(cfg.Vault.Owner),
		AdminKey:     cfg.AdminKey,
	})
	httpServer := &http.Server{
		Addr:              cfg.APIListen,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Root.Info().Str("listen", cfg.APIListen).Msg("api listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	}

	log.Root.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Root.Error().Err(err).Msg("api shutdown")
	}
	if opSvc != nil {
		opSvc.Wait()
	}

	// Final checkpoint so restart picks up exactly where we stopped.
	if err := st.SaveCheckpoint(v.Snapshot()); err != nil {
		return fmt.Errorf("final checkpoint: %w", err)
	}
	return nil
}

func buildSwapper(cfg config.Config, depositAsset, settlementAsset *asset.Token) (swap.Executor, error) {
	switch cfg.Swap.Mode {
	case "router":
		return swap.NewRouter(cfg.Swap.RouterURL), nil
	case "local":
		local := swap.NewLocal("liquidity", cfg.Swap.FeeBps)
		local.AddToken(depositAsset)
		local.AddToken(settlementAsset)
		// Self-contained mode has no price feed; both directions start at
		// parity and tests or tooling adjust from there.
		local.SetPrice(depositAsset.Symbol(), settlementAsset.Symbol(), 1, 1)
		local.SetPrice(settlementAsset.Symbol(), depositAsset.Symbol(), 1, 1)
		return local, nil
	default:
		return nil, fmt.Errorf("unknown swap mode %q", cfg.Swap.Mode)
	}
}

func buildVault(cfg config.Config, st *store.Store, depositAsset, settlementAsset *asset.Token, swapper swap.Executor) (*vault.Vault, error) {
	vaultCfg := vault.Config{
		Owner:            asset.Account(cfg.Vault.Owner),
		Operator:         asset.Account(cfg.Vault.Operator),
		Guardian:         asset.Account(cfg.Vault.Guardian),
		Account:          asset.Account(cfg.Vault.Account),
		DepositAsset:     depositAsset,
		DepositSymbol:    cfg.Vault.DepositSymbol,
		SettlementAsset:  settlementAsset,
		SettlementSymbol: cfg.Vault.SettlementSymbol,
		Swapper:          swapper,
		Params: vault.Params{
			NAVCooldown:     cfg.Vault.NAVCooldownSeconds,
			MaxNAVChangeBps: cfg.Vault.MaxNAVChangeBps,
			KeepRatioBps:    cfg.Vault.KeepRatioBps,
			WithdrawFeeBps:  cfg.Vault.WithdrawFeeBps,
			FeeRecipient:    asset.Account(cfg.Vault.FeeRecipient),
		},
		Events: func(e vault.Event) {
			if err := st.AppendEvent(e); err != nil {
				log.Store.Error().Err(err).Str("kind", e.Kind.String()).Msg("journal event")
			}
		},
	}

	snap, err := st.LoadCheckpoint()
	switch {
	case err == nil:
		v, err := vault.Restore(vaultCfg, snap)
		if err != nil {
			return nil, fmt.Errorf("restore vault: %w", err)
		}
		log.Vault.Info().
			Str("supply", v.TotalSupply().Dec()).
			Str("nav", v.TotalNAV().Dec()).
			Msg("vault restored from checkpoint")
		return v, nil
	case errors.Is(err, store.ErrNoCheckpoint):
		v, err := vault.New(vaultCfg)
		if err != nil {
			return nil, fmt.Errorf("new vault: %w", err)
		}
		log.Vault.Info().Msg("vault initialized fresh")
		return v, nil
	default:
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
}

func checkpointLoop(ctx context.Context, v *vault.Vault, st *store.Store) {
	ticker := time.NewTicker(checkpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := st.SaveCheckpoint(v.Snapshot()); err != nil {
				log.Store.Error().Err(err).Msg("periodic checkpoint")
			}
		}
	}
}

func seconds(v uint64) time.Duration {
	return time.Duration(v) * time.Second
}
