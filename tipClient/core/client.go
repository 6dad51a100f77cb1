package core

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/megavibe/megavibe-node/tipClient/api"
	"github.com/megavibe/megavibe-node/tipClient/bridge/lifi"
	"github.com/megavibe/megavibe-node/tipClient/chains"
	"github.com/megavibe/megavibe-node/tipClient/chains/evm"
	"github.com/megavibe/megavibe-node/tipClient/config"
	"github.com/megavibe/megavibe-node/tipClient/constant"
	"github.com/megavibe/megavibe-node/tipClient/db"
	"github.com/megavibe/megavibe-node/tipClient/history"
	"github.com/megavibe/megavibe-node/tipClient/metrics"
	"github.com/megavibe/megavibe-node/tipClient/orchestrator"
)

// TipClient owns every long-lived component of the tip daemon
type TipClient struct {
	ctx context.Context
	log zerolog.Logger
	cfg *config.Config

	registry     *chains.Registry
	pool         *evm.SenderPool
	orchestrator *orchestrator.Orchestrator
	metrics      *metrics.Metrics

	// nil when the tip journal is disabled
	db       *db.DB
	recorder *history.Recorder
	cleaner  *db.JournalCleaner

	server *api.Server

	startOnce sync.Once
	closeOnce sync.Once
}

// NewTipClient wires the client from cfg. Nothing is dialed or started yet.
func NewTipClient(ctx context.Context, log zerolog.Logger, cfg *config.Config) (*TipClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	registry, err := chains.NewRegistry(cfg.Chains, log)
	if err != nil {
		return nil, err
	}
	target, ok := registry.Chain(cfg.TargetChainID)
	if !ok {
		return nil, fmt.Errorf("target chain %d is not configured", cfg.TargetChainID)
	}

	tc := &TipClient{
		ctx:      ctx,
		log:      log,
		cfg:      cfg,
		registry: registry,
		metrics:  metrics.New(),
	}

	wallet, err := evm.NewWallet(cfg.WalletKeyHex)
	if err != nil {
		if cfg.WalletKeyHex != "" {
			return nil, err
		}
		log.Warn().Msg("no wallet key configured, tips will be rejected until one is set")
	}

	tc.pool = evm.NewSenderPool(registry, wallet, evm.ReceiptPolicy{
		PollInterval: time.Duration(cfg.Receipt.PollIntervalMs) * time.Millisecond,
		Timeout:      time.Duration(cfg.Receipt.TimeoutSeconds) * time.Second,
	}, log)

	native, err := tc.pool.TipExecutor(target.ID, target.TipContract, target.USDCAddress)
	if err != nil {
		return nil, fmt.Errorf("target chain %s: %w", target.Name, err)
	}

	bridge := lifi.NewProvider(lifi.NewClient(cfg.LiFi, log), tc.pool, log)

	opts := []orchestrator.Option{orchestrator.WithObserver(tc.metrics)}
	if cfg.History.Enabled {
		home := cfg.NodeHome
		if home == "" {
			home = constant.DefaultNodeHome
		}
		tc.db, err = db.OpenFileDB(filepath.Join(home, constant.DatabasesSubdir), db.DefaultFileName, true)
		if err != nil {
			return nil, fmt.Errorf("failed to open tip journal: %w", err)
		}
		tc.recorder = history.NewRecorder(tc.db, log)
		tc.cleaner = db.NewJournalCleaner(tc.db, cfg.History, log)
		opts = append(opts, orchestrator.WithObserver(tc.recorder))
	}

	deps := orchestrator.Dependencies{
		Registry: registry,
		Quotes:   bridge,
		Native:   native,
	}
	if wallet != nil {
		deps.Wallet = wallet
	}
	tc.orchestrator, err = orchestrator.New(orchestrator.ConfigFromApp(cfg), deps, log, opts...)
	if err != nil {
		tc.closeResources()
		return nil, err
	}

	services := api.Services{
		Tips:    tc.orchestrator,
		Chains:  registry,
		Metrics: tc.metrics.Handler(),
	}
	if tc.db != nil {
		services.Journal = tc.db
	}
	tc.server = api.NewServer(log, cfg.QueryServerPort, services)

	return tc, nil
}

// Orchestrator returns the tip orchestrator
func (tc *TipClient) Orchestrator() *orchestrator.Orchestrator {
	return tc.orchestrator
}

// Registry returns the chain registry
func (tc *TipClient) Registry() *chains.Registry {
	return tc.registry
}

// Journal returns the tip journal, or nil when disabled
func (tc *TipClient) Journal() *db.DB {
	return tc.db
}

// StartBackground starts the journal writer and cleaner
func (tc *TipClient) StartBackground() error {
	var err error
	tc.startOnce.Do(func() {
		if tc.recorder != nil {
			tc.recorder.Start()
		}
		if tc.cleaner != nil {
			err = tc.cleaner.Start(tc.ctx)
		}
	})
	return err
}

// Start runs the daemon until the context is cancelled
func (tc *TipClient) Start() error {
	tc.log.Info().Msg("🚀 Starting tip client...")

	if err := tc.StartBackground(); err != nil {
		tc.Close()
		return err
	}
	if err := tc.server.Start(); err != nil {
		tc.Close()
		return fmt.Errorf("failed to start query server: %w", err)
	}

	tc.log.Info().
		Int64("target_chain", tc.cfg.TargetChainID).
		Int("chains", len(tc.registry.All())).
		Bool("journal", tc.db != nil).
		Msg("✅ Initialization complete. Entering main loop...")

	<-tc.ctx.Done()

	tc.log.Info().Msg("🛑 Shutting down tip client...")
	return tc.Close()
}

// Close waits for running tips and releases every resource. Safe to call
// more than once.
func (tc *TipClient) Close() error {
	var err error
	tc.closeOnce.Do(func() {
		if tc.server != nil {
			if serr := tc.server.Stop(); serr != nil {
				tc.log.Error().Err(serr).Msg("failed to stop query server")
			}
		}
		tc.orchestrator.Wait()
		err = tc.closeResources()
	})
	return err
}

func (tc *TipClient) closeResources() error {
	if tc.cleaner != nil {
		tc.cleaner.Stop()
	}
	if tc.recorder != nil {
		tc.recorder.Stop()
	}
	if tc.pool != nil {
		tc.pool.Close()
	}
	if tc.db != nil {
		return tc.db.Close()
	}
	return nil
}
