package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/custody-core/internal/api"
	"github.com/sheikh-saqib/custody-core/internal/config"
	"github.com/sheikh-saqib/custody-core/internal/escrow"
	"github.com/sheikh-saqib/custody-core/internal/events/kafka"
	interfaces "github.com/sheikh-saqib/custody-core/internal/interfaces"
	"github.com/sheikh-saqib/custody-core/internal/ledger"
	"github.com/sheikh-saqib/custody-core/internal/logging"
	"github.com/sheikh-saqib/custody-core/internal/metrics"
	"github.com/sheikh-saqib/custody-core/internal/models"
	"github.com/sheikh-saqib/custody-core/internal/reconciliation"
	"github.com/sheikh-saqib/custody-core/internal/risk"
	"github.com/sheikh-saqib/custody-core/internal/storage/memory"
	"github.com/sheikh-saqib/custody-core/internal/storage/postgres"
)

// store is everything the services need from one backend.
type store interface {
	interfaces.LedgerStore
	interfaces.BalanceStore
	interfaces.EscrowLockStore
	interfaces.TxRunner
	interfaces.ReportStore
	interfaces.RiskConfigStore
	interfaces.ViolationStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	st, legacy, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	var (
		ledgerOpts = []ledger.Option{ledger.WithFeePool(cfg.FeePoolAccountID)}
		escrowOpts = []escrow.Option{escrow.WithTimeout(cfg.BalanceOpTimeout)}
		reconOpts  = []reconciliation.Option{
			reconciliation.WithTimeout(cfg.ReconciliationTimeout),
			reconciliation.WithLegacySources(legacy...),
		}
		riskOpts []risk.Option
	)
	if len(cfg.KafkaBrokers) > 0 {
		publisher := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopicPrefix, logger)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("kafka writer close failed", zap.Error(err))
			}
		}()
		ledgerOpts = append(ledgerOpts, ledger.WithPublisher(publisher))
		escrowOpts = append(escrowOpts, escrow.WithPublisher(publisher))
		reconOpts = append(reconOpts, reconciliation.WithPublisher(publisher))
		riskOpts = append(riskOpts, risk.WithPublisher(publisher))
		logger.Info("publishing events to kafka", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	riskDefaults := models.DefaultGlobalRiskConfig()
	if cfg.RiskConfigFile != "" {
		riskDefaults, err = risk.LoadGlobalConfigFile(cfg.RiskConfigFile)
		if err != nil {
			return fmt.Errorf("risk config file: %w", err)
		}
		logger.Info("loaded risk defaults", zap.String("path", cfg.RiskConfigFile))
	}

	ledgerSvc := ledger.NewLedger(st, logger, ledgerOpts...)
	escrowSvc := escrow.NewEngine(st, ledgerSvc, logger, escrowOpts...)
	reconSvc := reconciliation.NewEngine(st, st, st, logger, reconOpts...)
	riskCache := risk.NewConfigCache(st, cfg.RiskConfigTTL, time.Now, riskDefaults)
	riskSvc := risk.NewManager(st, st, riskCache, logger, riskOpts...)

	var scheduler *reconciliation.Scheduler
	if cfg.EnableScheduler {
		scheduler = reconciliation.NewScheduler(reconSvc, logger, cfg.ReconciliationTimeout)
		if err := scheduler.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	r := api.NewRouter(api.Services{
		Escrow:         escrowSvc,
		Ledger:         ledgerSvc,
		Reconciliation: reconSvc,
		Risk:           riskSvc,
	}, logger)
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port), zap.String("storage", cfg.Storage))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exited")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store, []interfaces.LegacyTotalsSource, func(), error) {
	if cfg.Storage != "postgres" {
		logger.Warn("using in-memory storage, balances are lost on restart")
		return memory.NewMemoryStore(), nil, func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.Warn("database close failed", zap.Error(err))
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		closeDB()
		return nil, nil, nil, fmt.Errorf("ping database: %w", err)
	}

	pg := postgres.NewPostgresStore(db)
	if err := pg.Migrate(pingCtx); err != nil {
		closeDB()
		return nil, nil, nil, fmt.Errorf("migrate: %w", err)
	}

	tables, err := postgres.ParseLegacyFeeTables(db, cfg.LegacyFeeTables)
	if err != nil {
		closeDB()
		return nil, nil, nil, fmt.Errorf("LEGACY_FEE_TABLES: %w", err)
	}
	legacy := make([]interfaces.LegacyTotalsSource, 0, len(tables))
	for _, t := range tables {
		legacy = append(legacy, t)
	}
	logger.Info("connected to postgres", zap.Int("legacy_sources", len(legacy)))
	return pg, legacy, closeDB, nil
}
