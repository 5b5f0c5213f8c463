package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"orderlink/internal/api"
	"orderlink/internal/config"
	"orderlink/internal/events"
	"orderlink/internal/ingest"
	"orderlink/internal/logging"
	"orderlink/internal/match"
	"orderlink/internal/metrics"
	"orderlink/internal/model"
	"orderlink/internal/sched"
	"orderlink/internal/store"
	"orderlink/internal/worker"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "orderlink.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	st, err := buildStore(cfg, logger)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	broker := buildBroker(cfg, logger)
	metrics.RegisterDefault()

	drain := map[model.Provider]bool{}
	for _, p := range cfg.Reconcile.DrainProviders {
		drain[p] = true
	}
	workers := []*worker.Worker{}
	for _, p := range model.Providers() {
		var m match.Matcher
		if p == model.ProviderCourier {
			tm := match.NewTierMatcher(st, logger.Named("match"))
			tm.PriceTolerance = cfg.Reconcile.PriceTolerance
			tm.CandidateLimit = cfg.Reconcile.CandidateLimit
			m = tm
		} else {
			im := match.NewIdentityMatcher(st, logger.Named("match"))
			im.RecentWindow = cfg.Reconcile.RecentWindow
			m = im
		}
		w := worker.New(p, st, m, broker, logger)
		w.BatchSize = cfg.Reconcile.BatchSize
		w.RecordTimeout = cfg.Reconcile.RecordTimeout.Std()
		w.Drain = drain[p]
		workers = append(workers, w)
	}

	stop := make(chan struct{})
	for _, w := range workers {
		w.Start(cfg.Reconcile.Interval.Std(), stop)
	}
	startIngestion(cfg, st, logger)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.NewServer(broker, workers, logger).Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("reconciler listening", zap.String("addr", cfg.Listen))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}

// buildStore selects Postgres when a DSN is configured, else the in-memory
// store seeded from config (dev mode).
func buildStore(cfg config.Config, logger *zap.Logger) (store.Store, error) {
	if cfg.DatabaseURL != "" {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if os.Getenv("DB_MIGRATE") != "false" {
			if err := sp.MigrateDir("db/migrations"); err != nil {
				logger.Warn("migrations failed", zap.Error(err))
			}
		}
		return sp, nil
	}
	mem := store.NewMemory()
	for _, seed := range cfg.Seed {
		mem.SeedAccountOperations(seed.Provider, seed.AccountID, seed.Operations...)
	}
	logger.Info("no databaseUrl configured, using in-memory store",
		zap.Int("seedAccounts", len(cfg.Seed)))
	return mem, nil
}

func buildBroker(cfg config.Config, logger *zap.Logger) events.Broker {
	if cfg.RedisURL != "" {
		if rb, err := events.NewRedis(cfg.RedisURL); err == nil {
			return rb
		} else {
			logger.Warn("redis broker init failed, falling back to in-memory", zap.Error(err))
		}
	}
	return events.NewMemory()
}

// startIngestion wires an adapter for each provider with a configured feed
// URL. The courier lead feed polls on the adaptive business-hours cadence;
// the rest poll on the fixed ingest interval.
func startIngestion(cfg config.Config, st store.Store, logger *zap.Logger) {
	feeds := map[model.Provider]string{
		model.ProviderCourier:   os.Getenv("COURIER_FEED_URL"),
		model.ProviderWarehouse: os.Getenv("WAREHOUSE_FEED_URL"),
		model.ProviderDigital:   os.Getenv("DIGITAL_FEED_URL"),
	}
	tokens := map[model.Provider]string{
		model.ProviderCourier:   os.Getenv("COURIER_FEED_TOKEN"),
		model.ProviderWarehouse: os.Getenv("WAREHOUSE_FEED_TOKEN"),
		model.ProviderDigital:   os.Getenv("DIGITAL_FEED_TOKEN"),
	}
	sinces := map[model.Provider]string{
		model.ProviderCourier:   os.Getenv("COURIER_FEED_SINCE"),
		model.ProviderWarehouse: os.Getenv("WAREHOUSE_FEED_SINCE"),
		model.ProviderDigital:   os.Getenv("DIGITAL_FEED_SINCE"),
	}
	for p, feed := range feeds {
		if feed == "" {
			continue
		}
		a := ingest.NewAdapter(p, ingest.NewHTTPClient(feed, tokens[p]), st, cfg.Ingest.RateLimit, logger)
		if s := sinces[p]; s != "" {
			a.SetWatermark(s)
		}
		run := func(ctx context.Context) { _, _ = a.RunOnce(ctx) }
		if p == model.ProviderCourier {
			sched.Adaptive(cfg.Ingest.ShortInterval.Std(), cfg.Ingest.LongInterval.Std(), cfg.Ingest.BusinessHours, run)
		} else {
			sched.Every(cfg.Ingest.Interval.Std(), run)
		}
		logger.Info("ingestion adapter started", zap.String("provider", string(p)))
	}
}
