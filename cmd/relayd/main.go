package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/TAO-07/no-one-answer/internal/assets"
	"github.com/TAO-07/no-one-answer/internal/config"
	"github.com/TAO-07/no-one-answer/internal/health"
	"github.com/TAO-07/no-one-answer/internal/httpserver"
	"github.com/TAO-07/no-one-answer/internal/logging"
	"github.com/TAO-07/no-one-answer/internal/metrics"
	"github.com/TAO-07/no-one-answer/internal/ratelimit"
	"github.com/TAO-07/no-one-answer/internal/records"
	recordspg "github.com/TAO-07/no-one-answer/internal/records/postgres"
	recordsqlite "github.com/TAO-07/no-one-answer/internal/records/sqlite"
	"github.com/TAO-07/no-one-answer/internal/relay"
	"github.com/TAO-07/no-one-answer/internal/version"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred closes finish before exit.
func run() int {
	root := os.Getenv("NOANSWER_CONFIG_ROOT")
	cfg, err := config.LoadRelayConfig(root)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	const maxLogBytes = int64(100 * 1024 * 1024) // 100MB
	logCloser, err := logging.Setup("[relayd] ", cfg.LogFile, maxLogBytes)
	if err != nil {
		log.Fatalf("init rotating log: %v", err)
	}
	defer logCloser.Close()

	log.Printf("%s starting %s env=%s", version.Banner("relayd"), version.FullInfo(), cfg.Environment)
	if !cfg.HasCredential() {
		log.Printf("WARN %s is not set; every chat call will fail with 500 until it is", config.CredentialEnv)
	}

	ctx := context.Background()
	store, err := openRecordStore(ctx, cfg.RecordsDSN)
	if err != nil {
		log.Printf("open record store: %v", err)
		return 1
	}
	defer store.Close()

	var assetHandler http.Handler
	if cfg.AssetsDir != "" {
		cache, err := installAssets(cfg.AssetsDir, cfg.AssetsManifest)
		if err != nil {
			log.Printf("install assets: %v", err)
			return 1
		}
		assetHandler = cache
	}

	upstream := relay.NewUpstream(relay.UpstreamConfig{
		APIKey:                cfg.UpstreamAPIKey,
		BaseURL:               cfg.UpstreamBaseURL,
		ResponseHeaderTimeout: cfg.UpstreamTimeout,
	})
	chat := relay.New(relay.Config{
		Upstream:     upstream,
		DefaultModel: cfg.DefaultModel,
		Logger:       logging.Component("[relay] "),
		LogLevel:     cfg.LogLevel,
	})

	healthCfg := health.Config{RecordsDB: store, Version: version.Info()}
	if cfg.HealthProbeUpstream {
		healthCfg.UpstreamBaseURL = upstream.BaseURL()
	}

	var collector *metrics.Collector
	if cfg.MetricsEnabled {
		collector = metrics.NewCollector()
	}
	limiter := ratelimit.NewLimiter(ratelimit.Config{Burst: cfg.RateLimitBurst, PerMinute: cfg.RateLimitPerMinute})
	if limiter != nil {
		log.Printf("chat rate limit: burst=%d per_minute=%.1f", cfg.RateLimitBurst, cfg.RateLimitPerMinute)
		sweepCtx, stopSweep := context.WithCancel(ctx)
		defer stopSweep()
		go limiter.Run(sweepCtx, 0)
	}

	httpSrv := httpserver.New(httpserver.Config{
		Chat:        chat,
		Records:     store,
		Assets:      assetHandler,
		Health:      health.New(healthCfg),
		Metrics:     collector,
		ChatLimiter: limiter,
	})
	httpSrv.SetLogger(cfg.LogLevel, logging.Component("[relayd/http] "))

	// No ReadTimeout or WriteTimeout: either one cuts a long stream short.
	srv := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           httpSrv.Router(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("relay server listening on %s upstream=%s model=%s", cfg.HTTPAddress, upstream.BaseURL(), cfg.DefaultModel)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, syscall.SIGINT)
	if err := waitForShutdown(serveErr, sigs); err != nil {
		log.Printf("http server error: %v", err)
		return 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		return 1
	}
	return 0
}

// waitForShutdown blocks until a signal arrives or the listener stops. It
// returns the listener's error, or nil for a signal.
func waitForShutdown(serveErr <-chan error, sigs <-chan os.Signal) error {
	select {
	case err, ok := <-serveErr:
		if !ok {
			return errors.New("listener stopped unexpectedly")
		}
		return err
	case sig := <-sigs:
		log.Printf("received %s, shutting down", sig)
		return nil
	}
}

func openRecordStore(ctx context.Context, dsn string) (records.Store, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		log.Printf("record store: postgres")
		return recordspg.New(ctx, dsn, recordspg.DefaultConfig())
	}
	log.Printf("record store: sqlite path=%s", dsn)
	return recordsqlite.New(dsn)
}

func installAssets(dir, manifestPath string) (*assets.Cache, error) {
	manifest, err := assets.LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	cache := assets.New(os.DirFS(dir), manifest, logging.Component("[assets] "))
	if err := cache.Install(); err != nil {
		return nil, err
	}
	cache.Activate()
	return cache, nil
}
