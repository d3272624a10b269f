// Command orchidd runs the orchid garden daemon: the transactional service
// behind a JSON HTTP API with Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"orchidcore/internal/assets"
	"orchidcore/internal/blob"
	"orchidcore/internal/core"
	"orchidcore/internal/infra/logging"
)

func main() {
	configPath := flag.String("config", "", "path to config.toml (optional)")
	flag.Parse()

	cfg, err := loadDaemonConfig(*configPath)
	if err != nil {
		logging.New("orchidd").Error("load config", "error", err.Error())
		os.Exit(1)
	}

	var logger *logging.Logger
	if cfg.LogJSON {
		logger = logging.NewJSON("orchidd", os.Stdout)
	} else {
		logger = logging.New("orchidd")
	}

	store, err := core.OpenPersistentStore(core.NewDefaultRulesEngine())
	if err != nil {
		logger.Error("open store", "error", err.Error())
		os.Exit(1)
	}

	ctx := context.Background()
	blobStore, err := blob.Open(ctx)
	if err != nil {
		logger.Error("open blob store", "error", err.Error())
		os.Exit(1)
	}
	catalog := assets.NewCatalog(blobStore)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := core.NewPrometheusMetricsRecorder(registry)

	svc, err := core.NewService(store, core.NewMemoryBank(), cfg.serviceConfig(),
		core.WithLogger(logger),
		core.WithMetricsRecorder(metrics),
	)
	if err != nil {
		logger.Error("init service", "error", err.Error())
		os.Exit(1)
	}

	mux := http.NewServeMux()
	newServer(svc, catalog, logger).routes(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve", "error", err.Error())
			os.Exit(1)
		}
	}()

	<-stop
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err.Error())
	}
}
