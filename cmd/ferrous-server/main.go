// ferrous-server wires pkg/config, pkg/storage, pkg/executor,
// pkg/server, and pkg/metrics into a running process: a RESP front end
// on FERROUS_LISTEN_ADDR and a Prometheus/health endpoint on
// FERROUS_METRICS_ADDR.
//
// Grounded on postkeys' cmd/server-style main (config load -> storage
// construction -> handler -> server.Start), adapted to Ferrous's own
// executor/bridge stack in place of postkeys' gopher-lua handler.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/iGentAI/ferrous/pkg/config"
	"github.com/iGentAI/ferrous/pkg/executor"
	"github.com/iGentAI/ferrous/pkg/metrics"
	"github.com/iGentAI/ferrous/pkg/server"
)

func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	eng, err := newEngine(cfg)
	if err != nil {
		log.Fatalw("failed to initialize storage engine", "error", err)
	}

	exec := executor.New(eng, cfg.Limits, cfg.VMPoolSize, log)

	metricsSrv := metrics.NewServer(cfg.MetricsAddr)
	metricsSrv.Start()
	metrics.VMPoolSize.Set(float64(cfg.VMPoolSize))

	srv := server.New(cfg.ListenAddr, exec, eng, log)
	if err := srv.Start(); err != nil {
		log.Fatalw("failed to start server", "error", err)
	}

	waitForShutdown(log)

	srv.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Stop(ctx); err != nil {
		log.Warnw("metrics server shutdown error", "error", err)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func waitForShutdown(log *zap.SugaredLogger) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	s := <-sig
	log.Infow("shutting down", "signal", s.String())
}
