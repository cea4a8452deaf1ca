package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flexi-posture/common/logger"
	"flexi-posture/internal/config"
	"flexi-posture/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// 1. config
	cfg, err := config.Load()
	if err != nil {
		// level and format come from config; fall back to defaults to report the failure
		bootLog, logErr := logger.NewLoggerWithDefaults()
		if logErr != nil {
			panic(fmt.Sprintf("Failed to load config: %v", err))
		}
		bootLog.Fatal("Failed to load config", zap.Error(err))
	}

	// 2. logger
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "posture-engine")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	// 3. service
	postureService, err := service.NewPostureService(cfg, log, prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal("Failed to create posture service", zap.Error(err))
	}
	defer postureService.Stop()

	// 4. metrics and snapshot API
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	postureService.RegisterRoutes(mux)
	server := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.Metrics.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 5. run until signal
	serviceErrChan := make(chan error, 1)
	go func() {
		serviceErrChan <- postureService.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
		<-serviceErrChan
	case err := <-serviceErrChan:
		if err != nil {
			log.Error("Service error", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown", zap.Error(err))
	}

	log.Info("Posture engine stopped")
}
