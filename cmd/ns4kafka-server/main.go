// Package main runs the ns4kafka control plane server.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/golang/glog"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/klog/v2"

	"github.com/michelin/ns4kafka-go/pkg/config"
	"github.com/michelin/ns4kafka-go/pkg/ha"
	"github.com/michelin/ns4kafka-go/pkg/server"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", os.Getenv("NS4KAFKA_CONFIG"), "Path to the YAML configuration file")
	flag.Parse()

	// Initialize glog for backwards compatibility
	_ = flag.Set("logtostderr", "true")

	cfg, err := config.Load(configPath)
	if err != nil {
		glog.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(cfg.Server)
	slog.SetDefault(logger)
	// client-go logs through klog; route it to the same handler.
	klog.SetLogger(logr.FromSlogHandler(logger.Handler()))

	logger.Info("starting ns4kafka server",
		"listen", cfg.Server.Listen,
		"config", configPath,
		"store", cfg.Store.Backend,
		"clusters", len(cfg.Clusters),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	var opts []server.Option
	if cfg.HA.LeaderElection {
		k8sCfg, err := rest.InClusterConfig()
		if err != nil {
			glog.Fatalf("Failed to create in-cluster K8s config (leader election needs a pod): %v", err)
		}
		clientset, err := kubernetes.NewForConfig(k8sCfg)
		if err != nil {
			glog.Fatalf("Failed to create K8s clientset: %v", err)
		}
		opts = append(opts, server.WithLeaderElector(ha.NewLeaderElector(cfg.HA, clientset, logger)))
	}

	srv, err := server.New(cfg, logger, opts...)
	if err != nil {
		glog.Fatalf("Failed to build server: %v", err)
	}
	if err := srv.Init(ctx); err != nil {
		glog.Fatalf("Failed to initialize storage: %v", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			glog.Fatalf("HTTP server error: %v", err)
		}
	}()
	srv.Start(ctx)
	logger.Info("ns4kafka server ready", "listen", cfg.Server.Listen)

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("ns4kafka server stopped")
}

func newLogger(cfg config.ServerConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
