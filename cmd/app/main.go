package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"iran-payment/internal/config"
	"iran-payment/internal/domain/ports/adapter"
	gw "iran-payment/internal/infra/adapters/gateway"
	"iran-payment/internal/infra/adapters/gateway/sadad"
	"iran-payment/internal/infra/adapters/gateway/zarinpal"
	"iran-payment/internal/infra/api"
	pg "iran-payment/internal/infra/db/postgres"
	"iran-payment/internal/infra/logging"
	"iran-payment/internal/infra/metrics"
	red "iran-payment/internal/infra/redis"
	"iran-payment/internal/infra/transport"
	"iran-payment/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	repo := pg.NewTransactionRepo(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)

	// ---- Gateways ----
	rt := transport.NewClient(cfg.Payment.Timeout)
	registry := gw.NewRegistry()
	registry.Register("sadad", func() adapter.Gateway { return sadad.New(cfg.Payment.Sadad, rt) })
	registry.Register("zarinpal", func() adapter.Gateway { return zarinpal.New(cfg.Payment.Zarinpal, rt) })

	logger.Info().Strs("gateways", registry.Names()).Msg("gateway registry ready")

	// ---- Orchestrator ----
	orc := usecase.NewOrchestrator(registry, repo, locker, cfg.Redis.LockTTL, cfg.Payment.CallbackURL, logger)

	// ---- HTTP ----
	auth := api.NewAuthManager(cfg.Server.APISecret, 24*time.Hour)
	server := api.NewServer(orc, auth, redisClient, logger)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.Router(),
	}
	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
