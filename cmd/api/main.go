package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lv-backoffice/internal/admin"
	"lv-backoffice/internal/audit"
	"lv-backoffice/internal/config"
	"lv-backoffice/internal/eligibility"
	"lv-backoffice/internal/events"
	"lv-backoffice/internal/fees"
	"lv-backoffice/internal/funding"
	"lv-backoffice/internal/health"
	"lv-backoffice/internal/httpserver"
	"lv-backoffice/internal/ledger"
	"lv-backoffice/internal/orders"
	"lv-backoffice/internal/settlement"
	"lv-backoffice/internal/store/postgres"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	_ = godotenv.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		log.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	st := postgres.New(pool)
	bus := events.NewBus()
	auditor := audit.NewRecorder(st, bus, log)
	funds := ledger.NewService()
	settle := settlement.NewService(st)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	orderSvc := orders.NewService(
		st,
		funds,
		fees.NewCalculator(cfg.Fees),
		eligibility.NewEngine(cfg.Eligibility),
		cfg.Eligibility,
		auditor,
		orders.NewMetrics(registry),
		log,
	)
	fundingSvc := funding.NewService(st, funds, settle, cfg.RequireFlowSettled, auditor, log)

	adminHandler := admin.NewHandler(pool, cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	reviewWS := httpserver.NewReviewWSHandler(bus, cfg.JWTSecret, cfg.JWTIssuer, cfg.WSOrigin)
	router := httpserver.NewRouter(httpserver.RouterDeps{
		OrderHandler:   orders.NewHandler(orderSvc),
		FundingHandler: funding.NewHandler(fundingSvc),
		AdminHandler:   adminHandler,
		HealthHandler:  health.NewHandler(pool),
		ReviewWS:       reviewWS,
		Registry:       registry,
		InternalToken:  cfg.InternalToken,
		JWTSecret:      cfg.JWTSecret,
		JWTIssuer:      cfg.JWTIssuer,
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	log.Info("server listening", "addr", cfg.HTTPAddr)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-stop
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-done
}
