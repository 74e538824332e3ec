package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atlekbai/graph_query/internal/backend"
	"github.com/atlekbai/graph_query/internal/config"
	"github.com/atlekbai/graph_query/internal/handler"
	"github.com/atlekbai/graph_query/internal/middleware"
	"github.com/atlekbai/graph_query/internal/schema"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(log)

	pool, err := backend.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	reg := schema.NewRegistry()
	h := handler.New(reg, backend.NewPG(pool),
		handler.WithLogger(log),
		handler.WithTimeout(time.Duration(cfg.QueryTimeout)),
		handler.WithBodyLimit(cfg.MaxBodyBytes),
	)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := middleware.NewMetrics(promReg)

	r := mux.NewRouter()
	r.Use(middleware.Recovery(log), middleware.Logging(log), metrics.Middleware())
	r.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.ContentType)
	h.Register(api)

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: r,
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		srv.Shutdown(context.Background())
	}()

	log.Info("listening", "addr", cfg.Addr())
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
