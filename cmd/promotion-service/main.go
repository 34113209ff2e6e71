package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jaayma/promotion-service/internal/api"
	"github.com/jaayma/promotion-service/internal/api/middleware"
	"github.com/jaayma/promotion-service/internal/config"
	"github.com/jaayma/promotion-service/internal/promo"
	"github.com/jaayma/promotion-service/internal/store"
	"github.com/jaayma/promotion-service/pkg/log"
)

func main() {
	configPath := flag.String("config", "", "path to yaml config (env-only when empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("validate config", zap.Error(err))
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.Encoding); err != nil {
		log.Fatal("init logger", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	st, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		log.Fatal("init store", zap.Error(err))
	}
	defer closeStore()

	evaluator := promo.NewEvaluator(st)
	if err := evaluator.Initialize(ctx); err != nil {
		log.Fatal("initialize catalog", zap.Error(err))
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Mount("/", api.NewRouter(evaluator))

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// graceful shutdown
	idleConnsClosed := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown", zap.Error(err))
		}
		close(idleConnsClosed)
	}()

	log.Info("starting promotion-service",
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("store", cfg.Store.Driver),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("listen", zap.Error(err))
	}

	<-idleConnsClosed
	log.Info("server stopped")
}

func newStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return store.NewMemory(), func() {}, nil
	case config.DriverRedis:
		rs, err := store.NewRedis(ctx, cfg.Store.RedisAddr, cfg.Store.RedisPassword, cfg.Store.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return rs, func() { _ = rs.Close() }, nil
	case config.DriverPostgres:
		ps, err := store.NewPostgres(ctx, cfg.Store.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Migrate(ps.DB()); err != nil {
			_ = ps.Close()
			return nil, nil, err
		}
		return ps, func() { _ = ps.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver: %q", cfg.Store.Driver)
	}
}
