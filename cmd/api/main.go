package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appquery "github.com/bryanwahyu/automaton-vision/internal/application/query"
	"github.com/bryanwahyu/automaton-vision/internal/bootstrap"
	"github.com/bryanwahyu/automaton-vision/internal/config"
	"github.com/bryanwahyu/automaton-vision/internal/infra/httpserver"
	"github.com/bryanwahyu/automaton-vision/internal/logger"
	"github.com/bryanwahyu/automaton-vision/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, zlog, false)
	if err != nil {
		zlog.Fatal("bootstrap error", zap.Error(err))
	}
	defer app.Close()

	// init service
	svc := &appquery.Service{
		Repo:          app.Repo,
		Signer:        app.Objects,
		DefaultBucket: app.Objects.Bucket(),
		URLExpiry:     cfg.Query.URLExpiry,
		Log:           zlog,
	}

	handler := httpserver.NewRouter(svc, httpserver.Options{
		Log:       zlog,
		Metrics:   middleware.NewHTTPMetrics(app.Registry, "query"),
		Gatherer:  app.Registry,
		Health:    app.Health(),
		RateLimit: cfg.Server.RateLimit.RPS,
		Burst:     cfg.Server.RateLimit.Burst,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		zlog.Info("server listening", zap.String("addr", addr), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	zlog.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		zlog.Error("shutdown error", zap.Error(err))
	}
}
