package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/automaton-vision/internal/application"
	"github.com/bryanwahyu/automaton-vision/internal/application/ingest"
	"github.com/bryanwahyu/automaton-vision/internal/bootstrap"
	"github.com/bryanwahyu/automaton-vision/internal/config"
	"github.com/bryanwahyu/automaton-vision/internal/infra/events"
	"github.com/bryanwahyu/automaton-vision/internal/infra/httpserver"
	"github.com/bryanwahyu/automaton-vision/internal/logger"
	"github.com/bryanwahyu/automaton-vision/internal/middleware"
	"github.com/bryanwahyu/automaton-vision/internal/observability/metrics"
)

func main() {
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

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

	app, err := bootstrap.New(ctx, cfg, zlog, true)
	if err != nil {
		zlog.Fatal("bootstrap error", zap.Error(err))
	}
	defer app.Close()

	pm, err := metrics.NewPipelineMetrics(app.Registry)
	if err != nil {
		zlog.Fatal("metrics init error", zap.Error(err))
	}

	svc := &ingest.Service{
		Repo:    app.Repo,
		Vision:  app.Vision,
		Clock:   application.SystemClock{},
		Log:     zlog,
		Metrics: pm,
	}

	var wg sync.WaitGroup
	if cfg.Ingest.Listen {
		wg.Add(1)
		go func() {
			defer wg.Done()
			zlog.Info("listening for bucket notifications",
				zap.String("bucket", app.Objects.Bucket()),
				zap.String("prefix", cfg.Ingest.Prefix),
				zap.String("suffix", cfg.Ingest.Suffix))
			events.Consume(ctx, app.Objects.Uploads(ctx, cfg.Ingest.Prefix, cfg.Ingest.Suffix), svc, zlog)
		}()
	}

	addr := fmt.Sprintf(":%d", cfg.Server.IngestPort)
	srv := &http.Server{
		Addr: addr,
		Handler: httpserver.NewIngestRouter(svc, httpserver.Options{
			Log:      zlog,
			Metrics:  middleware.NewHTTPMetrics(app.Registry, "ingest"),
			Gatherer: app.Registry,
			Health:   app.Health(),
		}),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		zlog.Info("ingest webhook listening", zap.String("addr", addr), zap.String("vision", cfg.Vision.Provider))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down ingest...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		zlog.Error("shutdown error", zap.Error(err))
	}
	wg.Wait()
}
