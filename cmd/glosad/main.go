package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc/reflection"

	"github.com/cargoclaro/glosa-sub000/internal/app"
	"github.com/cargoclaro/glosa-sub000/internal/async"
	"github.com/cargoclaro/glosa-sub000/internal/common"
	"github.com/cargoclaro/glosa-sub000/internal/export"
	"github.com/cargoclaro/glosa-sub000/internal/ingest"
	"github.com/cargoclaro/glosa-sub000/internal/pipeline"
	"github.com/cargoclaro/glosa-sub000/internal/server"
)

func main() {
	configPath := flag.String("config", "", "config file (YAML or JSON)")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := app.New(ctx, cfg, app.Options{Registerer: reg}, logger)
	if err != nil {
		logger.Error("failed to wire pipeline", "error", err)
		os.Exit(1)
	}
	defer func() { _ = a.Close() }()

	exp := export.NewService(logger)
	sink := func(_ context.Context, job async.Job, out *pipeline.Outcome, err error) {
		if err != nil {
			return
		}
		target := job.Dir
		if cfg.Server.OutboxDir != "" {
			target = filepath.Join(cfg.Server.OutboxDir, filepath.Base(job.Dir))
		}
		if _, err := exp.WriteFiles(target, "glosa", out); err != nil {
			logger.Error("failed to write review", "dir", job.Dir, "error", err)
		}
	}
	queue := async.NewReviewQueue(a.Processor, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithReviewTimeout(cfg.Review.Timeout),
		async.WithSink(sink),
		async.WithObserver(a.Metrics),
	)

	grpcServer, healthServer := server.NewGRPCServer(server.NewReviewService(a.Processor, queue, logger), logger)
	// Reflection for grpcurl
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	logger.Info("glosad listening", "addr", cfg.Server.GRPCAddr)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	metricsServer := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics serve error", "error", err)
		}
	}()

	if cfg.Server.InboxDir != "" {
		events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Inbox:       cfg.Server.InboxDir,
			InitialScan: true,
			Debounce:    500 * time.Millisecond,
			Logger:      logger,
		})
		if err != nil {
			logger.Error("failed to watch inbox", "inbox", cfg.Server.InboxDir, "error", err)
			os.Exit(1)
		}
		go func() {
			for {
				select {
				case dir, ok := <-events:
					if !ok {
						return
					}
					if err := queue.Enqueue(ctx, async.Job{Dir: dir, SubmittedAt: time.Now()}); err != nil {
						logger.Warn("failed to enqueue inbox expediente", "dir", dir, "error", err)
					}
				case err, ok := <-errs:
					if !ok {
						errs = nil
						continue
					}
					logger.Warn("inbox watcher error", "error", err)
				}
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
	queue.Shutdown(shutdownCtx)
}
