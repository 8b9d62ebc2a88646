package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/invoice-extract/internal/async"
	"github.com/joseph-ayodele/invoice-extract/internal/common"
	"github.com/joseph-ayodele/invoice-extract/internal/core"
	"github.com/joseph-ayodele/invoice-extract/internal/export"
	"github.com/joseph-ayodele/invoice-extract/internal/ingest"
	"github.com/joseph-ayodele/invoice-extract/internal/llm"
	"github.com/joseph-ayodele/invoice-extract/internal/ocr"
	repo "github.com/joseph-ayodele/invoice-extract/internal/repository"
	"github.com/joseph-ayodele/invoice-extract/internal/server"
)

func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close(logger)

	if err := db.Migrate(ctx, logger); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	engines, err := ocr.NewRegistryFromConfig(cfg.OCR, logger)
	if err != nil {
		logger.Error("failed to build ocr engines", "error", err)
		os.Exit(1)
	}

	extractor, err := llm.NewExtractor(core.NewGenerator(cfg.LLM, logger), cfg.LLM.Instruction, logger)
	if err != nil {
		logger.Error("failed to build extractor", "error", err)
		os.Exit(1)
	}

	jobsRepo := repo.NewExtractJobRepository(db, logger)
	processor := core.NewProcessor(logger, extractor, engines, jobsRepo)
	queue := async.NewWorkerPool(processor, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
	)

	if cfg.Ingest.WatchDir != "" {
		paths, watchErrs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       []string{cfg.Ingest.WatchDir},
			InitialScan: cfg.Ingest.InitialScan,
			Debounce:    cfg.Ingest.Debounce,
			Logger:      logger,
		})
		if err != nil {
			logger.Error("failed to watch inbox", "dir", cfg.Ingest.WatchDir, "error", err)
			os.Exit(1)
		}
		ingestor := ingest.NewIngestor(engines, processor, queue, cfg.Ingest.Engine, logger)
		go ingestor.Run(ctx, paths)
		go func() {
			for range watchErrs {
				// logged by the watcher; drained so it never blocks
			}
		}()
		logger.Info("watching inbox", "dir", cfg.Ingest.WatchDir, "engine", cfg.Ingest.Engine)
	}

	e := server.NewHTTPServer(server.Deps{
		Logger:    logger,
		OCR:       engines,
		Extractor: extractor,
		Processor: processor,
		Queue:     queue,
		Jobs:      jobsRepo,
		Export:    export.NewService(jobsRepo, logger),
		Store:     db,
	}, cfg.Server)

	grpcServer, healthServer := server.NewGRPCServer(extractor, logger)
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}

	go func() {
		logger.Info("invoiced grpc listening", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()
	go func() {
		logger.Info("invoiced http listening", "addr", cfg.Server.HTTPAddr, "ocr_engines", engines.Names())
		if err := e.Start(cfg.Server.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	healthServer.Shutdown()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	// queued jobs get the rest of the shutdown budget
	queue.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
	logger.Info("stopped")
}
