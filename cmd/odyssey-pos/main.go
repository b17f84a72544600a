package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/hibiken/asynq"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/odyssey-pos/cmd/odyssey-pos/cli"
	"github.com/odyssey-erp/odyssey-pos/internal/app"
	"github.com/odyssey-erp/odyssey-pos/internal/archive"
	"github.com/odyssey-erp/odyssey-pos/internal/observability"
	"github.com/odyssey-erp/odyssey-pos/internal/receipt"
	"github.com/odyssey-erp/odyssey-pos/internal/sales"
	"github.com/odyssey-erp/odyssey-pos/internal/shift"
	shifthttp "github.com/odyssey-erp/odyssey-pos/internal/shift/http"
	"github.com/odyssey-erp/odyssey-pos/internal/workflow"
	"github.com/odyssey-erp/odyssey-pos/jobs"
	"github.com/odyssey-erp/odyssey-pos/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		os.Exit(runJobs(ctx, cfg, os.Args[2:], os.Stdout))
	}

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("server", slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	mapping, err := cfg.PaymentMapping()
	if err != nil {
		return err
	}

	res, err := app.OpenResources(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer res.Close()

	metrics := observability.NewMetrics()
	aggregator := salesAggregator(res, mapping, logger)
	service := shift.NewService(res.Store, aggregator, logger)
	service.WithRecorder(metrics)

	tag, err := language.Parse(cfg.ShiftLocale)
	if err != nil {
		tag = language.Spanish
	}
	formatter := receipt.NewFormatter(tag, loc, cfg.ShiftCurrency)
	pdfClient := report.NewClient(cfg.GotenbergURL).WithPaper(report.ThermalPaper)
	pdfEmitter := receipt.NewPDFEmitter(pdfClient, formatter, cfg.ReceiptDir, logger)

	var (
		emitter   receipt.Emitter
		inspector *asynq.Inspector
	)
	switch cfg.ReceiptMode {
	case app.ReceiptQueue:
		redisOpts := cfg.RedisOptions().AsynqOpts()
		client, err := jobs.NewClient(redisOpts)
		if err != nil {
			return fmt.Errorf("init job client: %w", err)
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		inspector = asynq.NewInspector(redisOpts)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("asynq inspector close", slog.Any("error", err))
			}
		}()
		emitter = jobs.NewQueueEmitter(client)
	case app.ReceiptPDF:
		emitter = pdfEmitter
	default:
		emitter = receipt.NewWriterEmitter(os.Stdout, formatter)
	}

	registry := workflow.NewRegistry(func() *workflow.Workflow {
		return workflow.New(service, emitter, cfg.ShiftDefaultFloat, logger)
	}).WithIdleTimeout(cfg.SessionIdle).WithLogger(logger)
	go registry.Run(ctx, time.Minute)
	browser := archive.NewBrowser(service, loc, archive.ParseLabeler(cfg.ShiftLocale))

	var queueInspector jobs.QueueInspector
	if inspector != nil {
		queueInspector = inspector
	}
	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		Metrics:       metrics,
		ShiftHandler:  shifthttp.NewHandler(service, registry, browser, logger, cfg.RateLimitPerMin),
		ReportHandler: report.NewHandler(pdfClient, service, pdfEmitter, logger),
		JobHandler:    jobs.NewHandler(queueInspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.String("shift_store", cfg.ShiftStore),
			slog.String("receipt_mode", cfg.ReceiptMode),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	logger.Info("server stopped", slog.Int("pending_sessions", registry.Len()))
	return nil
}

func runJobs(ctx context.Context, cfg *app.Config, args []string, out io.Writer) int {
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisOptions().AsynqOpts())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer jobsCLI.Close()
	if err := jobsCLI.Run(ctx, args, out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	return 0
}

func salesAggregator(res *app.Resources, mapping sales.MethodMapping, logger *slog.Logger) *sales.Aggregator {
	if _, ok := res.Feed.(*sales.StaticFeed); ok {
		logger.Warn("sales feed is in memory, expected totals will be zero")
	}
	return sales.NewAggregator(res.Feed, mapping, logger)
}
