package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/odyssey-pos/internal/app"
	jobmetrics "github.com/odyssey-erp/odyssey-pos/internal/jobs"
	"github.com/odyssey-erp/odyssey-pos/internal/receipt"
	"github.com/odyssey-erp/odyssey-pos/internal/shift"
	"github.com/odyssey-erp/odyssey-pos/jobs"
	"github.com/odyssey-erp/odyssey-pos/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("load timezone", slog.Any("error", err))
		os.Exit(1)
	}

	res, err := app.OpenResources(ctx, cfg, logger)
	if err != nil {
		logger.Error("open resources", slog.Any("error", err))
		os.Exit(1)
	}
	defer res.Close()
	if cfg.ShiftStore == app.StoreMemory {
		logger.Warn("worker shares no state with the server when SHIFT_STORE=memory")
	}

	// The worker only reads shifts; totals are never recomputed here.
	shifts := shift.NewService(res.Store, nil, logger)

	tag, err := language.Parse(cfg.ShiftLocale)
	if err != nil {
		tag = language.Spanish
	}
	formatter := receipt.NewFormatter(tag, loc, cfg.ShiftCurrency)
	pdfClient := report.NewClient(cfg.GotenbergURL).WithPaper(report.ThermalPaper)
	if err := pdfClient.Ping(ctx); err != nil {
		logger.Warn("gotenberg ping", slog.Any("error", err))
	}
	emitter := receipt.NewPDFEmitter(pdfClient, formatter, cfg.ReceiptDir, logger)

	metrics := jobmetrics.NewMetrics(nil)
	receiptJob := jobs.NewShiftReceiptJob(shifts, emitter, logger, metrics)
	staleJob := jobs.NewStaleShiftJob(shifts, cfg.ShiftStaleAfter, logger, metrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:  cfg.RedisOptions().AsynqOpts(),
		Logger:     logger,
		Location:   loc,
		Receipts:   receiptJob,
		StaleCheck: staleJob,
		Cron: []jobs.CronRegistration{
			{Spec: "0 * * * *", Task: jobs.NewStaleShiftCheckTask(), Options: []asynq.Option{asynq.MaxRetry(1), asynq.Queue(jobs.QueueDefault)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("redis", cfg.RedisAddr), slog.Duration("stale_after", cfg.ShiftStaleAfter))
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return serveMetrics(groupCtx, cfg.WorkerMetricsAddr)
	})
	group.Go(func() error {
		return worker.Run(groupCtx)
	})
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

func serveMetrics(ctx context.Context, addr string) error {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
