package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-sales-stats/internal/app"
	"github.com/noah-isme/toko-sales-stats/internal/config"
	"github.com/noah-isme/toko-sales-stats/internal/lock"
	"github.com/noah-isme/toko-sales-stats/internal/money"
	"github.com/noah-isme/toko-sales-stats/internal/obs"
	"github.com/noah-isme/toko-sales-stats/internal/queue"
	"github.com/noah-isme/toko-sales-stats/internal/runlog"
	"github.com/noah-isme/toko-sales-stats/internal/sales"
)

func main() {
	os.Exit(run())
}

func run() int {
	printReport := flag.Bool("report", false, "print the per-product net sales table after the run")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "aggregate").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, obs.TracingConfig{
		ServiceName:   "sales-stats-aggregate",
		Endpoint:      cfg.TracingEndpoint,
		SamplingRatio: cfg.TracingSamplingRatio,
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		logger.Error().Err(err).Msg("init tracer")
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(flushCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown tracer")
		}
	}()

	deps, err := app.New(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("init dependencies")
		return 1
	}

	report, runErr := execute(ctx, cfg, deps, logger)

	pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := obs.PushMetrics(pushCtx, cfg.PushgatewayURL, "sales_aggregate", deps.Registry); err != nil {
		logger.Error().Err(err).Msg("push metrics")
	}

	if *printReport {
		writeReport(os.Stdout, report)
	}
	if runErr != nil {
		return 1
	}
	return 0
}

// execute runs the job directly, or under the shared run lock when Redis is
// configured so a manual run cannot overlap a scheduled one.
func execute(ctx context.Context, cfg *config.Config, deps *app.Dependencies, logger zerolog.Logger) (sales.Report, error) {
	job := deps.Job()
	if cfg.RedisURL == "" {
		return job.Run(ctx)
	}

	rdb, err := app.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error().Err(err).Msg("connect redis")
		return sales.Report{}, err
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	var report sales.Report
	locker := lock.Locker{R: rdb}
	err = locker.TryWithLock(ctx, queue.DefaultLockKey, cfg.RunLockTTL, func(ctx context.Context) error {
		var runErr error
		report, runErr = job.Run(ctx)
		if saveErr := (runlog.Store{R: rdb}).Save(ctx, report); saveErr != nil {
			logger.Error().Err(saveErr).Msg("save run report")
		}
		return runErr
	})
	if err != nil && report.RunID == "" {
		logger.Error().Err(err).Msg("run not started")
	}
	return report, err
}

func writeReport(w io.Writer, report sales.Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tTITLE\tNET (MINOR)\tNET")
	for _, s := range report.Snapshots {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.ProductID, s.Title, s.NetMinor, money.ToDecimalString(s.NetMinor))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\norders=%d products=%d projected=%d negative=%d\n",
		report.Fold.Orders, report.Products, report.Projected, report.NegativeNet)
	fmt.Fprintf(w, "metafields: applied=%d errors=%d batches=%d\n",
		report.Write.Applied, report.Write.Errors, report.Write.Batches)
	if report.Fold.UnattributedRefund != 0 {
		fmt.Fprintf(w, "unattributed refund: %s\n", money.ToDecimalString(report.Fold.UnattributedRefund))
	}
	if report.Error != "" {
		fmt.Fprintf(w, "error: %s\n", report.Error)
	}
}
