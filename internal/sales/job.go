package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/toko-sales-stats/internal/money"
)

// ErrPartialWrite is returned when at least one annotation write was rejected.
var ErrPartialWrite = errors.New("sales: annotation write reported errors")

// Recorder receives job outcomes, typically to update metrics.
type Recorder interface {
	ObserveFold(stats FoldStats, products int)
	ObserveProjection(projected, negative int)
	ObserveWrite(result WriteResult)
	ObserveRun(result string, elapsed time.Duration)
}

// Report describes a finished (or aborted) run.
type Report struct {
	RunID       string      `json:"runId"`
	StartedAt   time.Time   `json:"startedAt"`
	FinishedAt  time.Time   `json:"finishedAt"`
	Fold        FoldStats   `json:"fold"`
	Products    int         `json:"products"`
	CatalogSize int         `json:"catalogSize"`
	Projected   int         `json:"projected"`
	NegativeNet int         `json:"negativeNet"`
	Write       WriteResult `json:"write"`
	Error       string      `json:"error,omitempty"`
	// Snapshots is the per-product projection of this run.
	Snapshots []Snapshot `json:"-"`
}

// Succeeded reports whether the run ended without error.
func (r Report) Succeeded() bool {
	return r.Error == ""
}

// Job runs one aggregation pass: read orders, fold, read the catalog,
// project and write.
type Job struct {
	Orders    OrderFeed
	Catalog   Catalog
	Writer    AnnotationWriter
	Projector Projector
	Validate  *validator.Validate
	Recorder  Recorder
	Logger    zerolog.Logger
	Now       func() time.Time
}

func (j *Job) now() time.Time {
	if j != nil && j.Now != nil {
		return j.Now()
	}
	return time.Now()
}

// Run executes the pass. The returned report is populated as far as the run
// progressed, even when an error is returned.
func (j *Job) Run(ctx context.Context) (Report, error) {
	report := Report{RunID: uuid.NewString(), StartedAt: j.now()}
	if j == nil || j.Orders == nil || j.Catalog == nil || j.Writer == nil {
		return report, errors.New("sales: job not configured")
	}
	ctx, span := otel.Tracer("sales.Job").Start(ctx, "Job.Run")
	defer span.End()
	span.SetAttributes(attribute.String("run.id", report.RunID))

	logger := j.Logger.With().Str("run_id", report.RunID).Logger()
	logger.Info().Time("started_at", report.StartedAt).Msg("run_start")

	err := j.run(ctx, logger, &report)
	report.FinishedAt = j.now()
	elapsed := report.FinishedAt.Sub(report.StartedAt)

	result := "success"
	if err != nil {
		result = "error"
		report.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error().Err(err).Dur("elapsed", elapsed).Msg("run_failed")
	} else {
		logger.Info().
			Dur("elapsed", elapsed).
			Int("projected", report.Projected).
			Int("applied", report.Write.Applied).
			Msg("run_complete")
	}
	if j.Recorder != nil {
		j.Recorder.ObserveRun(result, elapsed)
	}
	return report, err
}

func (j *Job) run(ctx context.Context, logger zerolog.Logger, report *Report) error {
	orders, err := j.fetchOrders(ctx)
	if err != nil {
		return fmt.Errorf("fetch paid orders: %w", err)
	}
	logger.Info().Int("orders", len(orders)).Msg("orders_fetched")

	acc := NewAccumulator()
	if err := acc.FoldAll(orders); err != nil {
		return fmt.Errorf("fold orders: %w", err)
	}
	report.Fold = acc.Stats()
	report.Products = acc.Len()
	if j.Recorder != nil {
		j.Recorder.ObserveFold(report.Fold, report.Products)
	}
	evt := logger.Info().
		Int("products", report.Products).
		Int("skipped_line_items", report.Fold.SkippedLineItems).
		Int("refunds_applied", report.Fold.RefundsApplied)
	if report.Fold.UnattributedRefund != 0 {
		evt = evt.Str("unattributed_refund", money.ToDecimalString(report.Fold.UnattributedRefund))
	}
	evt.Msg("sales_aggregated")

	products, err := j.fetchProducts(ctx)
	if err != nil {
		return fmt.Errorf("fetch products: %w", err)
	}
	report.CatalogSize = len(products)
	logger.Info().Int("products", len(products)).Msg("products_fetched")

	snapshots, annotations, err := j.Projector.Project(acc.Snapshot(), products)
	if err != nil {
		return fmt.Errorf("project snapshot: %w", err)
	}
	report.Projected = len(snapshots)
	report.Snapshots = snapshots
	for _, s := range snapshots {
		if s.NetMinor < 0 {
			report.NegativeNet++
			logger.Warn().
				Str("product_id", s.ProductID).
				Str("title", s.Title).
				Int64("net_minor", s.NetMinor).
				Msg("negative_net_sales")
			continue
		}
		logger.Debug().
			Str("product_id", s.ProductID).
			Str("title", s.Title).
			Int64("net_minor", s.NetMinor).
			Str("net_amount", money.ToDecimalString(s.NetMinor)).
			Msg("product_net_sales")
	}
	if j.Recorder != nil {
		j.Recorder.ObserveProjection(report.Projected, report.NegativeNet)
	}

	if len(annotations) == 0 {
		logger.Info().Msg("no_annotations_to_write")
		return nil
	}
	if err := j.validate(annotations); err != nil {
		return err
	}

	result, err := j.write(ctx, annotations)
	report.Write = result
	if j.Recorder != nil {
		j.Recorder.ObserveWrite(result)
	}
	logger.Info().
		Int("batches", result.Batches).
		Int("applied", result.Applied).
		Int("errors", result.Errors).
		Msg("annotations_written")
	if err != nil {
		return fmt.Errorf("write annotations (applied=%d errors=%d): %w", result.Applied, result.Errors, err)
	}
	if result.Errors > 0 {
		return fmt.Errorf("%w: applied=%d errors=%d", ErrPartialWrite, result.Applied, result.Errors)
	}
	return nil
}

func (j *Job) fetchOrders(ctx context.Context) ([]Order, error) {
	ctx, span := otel.Tracer("sales.Job").Start(ctx, "Job.fetchOrders")
	defer span.End()
	orders, err := j.Orders.FetchPaidOrders(ctx)
	recordSpan(span, err, attribute.Int("orders.count", len(orders)))
	return orders, err
}

func (j *Job) fetchProducts(ctx context.Context) ([]Product, error) {
	ctx, span := otel.Tracer("sales.Job").Start(ctx, "Job.fetchProducts")
	defer span.End()
	products, err := j.Catalog.FetchAllProducts(ctx)
	recordSpan(span, err, attribute.Int("products.count", len(products)))
	return products, err
}

func (j *Job) write(ctx context.Context, annotations []Annotation) (WriteResult, error) {
	ctx, span := otel.Tracer("sales.Job").Start(ctx, "Job.write")
	defer span.End()
	result, err := j.Writer.WriteAnnotations(ctx, annotations)
	recordSpan(span, err,
		attribute.Int("annotations.count", len(annotations)),
		attribute.Int("annotations.applied", result.Applied),
		attribute.Int("annotations.errors", result.Errors),
	)
	return result, err
}

func (j *Job) validate(annotations []Annotation) error {
	if j.Validate == nil {
		return nil
	}
	var joined error
	for i := range annotations {
		if err := j.Validate.Struct(annotations[i]); err != nil {
			joined = errors.Join(joined, fmt.Errorf("annotation %s/%s for %s: %w", annotations[i].Namespace, annotations[i].Key, annotations[i].OwnerID, err))
		}
	}
	return joined
}

func recordSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
