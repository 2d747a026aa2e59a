// Package queue schedules and processes sales aggregation runs with asynq.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-sales-stats/internal/lock"
	"github.com/noah-isme/toko-sales-stats/internal/sales"
)

const (
	// TypeAggregateSales is the task type of one aggregation run.
	TypeAggregateSales = "sales:aggregate"
	// QueueName is the asynq queue the task is routed to.
	QueueName = "sales"
	// DefaultLockKey guards against overlapping runs across workers.
	DefaultLockKey = "sales-stats:lock:aggregate"
)

// AggregatePayload describes why a run was requested.
type AggregatePayload struct {
	Trigger     string    `json:"trigger"`
	RequestedAt time.Time `json:"requestedAt"`
}

// NewAggregateTask builds a run task. uniqueFor keeps a second copy from
// being enqueued while the first is still pending; zero disables it.
func NewAggregateTask(trigger string, uniqueFor time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(AggregatePayload{Trigger: trigger, RequestedAt: time.Now().UTC()})
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	opts := []asynq.Option{asynq.Queue(QueueName), asynq.MaxRetry(0)}
	if uniqueFor > 0 {
		opts = append(opts, asynq.Unique(uniqueFor))
	}
	return asynq.NewTask(TypeAggregateSales, payload, opts...), nil
}

// Runner executes one aggregation run.
type Runner interface {
	Run(ctx context.Context) (sales.Report, error)
}

// ReportSink stores finished run reports.
type ReportSink interface {
	Save(ctx context.Context, report sales.Report) error
}

// Locker runs a callback only when the named lock is free.
type Locker interface {
	TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Handler processes TypeAggregateSales tasks.
type Handler struct {
	Runner  Runner
	Locker  Locker
	LockKey string
	LockTTL time.Duration
	Reports ReportSink
	Metrics *Metrics
	Logger  zerolog.Logger
}

// ProcessTask implements asynq.Handler. A run that finds another run in
// progress is skipped without error. Failed runs are not retried.
func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload AggregatePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			h.Metrics.observe(t.Type(), "invalid")
			return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	logger := h.Logger.With().Str("task", t.Type()).Str("trigger", payload.Trigger).Logger()

	run := func(ctx context.Context) error {
		report, err := h.Runner.Run(ctx)
		if h.Reports != nil {
			if saveErr := h.Reports.Save(ctx, report); saveErr != nil {
				logger.Error().Err(saveErr).Str("run_id", report.RunID).Msg("save_run_report")
			}
		}
		return err
	}

	var err error
	if h.Locker != nil {
		err = h.Locker.TryWithLock(ctx, h.lockKey(), h.LockTTL, run)
	} else {
		err = run(ctx)
	}

	switch {
	case errors.Is(err, lock.ErrLocked):
		h.Metrics.observe(t.Type(), "skipped")
		logger.Info().Msg("run_skipped_locked")
		return nil
	case err != nil:
		h.Metrics.observe(t.Type(), "failed")
		return fmt.Errorf("aggregate sales: %v: %w", err, asynq.SkipRetry)
	default:
		h.Metrics.observe(t.Type(), "succeeded")
		return nil
	}
}

func (h *Handler) lockKey() string {
	if h.LockKey == "" {
		return DefaultLockKey
	}
	return h.LockKey
}

// NewServeMux routes aggregation tasks to h.
func NewServeMux(h *Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeAggregateSales, h)
	return mux
}

// RegisterSchedule adds the periodic run to s using a cron spec.
func RegisterSchedule(s *asynq.Scheduler, cronspec string, uniqueFor time.Duration) (string, error) {
	task, err := NewAggregateTask("schedule", uniqueFor)
	if err != nil {
		return "", err
	}
	id, err := s.Register(cronspec, task)
	if err != nil {
		return "", fmt.Errorf("register %q: %w", cronspec, err)
	}
	return id, nil
}

// Enqueuer is the subset of *asynq.Client used to request runs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Trigger requests out-of-schedule runs.
type Trigger struct {
	Client    Enqueuer
	UniqueFor time.Duration
}

// ErrRunPending is returned when a requested run is already queued.
var ErrRunPending = errors.New("queue: aggregation run already pending")

// Enqueue queues a run and returns the asynq task id.
func (tr Trigger) Enqueue(ctx context.Context, trigger string) (string, error) {
	if tr.Client == nil {
		return "", errors.New("queue: client not configured")
	}
	task, err := NewAggregateTask(trigger, tr.UniqueFor)
	if err != nil {
		return "", err
	}
	info, err := tr.Client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return "", ErrRunPending
	}
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", TypeAggregateSales, err)
	}
	return info.ID, nil
}
