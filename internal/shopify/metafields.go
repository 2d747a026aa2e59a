package shopify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-sales-stats/internal/sales"
)

const (
	// MaxMetafieldsPerCall is the metafieldsSet input limit.
	MaxMetafieldsPerCall = 25
	// DefaultBatchDelay is the pause between consecutive metafieldsSet calls.
	DefaultBatchDelay = time.Second
)

// ErrBatchTooLarge is returned when a single call exceeds MaxMetafieldsPerCall.
var ErrBatchTooLarge = errors.New("shopify: metafield batch too large")

type metafieldsSetPayload struct {
	MetafieldsSet struct {
		Metafields []struct {
			ID string `json:"id"`
		} `json:"metafields"`
		UserErrors []struct {
			Field   []string `json:"field"`
			Message string   `json:"message"`
			Code    string   `json:"code"`
		} `json:"userErrors"`
	} `json:"metafieldsSet"`
}

// SetMetafields writes one batch with a single metafieldsSet call. User
// errors are returned in the result, not as an error.
func (c *Client) SetMetafields(ctx context.Context, batch []sales.Annotation) (sales.WriteResult, error) {
	if len(batch) == 0 {
		return sales.WriteResult{}, nil
	}
	if len(batch) > MaxMetafieldsPerCall {
		return sales.WriteResult{}, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(batch), MaxMetafieldsPerCall)
	}
	var payload metafieldsSetPayload
	if err := c.do(ctx, "MetafieldsSet", metafieldsSetMutation, map[string]any{"metafields": batch}, &payload); err != nil {
		return sales.WriteResult{}, err
	}
	res := sales.WriteResult{
		Batches: 1,
		Applied: len(payload.MetafieldsSet.Metafields),
		Errors:  len(payload.MetafieldsSet.UserErrors),
	}
	for _, ue := range payload.MetafieldsSet.UserErrors {
		res.UserErrors = append(res.UserErrors, sales.UserError{Field: ue.Field, Message: ue.Message})
	}
	return res, nil
}

// MetafieldSetter performs one metafieldsSet call.
type MetafieldSetter interface {
	SetMetafields(ctx context.Context, batch []sales.Annotation) (sales.WriteResult, error)
}

// MetafieldWriter splits annotations into metafieldsSet batches and paces
// the calls. It implements sales.AnnotationWriter.
type MetafieldWriter struct {
	Setter    MetafieldSetter
	BatchSize int
	Delay     time.Duration
	Logger    zerolog.Logger

	wait func(ctx context.Context, d time.Duration) error
}

// WriteAnnotations sends every annotation in order. Batches are separated
// by Delay; no pause follows the last batch. A transport failure stops the
// remaining batches and the partial result is returned with the error.
func (w *MetafieldWriter) WriteAnnotations(ctx context.Context, annotations []sales.Annotation) (sales.WriteResult, error) {
	var total sales.WriteResult
	if w == nil || w.Setter == nil {
		return total, fmt.Errorf("%w: metafield writer has no setter", ErrNotConfigured)
	}
	size := w.BatchSize
	if size <= 0 || size > MaxMetafieldsPerCall {
		size = MaxMetafieldsPerCall
	}
	wait := w.wait
	if wait == nil {
		wait = sleepContext
	}
	batches := (len(annotations) + size - 1) / size

	for i := 0; i < batches; i++ {
		if i > 0 && w.Delay > 0 {
			if err := wait(ctx, w.Delay); err != nil {
				return total, err
			}
		}
		lo, hi := i*size, min((i+1)*size, len(annotations))
		res, err := w.Setter.SetMetafields(ctx, annotations[lo:hi])
		if err != nil {
			w.Logger.Error().Err(err).Int("batch", i+1).Int("batches", batches).Msg("metafield_batch_failed")
			return total, fmt.Errorf("metafield batch %d/%d: %w", i+1, batches, err)
		}
		total.Add(res)
		evt := w.Logger.Info()
		if res.Errors > 0 {
			evt = w.Logger.Warn()
			for _, ue := range res.UserErrors {
				w.Logger.Warn().Strs("field", ue.Field).Str("message", ue.Message).Msg("metafield_user_error")
			}
		}
		evt.Int("batch", i+1).Int("batches", batches).Int("size", hi-lo).
			Int("applied", res.Applied).Int("errors", res.Errors).Msg("metafield_batch")
	}
	return total, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
