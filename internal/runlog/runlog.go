// Package runlog keeps the reports of recent aggregation runs in Redis so
// operators can inspect them without reading logs.
package runlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-sales-stats/internal/sales"
)

// ErrNotFound is returned when no run has been recorded yet.
var ErrNotFound = errors.New("runlog: no run recorded")

const (
	defaultPrefix  = "sales-stats:runs"
	defaultHistory = 20
)

// Store persists run reports. The newest report is kept under <prefix>:last
// and the last History reports in the list <prefix>:history.
type Store struct {
	R       redis.UniversalClient
	Prefix  string
	History int
}

func (s Store) keys() (last, history string) {
	prefix := s.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	return prefix + ":last", prefix + ":history"
}

// Save records report as the most recent run.
func (s Store) Save(ctx context.Context, report sales.Report) error {
	if s.R == nil {
		return errors.New("runlog: redis client not configured")
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	keep := s.History
	if keep <= 0 {
		keep = defaultHistory
	}
	lastKey, historyKey := s.keys()
	_, err = s.R.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, lastKey, payload, 0)
		p.LPush(ctx, historyKey, payload)
		p.LTrim(ctx, historyKey, 0, int64(keep-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("save run %s: %w", report.RunID, err)
	}
	return nil
}

// Last returns the most recent report or ErrNotFound.
func (s Store) Last(ctx context.Context) (sales.Report, error) {
	if s.R == nil {
		return sales.Report{}, errors.New("runlog: redis client not configured")
	}
	lastKey, _ := s.keys()
	raw, err := s.R.Get(ctx, lastKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return sales.Report{}, ErrNotFound
	}
	if err != nil {
		return sales.Report{}, err
	}
	var report sales.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return sales.Report{}, fmt.Errorf("decode report: %w", err)
	}
	return report, nil
}

// Recent returns up to n reports, newest first.
func (s Store) Recent(ctx context.Context, n int) ([]sales.Report, error) {
	if s.R == nil {
		return nil, errors.New("runlog: redis client not configured")
	}
	if n <= 0 {
		n = defaultHistory
	}
	_, historyKey := s.keys()
	raws, err := s.R.LRange(ctx, historyKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	reports := make([]sales.Report, 0, len(raws))
	for _, raw := range raws {
		var report sales.Report
		if err := json.Unmarshal([]byte(raw), &report); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}
