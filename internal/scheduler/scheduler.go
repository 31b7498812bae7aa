// Package scheduler drives the timed POS voucher poll. Each cycle is an
// independent reconciliation run; a skipped or failed cycle is absorbed by
// the lookback window of the next one.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/mercurios-retail/syncbridge/internal/sync"
)

type Scheduler struct {
	vouchers *sync.VoucherReconciler
	interval time.Duration
	done     chan struct{}
}

func New(vouchers *sync.VoucherReconciler, interval time.Duration) *Scheduler {
	return &Scheduler{
		vouchers: vouchers,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches the poll loop. It returns immediately; Stop ends the loop.
func (s *Scheduler) Start() {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.runOnce()
			case <-s.done:
				return
			}
		}
	}()
	slog.Info("voucher poll scheduler started", "interval", s.interval.String())
}

func (s *Scheduler) Stop() {
	close(s.done)
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	stats, err := s.vouchers.SyncFromProHandel(ctx)
	if err != nil {
		slog.Error("scheduled voucher sync failed",
			"component", "voucher_sync", "error", err)
		return
	}
	slog.Info("scheduled voucher sync finished",
		"component", "voucher_sync", "fetched", stats.Fetched,
		"created", stats.Created, "redeemed", stats.Redeemed, "errors", stats.Errors)
}
