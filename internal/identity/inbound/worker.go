package inbound

import (
	"cmp"
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/konkurs/internal/identity/usecase"
	"github.com/shandysiswandi/konkurs/internal/pkg/config"
	"github.com/shandysiswandi/konkurs/internal/pkg/goroutine"
	"go.uber.org/atomic"
)

const defaultSweepInterval = 10 * time.Minute

type sweeper interface {
	OTPSweep(ctx context.Context) (*usecase.OTPSweepOutput, error)
}

// SweepWorker periodically drops stale OTPs and expired blacklist rows.
type SweepWorker struct {
	uc          sweeper
	runs        atomic.Int64
	invalidated atomic.Int64
	pruned      atomic.Int64
}

func (w *SweepWorker) Run(ctx context.Context) error {
	out, err := w.uc.OTPSweep(ctx)
	if err != nil {
		return err
	}

	w.runs.Inc()
	w.invalidated.Add(out.Invalidated)
	w.pruned.Add(out.Pruned)

	return nil
}

// Stats returns totals since start.
func (w *SweepWorker) Stats() (runs, invalidated, pruned int64) {
	return w.runs.Load(), w.invalidated.Load(), w.pruned.Load()
}

func RegisterSweepWorker(ctx context.Context, cfg config.Config, routine *goroutine.Manager, uc sweeper) *SweepWorker {
	w := &SweepWorker{uc: uc}

	interval := cmp.Or(cfg.GetMinute("modules.identity.sweep.interval_minutes"), defaultSweepInterval)
	slog.InfoContext(ctx, "identity sweep scheduled", "interval", interval.String())
	routine.Every(ctx, "identity.otp.sweep", interval, w.Run)

	return w
}
