package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/konkurs/internal/pkg/goerror"
)

type OTPSweepOutput struct {
	Invalidated int64
	Pruned      int64
}

// OTPSweep invalidates codes older than the limiter window and drops
// blacklist rows whose tokens have expired. Nothing depends on it for
// correctness; it keeps the tables small.
func (s *Usecase) OTPSweep(ctx context.Context) (*OTPSweepOutput, error) {
	ctx, span := s.startSpan(ctx, "OTPSweep")
	defer span.End()

	now := s.clock.Now()
	window := s.policy().limiter.Window

	invalidated, err := s.repoDB.SweepOTPs(ctx, now.Add(-window), now)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo sweep otps", "error", err)
		return nil, goerror.NewServer(err)
	}

	pruned, err := s.repoDB.PruneBlacklist(ctx, now)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo prune blacklist", "error", err)
		return nil, goerror.NewServer(err)
	}

	if invalidated > 0 || pruned > 0 {
		slog.InfoContext(ctx, "identity sweep finished", "invalidated", invalidated, "pruned", pruned)
	}

	return &OTPSweepOutput{Invalidated: invalidated, Pruned: pruned}, nil
}
