package intelligence

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RefreshStats summarizes one batch refresh run.
type RefreshStats struct {
	JobID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Processed  int
	Succeeded  int
	Failed     int
}

// RefreshAllUsers regenerates insights, anomalies, and predicted expenses
// for every user, one user at a time with a pause between users so the
// advisor backend is not flooded. A per-user failure is recorded and the
// batch continues; cancellation is honored between users.
func (s *Service) RefreshAllUsers(ctx context.Context, interUserDelay time.Duration) (RefreshStats, error) {
	stats := RefreshStats{
		JobID:     uuid.NewString(),
		StartedAt: s.nowFn().UTC(),
	}

	userIDs, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return stats, err
	}

	s.logger.Info("batch refresh started", "jobId", stats.JobID, "users", len(userIDs))

	for i, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("batch refresh cancelled",
				"jobId", stats.JobID, "processed", stats.Processed, "remaining", len(userIDs)-i)
			stats.FinishedAt = s.nowFn().UTC()
			return stats, err
		}
		if i > 0 && interUserDelay > 0 {
			select {
			case <-ctx.Done():
				stats.FinishedAt = s.nowFn().UTC()
				return stats, ctx.Err()
			case <-time.After(interUserDelay):
			}
		}

		stats.Processed++
		if err := s.refreshUser(ctx, userID); err != nil {
			stats.Failed++
			s.logger.Error("user refresh failed", "jobId", stats.JobID, "userId", userID, "error", err)
			continue
		}
		stats.Succeeded++
	}

	stats.FinishedAt = s.nowFn().UTC()
	s.logger.Info("batch refresh finished",
		"jobId", stats.JobID,
		"processed", stats.Processed,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"duration", stats.FinishedAt.Sub(stats.StartedAt))
	return stats, nil
}

// refreshUser runs the three per-user refreshes. The first error stops
// that user's refresh but not the batch.
func (s *Service) refreshUser(ctx context.Context, userID string) error {
	if _, err := s.RefreshInsights(ctx, userID); err != nil {
		return err
	}
	if _, err := s.DetectAnomalies(ctx, userID); err != nil {
		return err
	}
	if _, err := s.PredictExpenses(ctx, userID); err != nil {
		return err
	}
	return nil
}

// RunPeriodicRefresh blocks, running RefreshAllUsers on the given interval
// until the context is cancelled. Intended to run in its own goroutine.
func (s *Service) RunPeriodicRefresh(ctx context.Context, interval, interUserDelay time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RefreshAllUsers(ctx, interUserDelay); err != nil && ctx.Err() == nil {
				s.logger.Error("periodic refresh failed", "error", err)
			}
		}
	}
}
