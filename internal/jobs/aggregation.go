package jobs

import (
	"log/slog"
	"time"

	"funneltrack/internal/dailystats"
	"funneltrack/internal/database"
)

// AggregationJob keeps the daily aggregate store current. Each run
// recomputes today's partial row and fills yesterday's if missing, so a
// restart never leaves a gap.
type AggregationJob struct {
	dbManager *database.DBManager
	logger    *slog.Logger
}

func NewAggregationJob(dbManager *database.DBManager, logger *slog.Logger) *AggregationJob {
	return &AggregationJob{
		dbManager: dbManager,
		logger:    logger,
	}
}

// Run computes the aggregate for yesterday (skipped when already present)
// and force-refreshes today's running row.
func (j *AggregationJob) Run() error {
	now := time.Now().UTC()
	yesterday := now.AddDate(0, 0, -1)

	if _, err := dailystats.ComputeDailyAggregate(j.dbManager, j.logger, yesterday, false); err != nil {
		// Yesterday failing should not stop today's refresh
		j.logger.Error("Failed to aggregate yesterday", slog.Any("error", err))
	}

	if _, err := dailystats.ComputeDailyAggregate(j.dbManager, j.logger, now, true); err != nil {
		return err
	}
	return nil
}
