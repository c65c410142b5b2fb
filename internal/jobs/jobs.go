package jobs

import (
	"log/slog"

	"funneltrack/internal/database"
)

// NewJobs creates the background job scheduler wired with the default job
// set.
func NewJobs(dbManager *database.DBManager, logger *slog.Logger) (*Scheduler, error) {
	return NewScheduler(dbManager, logger)
}
