package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/clinea-his/clinea-his/internal/businessday"
	jobmetrics "github.com/clinea-his/clinea-his/internal/jobs"
)

// DriftScanJob re-reads the day state so restriction decisions and the drift
// gauge stay current even when no HTTP traffic triggers the in-process
// poller.
type DriftScanJob struct {
	Poller  *businessday.Poller
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewDriftScanJob initialises the drift scan handler.
func NewDriftScanJob(poller *businessday.Poller, logger *slog.Logger, metrics *jobmetrics.Metrics) *DriftScanJob {
	return &DriftScanJob{Poller: poller, Logger: logger, Metrics: metrics}
}

// Handle executes one drift scan.
func (j *DriftScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Poller == nil {
		return errors.New("drift scan: handler not configured")
	}
	var payload DriftScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskDriftScan)
	state, err := j.Poller.Scan(ctx)
	if errors.Is(err, businessday.ErrClockSkew) {
		// Already logged by the poller; the scan itself succeeded.
		err = nil
	}
	if err != nil {
		j.Logger.Error("drift scan failed", slog.Any("error", err))
		return tracker.End(err)
	}
	if state.Drifted {
		j.Logger.Warn("business day awaiting closure",
			slog.Time("business_date", state.BusinessDate),
			slog.Time("wall_clock_date", state.WallClockDate),
			slog.String("source", payload.Source),
		)
	}
	_ = tracker.End(nil)
	return nil
}
