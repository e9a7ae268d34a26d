package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDriftScan re-reads the business-day state on a schedule.
	TaskDriftScan = "day:drift_scan"
)

// DriftScanPayload parameterises one drift scan.
type DriftScanPayload struct {
	// Source tags who asked for the scan, for logging only.
	Source string `json:"source,omitempty"`
}

// NewDriftScanTask constructs an Asynq task.
func NewDriftScanTask(payload DriftScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDriftScan, data), nil
}
