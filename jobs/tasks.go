// Package jobs holds the background workers: the store-wide conservation
// audit and the retention sweep for journal and idempotency rows.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskConservationAudit re-checks that item counters match their
	// movement history and open lots.
	TaskConservationAudit = "ledger:conservation_audit"
	// TaskRetentionSweep deletes expired journal and idempotency rows.
	TaskRetentionSweep = "maintenance:retention_sweep"
)

// ConservationAuditPayload scopes an audit. ItemID zero audits every item.
type ConservationAuditPayload struct {
	ItemID int64 `json:"item_id,omitempty"`
}

// NewConservationAuditTask constructs the audit task.
func NewConservationAuditTask(payload ConservationAuditPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskConservationAudit, data), nil
}

// RetentionSweepPayload carries the retention window.
type RetentionSweepPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewRetentionSweepTask constructs the sweep task.
func NewRetentionSweepTask(payload RetentionSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRetentionSweep, data), nil
}
