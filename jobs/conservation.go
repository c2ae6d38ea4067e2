package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockforge/stockforge/internal/shared"
)

// ConservationAuditor verifies, per item, that the denormalised counter, the
// signed movement sum and the open lot remainders all agree. Drift means a
// write path bypassed the ledger.
type ConservationAuditor struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewConservationAuditor constructs the auditor.
func NewConservationAuditor(pool *pgxpool.Pool, logger *slog.Logger) *ConservationAuditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConservationAuditor{pool: pool, logger: logger}
}

type auditRow struct {
	ItemID       int64
	QtyStored    int64
	MovementSum  int64
	RemainingSum int64
}

// Handle processes TaskConservationAudit tasks.
func (a *ConservationAuditor) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ConservationAuditPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	anomalies, err := a.Audit(ctx, payload.ItemID)
	if err != nil {
		return err
	}
	if len(anomalies) > 0 {
		return fmt.Errorf("conservation audit found %d drifted item(s)", len(anomalies))
	}
	return nil
}

// Audit returns every item whose three stock figures disagree. itemID zero
// audits the whole store.
func (a *ConservationAuditor) Audit(ctx context.Context, itemID int64) ([]int64, error) {
	rows, err := a.pool.Query(ctx, `SELECT i.id, i.qty_stored,
    COALESCE((SELECT SUM(m.qty_change) FROM item_movements m WHERE m.item_id = i.id), 0),
    COALESCE((SELECT SUM(b.qty_remaining) FROM item_batches b WHERE b.item_id = i.id), 0)
FROM items i
WHERE $1 = 0 OR i.id = $1
ORDER BY i.id ASC`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var anomalies []int64
	for rows.Next() {
		var row auditRow
		if err := rows.Scan(&row.ItemID, &row.QtyStored, &row.MovementSum, &row.RemainingSum); err != nil {
			return nil, err
		}
		if row.QtyStored == row.MovementSum && row.QtyStored == row.RemainingSum {
			continue
		}
		anomalies = append(anomalies, row.ItemID)
		a.logger.Error("stock conservation drift",
			slog.Int64("item_id", row.ItemID),
			slog.Int64("qty_stored", row.QtyStored),
			slog.Int64("movement_sum", row.MovementSum),
			slog.Int64("remaining_sum", row.RemainingSum))
	}
	return anomalies, rows.Err()
}

// RetentionSweeper removes expired journal and idempotency rows.
type RetentionSweeper struct {
	journal     *shared.Journal
	idempotency *shared.IdempotencyStore
	logger      *slog.Logger
	retention   time.Duration
}

// NewRetentionSweeper constructs the sweeper with a default retention used
// when the task payload carries none.
func NewRetentionSweeper(journal *shared.Journal, idempotency *shared.IdempotencyStore, retention time.Duration, logger *slog.Logger) *RetentionSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	return &RetentionSweeper{journal: journal, idempotency: idempotency, logger: logger, retention: retention}
}

// Handle processes TaskRetentionSweep tasks.
func (s *RetentionSweeper) Handle(ctx context.Context, t *asynq.Task) error {
	var payload RetentionSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := payload.Retention
	if retention <= 0 {
		retention = s.retention
	}

	if err := s.journal.Cleanup(ctx, retention); err != nil {
		return fmt.Errorf("journal cleanup: %w", err)
	}
	if err := s.idempotency.Cleanup(ctx, retention); err != nil {
		return fmt.Errorf("idempotency cleanup: %w", err)
	}
	s.logger.Info("retention sweep finished", slog.Duration("retention", retention))
	return nil
}
