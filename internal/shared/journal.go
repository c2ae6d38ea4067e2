package shared

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// JournalEvent is the flat record appended after each successful commit.
type JournalEvent struct {
	Type          string
	ItemID        int64
	QtyChange     int64
	UnitCostCents int64
	SourceKind    string
	SourceID      string
	At            time.Time
}

// Journal appends events to journal_events. It is best-effort by contract:
// it runs outside the authoritative transaction and callers must never let
// a journal failure roll back committed work.
type Journal struct {
	pool *pgxpool.Pool
}

// NewJournal returns a new Journal.
func NewJournal(pool *pgxpool.Pool) *Journal {
	return &Journal{pool: pool}
}

// Record persists the event.
func (j *Journal) Record(ctx context.Context, evt JournalEvent) error {
	if j == nil {
		return errors.New("journal not initialised")
	}
	if evt.Type == "" {
		return errors.New("journal event requires type")
	}
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	_, err := j.pool.Exec(ctx, `INSERT INTO journal_events (event_type, item_id, qty_change, unit_cost_cents, source_kind, source_id, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		evt.Type, evt.ItemID, evt.QtyChange, evt.UnitCostCents, evt.SourceKind, evt.SourceID, evt.At)
	return err
}

// Cleanup removes events older than retention.
func (j *Journal) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if j == nil {
		return nil
	}
	cutoff := time.Now().Add(-olderThan)
	_, err := j.pool.Exec(ctx, `DELETE FROM journal_events WHERE occurred_at < $1`, cutoff)
	return err
}
