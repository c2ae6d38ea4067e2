package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockforge/stockforge/internal/platform/db"
)

// TxRepository exposes the transaction-scoped operations that AddBatchTx and
// ConsumeTx need. Manufacturing embeds it so run bookkeeping and FIFO
// allocations share one transaction.
type TxRepository interface {
	GetItemForUpdate(ctx context.Context, itemID int64) (Item, error)
	LockOpenBatches(ctx context.Context, itemID int64) ([]Batch, error)
	InsertBatch(ctx context.Context, batch Batch) (int64, error)
	DecrementBatch(ctx context.Context, batchID, qty int64) error
	InsertMovement(ctx context.Context, mv Movement) (int64, error)
	AdjustItemQty(ctx context.Context, itemID, delta int64) error
}

// Repository is the pgx-backed ledger store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside a RepeatableRead transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// NewTxRepository wraps an open pgx transaction. Exported so other modules
// can run ledger operations inside their own transactions.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetItemForUpdate(ctx context.Context, itemID int64) (Item, error) {
	row := r.tx.QueryRow(ctx, `SELECT id, name, unit, dimension, qty_stored, created_at, updated_at
FROM items WHERE id=$1 FOR UPDATE`, itemID)
	return scanItem(row)
}

func (r *txRepository) LockOpenBatches(ctx context.Context, itemID int64) ([]Batch, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, item_id, qty_initial, qty_remaining, unit_cost_cents, source_kind, source_id, created_at
FROM item_batches
WHERE item_id=$1 AND qty_remaining > 0
ORDER BY created_at ASC, id ASC
FOR UPDATE`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.ItemID, &b.QtyInitial, &b.QtyRemaining, &b.UnitCostCents, &b.SourceKind, &b.SourceID, &b.CreatedAt); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func (r *txRepository) InsertBatch(ctx context.Context, b Batch) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO item_batches (item_id, qty_initial, qty_remaining, unit_cost_cents, source_kind, source_id)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		b.ItemID, b.QtyInitial, b.QtyRemaining, b.UnitCostCents, string(b.SourceKind), b.SourceID).Scan(&id)
	return id, err
}

func (r *txRepository) DecrementBatch(ctx context.Context, batchID, qty int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE item_batches SET qty_remaining = qty_remaining - $2
WHERE id=$1 AND qty_remaining >= $2`, batchID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("batch %d cannot release %d units", batchID, qty)
	}
	return nil
}

func (r *txRepository) InsertMovement(ctx context.Context, mv Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO item_movements (item_id, batch_id, qty_change, unit_cost_cents, source_kind, source_id, is_oversold)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		mv.ItemID, mv.BatchID, mv.QtyChange, mv.UnitCostCents, string(mv.SourceKind), mv.SourceID, mv.IsOversold).Scan(&id)
	return id, err
}

func (r *txRepository) AdjustItemQty(ctx context.Context, itemID, delta int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE items SET qty_stored = qty_stored + $2, updated_at = NOW() WHERE id=$1`, itemID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// GetItem reads an item outside any transaction.
func (r *Repository) GetItem(ctx context.Context, itemID int64) (Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, unit, dimension, qty_stored, created_at, updated_at
FROM items WHERE id=$1`, itemID)
	return scanItem(row)
}

// OnHandQty reads the denormalised counter.
func (r *Repository) OnHandQty(ctx context.Context, itemID int64) (int64, error) {
	var qty int64
	err := r.pool.QueryRow(ctx, `SELECT qty_stored FROM items WHERE id=$1`, itemID).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrItemNotFound
	}
	return qty, err
}

// ListMovements returns the newest movements for an item.
func (r *Repository) ListMovements(ctx context.Context, itemID int64, limit int) ([]Movement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, item_id, batch_id, qty_change, unit_cost_cents, source_kind, source_id, is_oversold, created_at
FROM item_movements WHERE item_id=$1
ORDER BY created_at DESC, id DESC LIMIT $2`, itemID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []Movement
	for rows.Next() {
		var mv Movement
		if err := rows.Scan(&mv.ID, &mv.ItemID, &mv.BatchID, &mv.QtyChange, &mv.UnitCostCents, &mv.SourceKind, &mv.SourceID, &mv.IsOversold, &mv.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, mv)
	}
	return movements, rows.Err()
}

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.Name, &it.Unit, &it.Dimension, &it.QtyStored, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	if err != nil {
		return Item{}, err
	}
	return it, nil
}
