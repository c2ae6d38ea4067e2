package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AddBatchTx creates a lot plus its positive movement and bumps the item
// counter, all on the supplied transaction.
func AddBatchTx(ctx context.Context, tx TxRepository, input AddBatchInput) (Batch, error) {
	if input.Qty <= 0 {
		return Batch{}, ErrInvalidQuantity
	}
	if input.UnitCostCents < 0 {
		return Batch{}, ErrInvalidUnitCost
	}
	if input.SourceKind == "" {
		input.SourceKind = SourceStockIn
	}
	// Every lot carries a reference; generate one when the caller has none.
	if input.SourceID == "" {
		input.SourceID = uuid.NewString()
	}

	batch := Batch{
		ItemID:        input.ItemID,
		QtyInitial:    input.Qty,
		QtyRemaining:  input.Qty,
		UnitCostCents: input.UnitCostCents,
		SourceKind:    input.SourceKind,
		SourceID:      input.SourceID,
		CreatedAt:     time.Now().UTC(),
	}
	id, err := tx.InsertBatch(ctx, batch)
	if err != nil {
		return Batch{}, fmt.Errorf("insert batch: %w", err)
	}
	batch.ID = id

	if _, err := tx.InsertMovement(ctx, Movement{
		ItemID:        input.ItemID,
		BatchID:       &batch.ID,
		QtyChange:     input.Qty,
		UnitCostCents: input.UnitCostCents,
		SourceKind:    input.SourceKind,
		SourceID:      input.SourceID,
	}); err != nil {
		return Batch{}, fmt.Errorf("insert movement: %w", err)
	}

	if err := tx.AdjustItemQty(ctx, input.ItemID, input.Qty); err != nil {
		return Batch{}, fmt.Errorf("adjust item qty: %w", err)
	}
	return batch, nil
}

// ConsumeTx drains open batches in FIFO order (created_at ASC, id ASC) on the
// supplied transaction. It checks availability before touching any row and
// returns InsufficientStockError without mutation when short. Each batch
// touched gets exactly one negative movement. Callers that receive an error
// must roll back.
func ConsumeTx(ctx context.Context, tx TxRepository, input ConsumeInput) ([]Allocation, error) {
	if input.Qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	if input.SourceKind == "" {
		input.SourceKind = SourceStockOut
	}

	item, err := tx.GetItemForUpdate(ctx, input.ItemID)
	if err != nil {
		return nil, err
	}
	if item.QtyStored < input.Qty {
		return nil, &InsufficientStockError{ItemID: input.ItemID, Required: input.Qty, OnHand: item.QtyStored}
	}

	batches, err := tx.LockOpenBatches(ctx, input.ItemID)
	if err != nil {
		return nil, fmt.Errorf("lock batches: %w", err)
	}

	remaining := input.Qty
	allocations := make([]Allocation, 0, len(batches))
	for _, b := range batches {
		if remaining == 0 {
			break
		}
		take := b.QtyRemaining
		if take > remaining {
			take = remaining
		}
		if err := tx.DecrementBatch(ctx, b.ID, take); err != nil {
			return nil, fmt.Errorf("decrement batch %d: %w", b.ID, err)
		}
		batchID := b.ID
		if _, err := tx.InsertMovement(ctx, Movement{
			ItemID:        input.ItemID,
			BatchID:       &batchID,
			QtyChange:     -take,
			UnitCostCents: b.UnitCostCents,
			SourceKind:    input.SourceKind,
			SourceID:      input.SourceID,
		}); err != nil {
			return nil, fmt.Errorf("insert movement: %w", err)
		}
		allocations = append(allocations, Allocation{BatchID: b.ID, Qty: take, UnitCostCents: b.UnitCostCents})
		remaining -= take
	}

	// The counter said enough was on hand but the open batches did not cover
	// it. That means the counter has drifted from the lots; abort the tx.
	if remaining > 0 {
		return nil, &InsufficientStockError{ItemID: input.ItemID, Required: input.Qty, OnHand: input.Qty - remaining}
	}

	if err := tx.AdjustItemQty(ctx, input.ItemID, -input.Qty); err != nil {
		return nil, fmt.Errorf("adjust item qty: %w", err)
	}
	return allocations, nil
}
