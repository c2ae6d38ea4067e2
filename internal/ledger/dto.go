package ledger

import "time"

// AddBatchRequest is the inbound-lot payload. Quantities are base units.
type AddBatchRequest struct {
	ItemID         int64  `json:"item_id" validate:"required,gt=0"`
	Qty            int64  `json:"qty" validate:"required,gt=0"`
	UnitCostCents  int64  `json:"unit_cost_cents" validate:"gte=0"`
	SourceKind     string `json:"source_kind" validate:"omitempty,oneof=purchase stock_in adjustment"`
	SourceID       string `json:"source_id" validate:"omitempty,max=128"`
	IdempotencyKey string `json:"idempotency_key" validate:"omitempty,max=128"`
}

// ConsumeRequest is the FIFO consumption payload.
type ConsumeRequest struct {
	ItemID         int64  `json:"item_id" validate:"required,gt=0"`
	Qty            int64  `json:"qty" validate:"required,gt=0"`
	SourceKind     string `json:"source_kind" validate:"omitempty,oneof=stock_out adjustment"`
	SourceID       string `json:"source_id" validate:"omitempty,max=128"`
	IdempotencyKey string `json:"idempotency_key" validate:"omitempty,max=128"`
}

// AdjustmentRequest posts a signed correction.
type AdjustmentRequest struct {
	ItemID        int64  `json:"item_id" validate:"required,gt=0"`
	Delta         int64  `json:"delta" validate:"required"`
	UnitCostCents int64  `json:"unit_cost_cents" validate:"gte=0"`
	Reason        string `json:"reason" validate:"omitempty,max=256"`
}

// BatchResponse mirrors a created lot.
type BatchResponse struct {
	ID            int64     `json:"id"`
	ItemID        int64     `json:"item_id"`
	QtyInitial    int64     `json:"qty_initial"`
	QtyRemaining  int64     `json:"qty_remaining"`
	UnitCostCents int64     `json:"unit_cost_cents"`
	SourceKind    string    `json:"source_kind"`
	SourceID      string    `json:"source_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// AllocationResponse is one FIFO slice of a consumption.
type AllocationResponse struct {
	BatchID       int64 `json:"batch_id"`
	Qty           int64 `json:"qty"`
	UnitCostCents int64 `json:"unit_cost_cents"`
}

// ShortageResponse is one line of the HTTP 400 shortage payload.
type ShortageResponse struct {
	ItemID    int64 `json:"item_id"`
	Required  int64 `json:"required"`
	Available int64 `json:"available"`
}

// OnHandResponse reports the current counter for an item.
type OnHandResponse struct {
	ItemID int64  `json:"item_id"`
	Qty    int64  `json:"qty"`
	Unit   string `json:"unit,omitempty"`
}

// MovementResponse mirrors one ledger line.
type MovementResponse struct {
	ID            int64     `json:"id"`
	ItemID        int64     `json:"item_id"`
	BatchID       *int64    `json:"batch_id,omitempty"`
	QtyChange     int64     `json:"qty_change"`
	UnitCostCents int64     `json:"unit_cost_cents"`
	SourceKind    string    `json:"source_kind"`
	SourceID      string    `json:"source_id,omitempty"`
	IsOversold    bool      `json:"is_oversold"`
	CreatedAt     time.Time `json:"created_at"`
}

func toBatchResponse(b Batch) BatchResponse {
	return BatchResponse{
		ID:            b.ID,
		ItemID:        b.ItemID,
		QtyInitial:    b.QtyInitial,
		QtyRemaining:  b.QtyRemaining,
		UnitCostCents: b.UnitCostCents,
		SourceKind:    string(b.SourceKind),
		SourceID:      b.SourceID,
		CreatedAt:     b.CreatedAt,
	}
}

func toAllocationResponses(allocs []Allocation) []AllocationResponse {
	out := make([]AllocationResponse, 0, len(allocs))
	for _, a := range allocs {
		out = append(out, AllocationResponse{BatchID: a.BatchID, Qty: a.Qty, UnitCostCents: a.UnitCostCents})
	}
	return out
}

func toMovementResponses(movements []Movement) []MovementResponse {
	out := make([]MovementResponse, 0, len(movements))
	for _, mv := range movements {
		out = append(out, MovementResponse{
			ID:            mv.ID,
			ItemID:        mv.ItemID,
			BatchID:       mv.BatchID,
			QtyChange:     mv.QtyChange,
			UnitCostCents: mv.UnitCostCents,
			SourceKind:    string(mv.SourceKind),
			SourceID:      mv.SourceID,
			IsOversold:    mv.IsOversold,
			CreatedAt:     mv.CreatedAt,
		})
	}
	return out
}
