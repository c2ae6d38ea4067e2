package manufacturing

import "time"

// RunRequest starts or validates a run. Either recipe_id (scaled to
// output_qty) or output_item_id plus components, never both.
type RunRequest struct {
	RecipeID     *int64             `json:"recipe_id,omitempty" validate:"omitempty,gt=0"`
	OutputItemID int64              `json:"output_item_id,omitempty" validate:"omitempty,gt=0"`
	OutputQty    int64              `json:"output_qty" validate:"required,gt=0"`
	Components   []ComponentRequest `json:"components,omitempty" validate:"omitempty,dive"`
}

// ComponentRequest is one inline component of an ad-hoc run.
type ComponentRequest struct {
	ItemID   int64 `json:"item_id" validate:"required,gt=0"`
	Qty      int64 `json:"qty" validate:"required,gt=0"`
	Optional bool  `json:"optional"`
}

// PlannedComponentResponse shows how one line resolved during validation.
type PlannedComponentResponse struct {
	ItemID   int64 `json:"item_id"`
	Qty      int64 `json:"qty"`
	Optional bool  `json:"optional,omitempty"`
	OnHand   int64 `json:"on_hand"`
	Skipped  bool  `json:"skipped,omitempty"`
}

// ValidationResult is the read-only answer to "can this run execute".
type ValidationResult struct {
	OutputItemID int64                      `json:"output_item_id"`
	OutputQty    int64                      `json:"output_qty"`
	K            string                     `json:"k"`
	Feasible     bool                       `json:"feasible"`
	Components   []PlannedComponentResponse `json:"components"`
	Shortages    []Shortage                 `json:"shortages,omitempty"`
}

func newValidationResult(plan runPlan, shortages []Shortage) ValidationResult {
	res := ValidationResult{
		OutputItemID: plan.outputItemID,
		OutputQty:    plan.outputQty,
		K:            plan.k.String(),
		Feasible:     len(shortages) == 0,
		Shortages:    shortages,
	}
	for _, c := range plan.components {
		res.Components = append(res.Components, PlannedComponentResponse{
			ItemID:   c.ItemID,
			Qty:      c.Qty,
			Optional: c.Optional,
			OnHand:   c.OnHand,
			Skipped:  c.Skipped,
		})
	}
	return res
}

// RunResult is returned after a successful execution.
type RunResult struct {
	RunID               int64           `json:"run_id"`
	OutputItemID        int64           `json:"output_item_id"`
	OutputQty           int64           `json:"output_qty"`
	OutputBatchID       int64           `json:"output_batch_id"`
	CostInputsCents     int64           `json:"cost_inputs_cents"`
	OutputUnitCostCents int64           `json:"output_unit_cost_cents"`
	Components          []ComponentMeta `json:"components"`
}

// RunResponse mirrors a persisted run.
type RunResponse struct {
	ID           int64      `json:"id"`
	RecipeID     *int64     `json:"recipe_id,omitempty"`
	OutputItemID int64      `json:"output_item_id"`
	OutputQty    int64      `json:"output_qty"`
	Status       string     `json:"status"`
	ExecutedAt   *time.Time `json:"executed_at,omitempty"`
	Meta         RunMeta    `json:"meta"`
	CreatedAt    time.Time  `json:"created_at"`
}

func toRunResponse(run Run) RunResponse {
	return RunResponse{
		ID:           run.ID,
		RecipeID:     run.RecipeID,
		OutputItemID: run.OutputItemID,
		OutputQty:    run.OutputQty,
		Status:       string(run.Status),
		ExecutedAt:   run.ExecutedAt,
		Meta:         run.Meta,
		CreatedAt:    run.CreatedAt,
	}
}
