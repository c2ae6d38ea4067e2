// Package manufacturing turns component stock into finished goods. A run
// consumes its inputs FIFO, prices the output from the exact batch slices it
// drained and posts exactly one output batch, all inside one transaction.
package manufacturing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RunStatus is the lifecycle state of a manufacturing run.
type RunStatus string

const (
	// RunStatusCreated is the initial state inside the run transaction.
	RunStatusCreated RunStatus = "created"
	// RunStatusCompleted is set once inputs are consumed and output posted.
	RunStatusCompleted RunStatus = "completed"
)

// Recipe is a stored bill of materials producing OutputQty base units of the
// output item per nominal batch.
type Recipe struct {
	ID           int64
	Name         string
	OutputItemID int64
	OutputQty    int64
	Items        []RecipeItem
	CreatedAt    time.Time
}

// RecipeItem is one component line. Optional components are silently skipped
// when stock is short instead of blocking the run.
type RecipeItem struct {
	ID          int64
	RecipeID    int64
	ItemID      int64
	QtyRequired int64
	IsOptional  bool
	Sort        int
}

// Run is a persisted manufacturing run. RecipeID is nil for ad-hoc runs.
type Run struct {
	ID           int64
	RecipeID     *int64
	OutputItemID int64
	OutputQty    int64
	Status       RunStatus
	ExecutedAt   *time.Time
	Meta         RunMeta
	CreatedAt    time.Time
}

// RunMeta is the cost breakdown stored on the run row.
type RunMeta struct {
	K                   string          `json:"k,omitempty"`
	CostInputsCents     int64           `json:"cost_inputs_cents"`
	OutputUnitCostCents int64           `json:"output_unit_cost_cents"`
	OutputBatchID       int64           `json:"output_batch_id"`
	Components          []ComponentMeta `json:"components"`
}

// ComponentMeta records what one component line actually consumed.
type ComponentMeta struct {
	ItemID      int64            `json:"item_id"`
	Qty         int64            `json:"qty"`
	Optional    bool             `json:"optional,omitempty"`
	Skipped     bool             `json:"skipped,omitempty"`
	Allocations []AllocationMeta `json:"allocations,omitempty"`
}

// AllocationMeta is one FIFO slice priced into the run.
type AllocationMeta struct {
	BatchID       int64 `json:"batch_id"`
	Qty           int64 `json:"qty"`
	UnitCostCents int64 `json:"unit_cost_cents"`
}

// Shortage is one missing component reported by validation.
type Shortage struct {
	ItemID    int64 `json:"item_id"`
	Required  int64 `json:"required"`
	Available int64 `json:"available"`
}

var (
	// ErrRecipeNotFound indicates an unknown recipe id.
	ErrRecipeNotFound = errors.New("manufacturing: recipe not found")
	// ErrRunNotFound indicates an unknown run id.
	ErrRunNotFound = errors.New("manufacturing: run not found")
	// ErrNoComponents indicates a plan with nothing to consume.
	ErrNoComponents = errors.New("manufacturing: run requires at least one component")
	// ErrInvalidOutputQty indicates a non-positive output quantity.
	ErrInvalidOutputQty = errors.New("manufacturing: output quantity must be positive")
	// ErrAmbiguousRequest indicates a request naming both a recipe and
	// inline components.
	ErrAmbiguousRequest = errors.New("manufacturing: request must use either recipe_id or components, not both")
	// ErrShortage is the sentinel matched against ShortageError values.
	ErrShortage = errors.New("manufacturing: insufficient component stock")
)

// ShortageError carries every missing non-optional component so the caller
// can report them all at once.
type ShortageError struct {
	Shortages []Shortage
}

func (e *ShortageError) Error() string {
	return fmt.Sprintf("manufacturing: %d component(s) short", len(e.Shortages))
}

// Is lets errors.Is(err, ErrShortage) match.
func (e *ShortageError) Is(target error) bool {
	return target == ErrShortage
}

// plannedComponent is a component line after scaling, resolved against
// current stock.
type plannedComponent struct {
	ItemID   int64
	Qty      int64
	Optional bool
	OnHand   int64
	Skipped  bool
}

// runPlan is the fully resolved form of a run request. Recipe and ad-hoc
// requests normalise into it once at the validation boundary; everything
// downstream works only with the plan.
type runPlan struct {
	recipeID     *int64
	outputItemID int64
	outputQty    int64
	k            decimal.Decimal
	components   []plannedComponent
}
