package manufacturing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockforge/stockforge/internal/ledger"
	"github.com/stockforge/stockforge/internal/money"
	"github.com/stockforge/stockforge/internal/shared"
	"github.com/stockforge/stockforge/internal/uom"
)

// RepositoryPort is the persistence surface the service depends on.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetRecipe(ctx context.Context, recipeID int64) (Recipe, error)
	GetRun(ctx context.Context, runID int64) (Run, error)
}

// LedgerReadPort provides the item and stock reads used outside the run
// transaction.
type LedgerReadPort interface {
	GetItem(ctx context.Context, itemID int64) (ledger.Item, error)
	OnHandQty(ctx context.Context, itemID int64) (int64, error)
}

// JournalPort records committed run activity.
type JournalPort interface {
	Record(ctx context.Context, evt shared.JournalEvent) error
}

// Service validates and executes manufacturing runs.
type Service struct {
	repo    RepositoryPort
	stock   LedgerReadPort
	journal JournalPort
	cache   *ledger.Cache
	logger  *slog.Logger
}

// NewService wires the manufacturing service. journal and cache may be nil.
func NewService(repo RepositoryPort, stock LedgerReadPort, journal JournalPort, cache *ledger.Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, stock: stock, journal: journal, cache: cache, logger: logger}
}

// resolvePlan normalises a request into a plan exactly once. A request names
// either a stored recipe, scaled by output quantity, or inline components.
func (s *Service) resolvePlan(ctx context.Context, req RunRequest) (runPlan, error) {
	if req.OutputQty <= 0 {
		return runPlan{}, ErrInvalidOutputQty
	}

	if req.RecipeID != nil {
		if len(req.Components) > 0 {
			return runPlan{}, ErrAmbiguousRequest
		}
		recipe, err := s.repo.GetRecipe(ctx, *req.RecipeID)
		if err != nil {
			return runPlan{}, err
		}
		if len(recipe.Items) == 0 {
			return runPlan{}, ErrNoComponents
		}

		k := decimal.NewFromInt(req.OutputQty).Div(decimal.NewFromInt(recipe.OutputQty))
		plan := runPlan{
			recipeID:     &recipe.ID,
			outputItemID: recipe.OutputItemID,
			outputQty:    req.OutputQty,
			k:            k,
		}
		for _, line := range recipe.Items {
			qty := decimal.NewFromInt(line.QtyRequired).Mul(k).Round(0).IntPart()
			if qty <= 0 {
				continue
			}
			plan.components = append(plan.components, plannedComponent{
				ItemID:   line.ItemID,
				Qty:      qty,
				Optional: line.IsOptional,
			})
		}
		if len(plan.components) == 0 {
			return runPlan{}, ErrNoComponents
		}
		return plan, nil
	}

	if req.OutputItemID <= 0 {
		return runPlan{}, fmt.Errorf("%w: output_item_id required for ad-hoc runs", ErrInvalidOutputQty)
	}
	if len(req.Components) == 0 {
		return runPlan{}, ErrNoComponents
	}
	plan := runPlan{
		outputItemID: req.OutputItemID,
		outputQty:    req.OutputQty,
		k:            decimal.NewFromInt(1),
	}
	for _, c := range req.Components {
		if c.Qty <= 0 {
			return runPlan{}, ledger.ErrInvalidQuantity
		}
		plan.components = append(plan.components, plannedComponent{
			ItemID:   c.ItemID,
			Qty:      c.Qty,
			Optional: c.Optional,
		})
	}
	return plan, nil
}

// resolveStock fills on-hand figures into the plan and returns shortages for
// every non-optional component that cannot be covered. Optional shorts are
// marked for skipping instead.
func (s *Service) resolveStock(ctx context.Context, plan *runPlan) ([]Shortage, error) {
	var shortages []Shortage
	for i := range plan.components {
		c := &plan.components[i]
		onHand, err := s.stock.OnHandQty(ctx, c.ItemID)
		if err != nil {
			return nil, err
		}
		c.OnHand = onHand
		if onHand >= c.Qty {
			continue
		}
		if c.Optional {
			c.Skipped = true
			continue
		}
		shortages = append(shortages, Shortage{ItemID: c.ItemID, Required: c.Qty, Available: onHand})
	}
	return shortages, nil
}

// ValidateRun resolves the request and reports every missing component
// without touching stock.
func (s *Service) ValidateRun(ctx context.Context, req RunRequest) (ValidationResult, error) {
	plan, err := s.resolvePlan(ctx, req)
	if err != nil {
		return ValidationResult{}, err
	}
	shortages, err := s.resolveStock(ctx, &plan)
	if err != nil {
		return ValidationResult{}, err
	}
	return newValidationResult(plan, shortages), nil
}

// ExecuteRun performs the run atomically: create the run row, drain every
// retained component FIFO, price the output from the consumed slices, post
// exactly one output batch and mark the run completed. Any failure rolls the
// whole transaction back and leaves the run absent.
func (s *Service) ExecuteRun(ctx context.Context, req RunRequest) (RunResult, error) {
	plan, err := s.resolvePlan(ctx, req)
	if err != nil {
		return RunResult{}, err
	}
	shortages, err := s.resolveStock(ctx, &plan)
	if err != nil {
		return RunResult{}, err
	}
	if len(shortages) > 0 {
		return RunResult{}, &ShortageError{Shortages: shortages}
	}

	items, err := s.loadItems(ctx, plan)
	if err != nil {
		return RunResult{}, err
	}
	outputItem := items[plan.outputItemID]
	outputQtyUoM, err := uom.FromBase(plan.outputQty, outputItem.Unit, outputItem.Dimension)
	if err != nil {
		return RunResult{}, err
	}
	if outputQtyUoM.IsZero() {
		return RunResult{}, ErrInvalidOutputQty
	}

	var (
		result RunResult
		meta   RunMeta
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		runID, err := tx.CreateRun(ctx, Run{
			RecipeID:     plan.recipeID,
			OutputItemID: plan.outputItemID,
			OutputQty:    plan.outputQty,
		})
		if err != nil {
			return fmt.Errorf("create run: %w", err)
		}
		sourceID := fmt.Sprintf("run:%d", runID)

		cost := decimal.Zero
		meta = RunMeta{K: plan.k.String(), Components: make([]ComponentMeta, 0, len(plan.components))}
		for _, c := range plan.components {
			cm := ComponentMeta{ItemID: c.ItemID, Qty: c.Qty, Optional: c.Optional, Skipped: c.Skipped}
			if c.Skipped {
				meta.Components = append(meta.Components, cm)
				continue
			}
			allocations, err := ledger.ConsumeTx(ctx, tx, ledger.ConsumeInput{
				ItemID:     c.ItemID,
				Qty:        c.Qty,
				SourceKind: ledger.SourceManufacturing,
				SourceID:   sourceID,
			})
			if err != nil {
				return err
			}
			item := items[c.ItemID]
			for _, a := range allocations {
				qtyUoM, err := uom.FromBase(a.Qty, item.Unit, item.Dimension)
				if err != nil {
					return err
				}
				cost = cost.Add(money.Cents(a.UnitCostCents).Mul(qtyUoM))
				cm.Allocations = append(cm.Allocations, AllocationMeta{BatchID: a.BatchID, Qty: a.Qty, UnitCostCents: a.UnitCostCents})
			}
			meta.Components = append(meta.Components, cm)
		}

		perOutput := money.RoundHalfUpCents(cost.Div(outputQtyUoM))
		batch, err := ledger.AddBatchTx(ctx, tx, ledger.AddBatchInput{
			ItemID:        plan.outputItemID,
			Qty:           plan.outputQty,
			UnitCostCents: perOutput,
			SourceKind:    ledger.SourceManufacturing,
			SourceID:      sourceID,
		})
		if err != nil {
			return fmt.Errorf("post output batch: %w", err)
		}

		meta.CostInputsCents = money.RoundHalfUpCents(cost)
		meta.OutputUnitCostCents = perOutput
		meta.OutputBatchID = batch.ID
		if err := tx.CompleteRun(ctx, runID, time.Now().UTC(), meta); err != nil {
			return fmt.Errorf("complete run: %w", err)
		}

		result = RunResult{
			RunID:               runID,
			OutputItemID:        plan.outputItemID,
			OutputQty:           plan.outputQty,
			OutputBatchID:       batch.ID,
			CostInputsCents:     meta.CostInputsCents,
			OutputUnitCostCents: perOutput,
			Components:          meta.Components,
		}
		return nil
	})
	if err != nil {
		return RunResult{}, err
	}

	touched := make([]int64, 0, len(plan.components)+1)
	for _, c := range plan.components {
		touched = append(touched, c.ItemID)
	}
	touched = append(touched, plan.outputItemID)
	s.cache.Invalidate(ctx, touched...)

	if s.journal != nil {
		if err := s.journal.Record(ctx, shared.JournalEvent{
			Type:          "manufacturing_run",
			ItemID:        plan.outputItemID,
			QtyChange:     plan.outputQty,
			UnitCostCents: result.OutputUnitCostCents,
			SourceKind:    string(ledger.SourceManufacturing),
			SourceID:      fmt.Sprintf("run:%d", result.RunID),
		}); err != nil {
			s.logger.Warn("journal record failed", "run_id", result.RunID, "error", err)
		}
	}
	return result, nil
}

// Run returns a persisted run.
func (s *Service) Run(ctx context.Context, runID int64) (Run, error) {
	return s.repo.GetRun(ctx, runID)
}

func (s *Service) loadItems(ctx context.Context, plan runPlan) (map[int64]ledger.Item, error) {
	items := make(map[int64]ledger.Item, len(plan.components)+1)
	load := func(id int64) error {
		if _, ok := items[id]; ok {
			return nil
		}
		item, err := s.stock.GetItem(ctx, id)
		if err != nil {
			return err
		}
		items[id] = item
		return nil
	}
	if err := load(plan.outputItemID); err != nil {
		return nil, err
	}
	for _, c := range plan.components {
		if err := load(c.ItemID); err != nil {
			return nil, err
		}
	}
	return items, nil
}
