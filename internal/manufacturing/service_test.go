package manufacturing

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stockforge/stockforge/internal/ledger"
	"github.com/stockforge/stockforge/internal/uom"
)

// memStore fakes both the manufacturing repository and the ledger surface it
// embeds, with snapshot rollback standing in for the database transaction.
type memStore struct {
	items     map[int64]*ledger.Item
	batches   []*ledger.Batch
	movements []ledger.Movement
	recipes   map[int64]Recipe
	runs      map[int64]*Run
	nextBatch int64
	nextMove  int64
	nextRun   int64
	clock     time.Time

	failCompleteRun bool
}

func newMemStore() *memStore {
	return &memStore{
		items:     make(map[int64]*ledger.Item),
		recipes:   make(map[int64]Recipe),
		runs:      make(map[int64]*Run),
		nextBatch: 1,
		nextMove:  1,
		nextRun:   1,
		clock:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) addItem(id int64, unit string, dim string) {
	m.items[id] = &ledger.Item{ID: id, Name: "item", Unit: unit, Dimension: uom.Dimension(dim)}
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

type storeSnapshot struct {
	items     map[int64]ledger.Item
	batches   []ledger.Batch
	movements []ledger.Movement
	runs      map[int64]Run
	nextBatch int64
	nextMove  int64
	nextRun   int64
}

func (m *memStore) snapshot() storeSnapshot {
	s := storeSnapshot{
		items:     make(map[int64]ledger.Item, len(m.items)),
		batches:   make([]ledger.Batch, len(m.batches)),
		movements: append([]ledger.Movement(nil), m.movements...),
		runs:      make(map[int64]Run, len(m.runs)),
		nextBatch: m.nextBatch,
		nextMove:  m.nextMove,
		nextRun:   m.nextRun,
	}
	for id, it := range m.items {
		s.items[id] = *it
	}
	for i, b := range m.batches {
		s.batches[i] = *b
	}
	for id, r := range m.runs {
		s.runs[id] = *r
	}
	return s
}

func (m *memStore) restore(s storeSnapshot) {
	m.items = make(map[int64]*ledger.Item, len(s.items))
	for id := range s.items {
		it := s.items[id]
		m.items[id] = &it
	}
	m.batches = make([]*ledger.Batch, len(s.batches))
	for i := range s.batches {
		b := s.batches[i]
		m.batches[i] = &b
	}
	m.movements = append([]ledger.Movement(nil), s.movements...)
	m.runs = make(map[int64]*Run, len(s.runs))
	for id := range s.runs {
		r := s.runs[id]
		m.runs[id] = &r
	}
	m.nextBatch = s.nextBatch
	m.nextMove = s.nextMove
	m.nextRun = s.nextRun
}

func (m *memStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	before := m.snapshot()
	if err := fn(ctx, m); err != nil {
		m.restore(before)
		return err
	}
	return nil
}

func (m *memStore) GetItemForUpdate(_ context.Context, itemID int64) (ledger.Item, error) {
	it, ok := m.items[itemID]
	if !ok {
		return ledger.Item{}, ledger.ErrItemNotFound
	}
	return *it, nil
}

func (m *memStore) LockOpenBatches(_ context.Context, itemID int64) ([]ledger.Batch, error) {
	var open []ledger.Batch
	for _, b := range m.batches {
		if b.ItemID == itemID && b.QtyRemaining > 0 {
			open = append(open, *b)
		}
	}
	sort.Slice(open, func(i, j int) bool {
		if !open[i].CreatedAt.Equal(open[j].CreatedAt) {
			return open[i].CreatedAt.Before(open[j].CreatedAt)
		}
		return open[i].ID < open[j].ID
	})
	return open, nil
}

func (m *memStore) InsertBatch(_ context.Context, b ledger.Batch) (int64, error) {
	b.ID = m.nextBatch
	b.CreatedAt = m.tick()
	m.nextBatch++
	m.batches = append(m.batches, &b)
	return b.ID, nil
}

func (m *memStore) DecrementBatch(_ context.Context, batchID, qty int64) error {
	for _, b := range m.batches {
		if b.ID == batchID {
			if b.QtyRemaining < qty {
				return errors.New("not enough remaining")
			}
			b.QtyRemaining -= qty
			return nil
		}
	}
	return errors.New("batch not found")
}

func (m *memStore) InsertMovement(_ context.Context, mv ledger.Movement) (int64, error) {
	mv.ID = m.nextMove
	mv.CreatedAt = m.tick()
	m.nextMove++
	m.movements = append(m.movements, mv)
	return mv.ID, nil
}

func (m *memStore) AdjustItemQty(_ context.Context, itemID, delta int64) error {
	it, ok := m.items[itemID]
	if !ok {
		return ledger.ErrItemNotFound
	}
	it.QtyStored += delta
	return nil
}

func (m *memStore) CreateRun(_ context.Context, run Run) (int64, error) {
	run.ID = m.nextRun
	run.Status = RunStatusCreated
	run.CreatedAt = m.tick()
	m.nextRun++
	m.runs[run.ID] = &run
	return run.ID, nil
}

func (m *memStore) CompleteRun(_ context.Context, runID int64, executedAt time.Time, meta RunMeta) error {
	if m.failCompleteRun {
		return errors.New("forced failure")
	}
	run, ok := m.runs[runID]
	if !ok || run.Status != RunStatusCreated {
		return ErrRunNotFound
	}
	run.Status = RunStatusCompleted
	run.ExecutedAt = &executedAt
	run.Meta = meta
	return nil
}

func (m *memStore) GetRecipe(_ context.Context, recipeID int64) (Recipe, error) {
	rec, ok := m.recipes[recipeID]
	if !ok {
		return Recipe{}, ErrRecipeNotFound
	}
	return rec, nil
}

func (m *memStore) GetRun(_ context.Context, runID int64) (Run, error) {
	run, ok := m.runs[runID]
	if !ok {
		return Run{}, ErrRunNotFound
	}
	return *run, nil
}

func (m *memStore) GetItem(ctx context.Context, itemID int64) (ledger.Item, error) {
	return m.GetItemForUpdate(ctx, itemID)
}

func (m *memStore) OnHandQty(_ context.Context, itemID int64) (int64, error) {
	it, ok := m.items[itemID]
	if !ok {
		return 0, ledger.ErrItemNotFound
	}
	return it.QtyStored, nil
}

// addStock posts a lot directly into the fake.
func (m *memStore) addStock(t *testing.T, itemID, qty, unitCostCents int64) {
	t.Helper()
	_, err := ledger.AddBatchTx(context.Background(), m, ledger.AddBatchInput{
		ItemID:        itemID,
		Qty:           qty,
		UnitCostCents: unitCostCents,
		SourceKind:    ledger.SourcePurchase,
	})
	require.NoError(t, err)
}

func newTestService(store *memStore) *Service {
	return NewService(store, store, nil, nil, nil)
}

func TestRecipeRunScalesConsumesFIFOAndCostsOutput(t *testing.T) {
	store := newMemStore()
	store.addItem(1, "ea", "count")
	store.addItem(2, "ea", "count")
	store.addStock(t, 1, 4, 10)
	store.addStock(t, 1, 4, 20)
	store.recipes[5] = Recipe{
		ID:           5,
		Name:         "widget",
		OutputItemID: 2,
		OutputQty:    1,
		Items:        []RecipeItem{{ID: 1, RecipeID: 5, ItemID: 1, QtyRequired: 3}},
	}

	svc := newTestService(store)
	recipeID := int64(5)
	result, err := svc.ExecuteRun(context.Background(), RunRequest{RecipeID: &recipeID, OutputQty: 2})
	require.NoError(t, err)

	// k = 2 scales the 3-unit line to 6: the first lot covers 4 at 10c and
	// the second 2 at 20c, so inputs cost 80c and each of the 2 outputs 40c.
	require.Equal(t, int64(80), result.CostInputsCents)
	require.Equal(t, int64(40), result.OutputUnitCostCents)

	onHand, err := store.OnHandQty(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), onHand)

	onHand, err = store.OnHandQty(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, int64(2), onHand)

	var outputBatches []*ledger.Batch
	for _, b := range store.batches {
		if b.ItemID == 2 {
			outputBatches = append(outputBatches, b)
		}
	}
	require.Len(t, outputBatches, 1)
	require.Equal(t, int64(40), outputBatches[0].UnitCostCents)
	require.Equal(t, ledger.SourceManufacturing, outputBatches[0].SourceKind)

	run, err := svc.Run(context.Background(), result.RunID)
	require.NoError(t, err)
	require.Equal(t, RunStatusCompleted, run.Status)
	require.NotNil(t, run.ExecutedAt)
	require.Equal(t, result.OutputBatchID, run.Meta.OutputBatchID)
	require.Equal(t, "2", run.Meta.K)
	require.Len(t, run.Meta.Components, 1)
	require.Len(t, run.Meta.Components[0].Allocations, 2)
}

func TestAdhocRunUsesInlineComponents(t *testing.T) {
	store := newMemStore()
	store.addItem(1, "ea", "count")
	store.addItem(2, "ea", "count")
	store.addItem(3, "ea", "count")
	store.addStock(t, 1, 10, 5)
	store.addStock(t, 2, 10, 8)

	svc := newTestService(store)
	result, err := svc.ExecuteRun(context.Background(), RunRequest{
		OutputItemID: 3,
		OutputQty:    1,
		Components: []ComponentRequest{
			{ItemID: 1, Qty: 2},
			{ItemID: 2, Qty: 3},
		},
	})
	require.NoError(t, err)
	require.Equal(t, int64(34), result.CostInputsCents)
	require.Equal(t, int64(34), result.OutputUnitCostCents)
}

func TestRunRoundsOutputCostHalfUp(t *testing.T) {
	store := newMemStore()
	store.addItem(1, "ea", "count")
	store.addItem(2, "ea", "count")
	store.addStock(t, 1, 5, 5)

	svc := newTestService(store)
	result, err := svc.ExecuteRun(context.Background(), RunRequest{
		OutputItemID: 2,
		OutputQty:    2,
		Components:   []ComponentRequest{{ItemID: 1, Qty: 5}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(25), result.CostInputsCents)
	require.Equal(t, int64(13), result.OutputUnitCostCents)
}

func TestRunConvertsWeightComponentsToUnitCost(t *testing.T) {
	store := newMemStore()
	store.addItem(1, "g", "weight")
	store.addItem(2, "ea", "count")
	// 1500 mg on hand at 2c per gram.
	store.addStock(t, 1, 1500, 2)

	svc := newTestService(store)
	result, err := svc.ExecuteRun(context.Background(), RunRequest{
		OutputItemID: 2,
		OutputQty:    1,
		Components:   []ComponentRequest{{ItemID: 1, Qty: 1000}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), result.CostInputsCents)
	require.Equal(t, int64(2), result.OutputUnitCostCents)
}

func TestOptionalComponentShortIsSkipped(t *testing.T) {
	store := newMemStore()
	store.addItem(1, "ea", "count")
	store.addItem(2, "ea", "count")
	store.addItem(3, "ea", "count")
	store.addStock(t, 1, 5, 10)

	svc := newTestService(store)
	result, err := svc.ExecuteRun(context.Background(), RunRequest{
		OutputItemID: 3,
		OutputQty:    1,
		Components: []ComponentRequest{
			{ItemID: 1, Qty: 2},
			{ItemID: 2, Qty: 1, Optional: true},
		},
	})
	require.NoError(t, err)
	require.Equal(t, int64(20), result.CostInputsCents)
	require.Len(t, result.Components, 2)
	require.True(t, result.Components[1].Skipped)

	for _, mv := range store.movements {
		require.NotEqual(t, int64(2), mv.ItemID)
	}
}

func TestRunShortageReportsEveryMissingComponent(t *testing.T) {
	store := newMemStore()
	store.addItem(1, "ea", "count")
	store.addItem(2, "ea", "count")
	store.addItem(3, "ea", "count")
	store.addStock(t, 1, 1, 10)

	svc := newTestService(store)
	before := store.snapshot()

	_, err := svc.ExecuteRun(context.Background(), RunRequest{
		OutputItemID: 3,
		OutputQty:    1,
		Components: []ComponentRequest{
			{ItemID: 1, Qty: 4},
			{ItemID: 2, Qty: 2},
		},
	})
	require.ErrorIs(t, err, ErrShortage)

	var shortErr *ShortageError
	require.ErrorAs(t, err, &shortErr)
	require.Equal(t, []Shortage{
		{ItemID: 1, Required: 4, Available: 1},
		{ItemID: 2, Required: 2, Available: 0},
	}, shortErr.Shortages)

	require.Len(t, store.movements, len(before.movements))
	require.Empty(t, store.runs)
}

func TestValidateRunIsReadOnly(t *testing.T) {
	store := newMemStore()
	store.addItem(1, "ea", "count")
	store.addItem(2, "ea", "count")
	store.addStock(t, 1, 3, 10)

	svc := newTestService(store)
	before := store.snapshot()

	result, err := svc.ValidateRun(context.Background(), RunRequest{
		OutputItemID: 2,
		OutputQty:    1,
		Components:   []ComponentRequest{{ItemID: 1, Qty: 5}},
	})
	require.NoError(t, err)
	require.False(t, result.Feasible)
	require.Equal(t, []Shortage{{ItemID: 1, Required: 5, Available: 3}}, result.Shortages)

	require.Len(t, store.movements, len(before.movements))
	require.Equal(t, before.items[1].QtyStored, store.items[1].QtyStored)
}

func TestRunRollsBackCompletelyOnLateFailure(t *testing.T) {
	store := newMemStore()
	store.addItem(1, "ea", "count")
	store.addItem(2, "ea", "count")
	store.addStock(t, 1, 5, 10)
	store.failCompleteRun = true

	svc := newTestService(store)
	before := store.snapshot()

	_, err := svc.ExecuteRun(context.Background(), RunRequest{
		OutputItemID: 2,
		OutputQty:    1,
		Components:   []ComponentRequest{{ItemID: 1, Qty: 2}},
	})
	require.Error(t, err)

	require.Equal(t, before.items[1].QtyStored, store.items[1].QtyStored)
	require.Equal(t, before.items[2].QtyStored, store.items[2].QtyStored)
	require.Len(t, store.movements, len(before.movements))
	require.Len(t, store.batches, len(before.batches))
	require.Empty(t, store.runs)
}

func TestRunRequestShapeIsValidated(t *testing.T) {
	store := newMemStore()
	store.addItem(1, "ea", "count")
	store.recipes[5] = Recipe{ID: 5, OutputItemID: 1, OutputQty: 1, Items: []RecipeItem{{ItemID: 1, QtyRequired: 1}}}
	svc := newTestService(store)
	ctx := context.Background()
	recipeID := int64(5)

	_, err := svc.ExecuteRun(ctx, RunRequest{RecipeID: &recipeID, OutputQty: 0})
	require.ErrorIs(t, err, ErrInvalidOutputQty)

	_, err = svc.ExecuteRun(ctx, RunRequest{RecipeID: &recipeID, OutputQty: 1, Components: []ComponentRequest{{ItemID: 1, Qty: 1}}})
	require.ErrorIs(t, err, ErrAmbiguousRequest)

	_, err = svc.ExecuteRun(ctx, RunRequest{OutputItemID: 1, OutputQty: 1})
	require.ErrorIs(t, err, ErrNoComponents)

	missing := int64(99)
	_, err = svc.ExecuteRun(ctx, RunRequest{RecipeID: &missing, OutputQty: 1})
	require.ErrorIs(t, err, ErrRecipeNotFound)
}
