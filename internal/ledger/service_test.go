package ledger

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stockforge/stockforge/internal/shared"
)

type memoryRepo struct {
	items     map[int64]*Item
	batches   []*Batch
	movements []Movement
	nextBatch int64
	nextMove  int64
	clock     time.Time
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		items:     make(map[int64]*Item),
		nextBatch: 1,
		nextMove:  1,
		clock:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memoryRepo) addItem(id int64, unit string) {
	m.items[id] = &Item{ID: id, Name: "item", Unit: unit, QtyStored: 0}
}

func (m *memoryRepo) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

type snapshot struct {
	items     map[int64]Item
	batches   []Batch
	movements []Movement
	nextBatch int64
	nextMove  int64
}

func (m *memoryRepo) snapshot() snapshot {
	s := snapshot{
		items:     make(map[int64]Item, len(m.items)),
		batches:   make([]Batch, len(m.batches)),
		movements: append([]Movement(nil), m.movements...),
		nextBatch: m.nextBatch,
		nextMove:  m.nextMove,
	}
	for id, it := range m.items {
		s.items[id] = *it
	}
	for i, b := range m.batches {
		s.batches[i] = *b
	}
	return s
}

func (m *memoryRepo) restore(s snapshot) {
	m.items = make(map[int64]*Item, len(s.items))
	for id := range s.items {
		it := s.items[id]
		m.items[id] = &it
	}
	m.batches = make([]*Batch, len(s.batches))
	for i := range s.batches {
		b := s.batches[i]
		m.batches[i] = &b
	}
	m.movements = append([]Movement(nil), s.movements...)
	m.nextBatch = s.nextBatch
	m.nextMove = s.nextMove
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	before := m.snapshot()
	if err := fn(ctx, m); err != nil {
		m.restore(before)
		return err
	}
	return nil
}

func (m *memoryRepo) GetItemForUpdate(_ context.Context, itemID int64) (Item, error) {
	it, ok := m.items[itemID]
	if !ok {
		return Item{}, ErrItemNotFound
	}
	return *it, nil
}

func (m *memoryRepo) LockOpenBatches(_ context.Context, itemID int64) ([]Batch, error) {
	var open []Batch
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

func (m *memoryRepo) InsertBatch(_ context.Context, b Batch) (int64, error) {
	b.ID = m.nextBatch
	b.CreatedAt = m.tick()
	m.nextBatch++
	m.batches = append(m.batches, &b)
	return b.ID, nil
}

func (m *memoryRepo) DecrementBatch(_ context.Context, batchID, qty int64) error {
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

func (m *memoryRepo) InsertMovement(_ context.Context, mv Movement) (int64, error) {
	mv.ID = m.nextMove
	mv.CreatedAt = m.tick()
	m.nextMove++
	m.movements = append(m.movements, mv)
	return mv.ID, nil
}

func (m *memoryRepo) AdjustItemQty(_ context.Context, itemID, delta int64) error {
	it, ok := m.items[itemID]
	if !ok {
		return ErrItemNotFound
	}
	it.QtyStored += delta
	return nil
}

func (m *memoryRepo) GetItem(ctx context.Context, itemID int64) (Item, error) {
	return m.GetItemForUpdate(ctx, itemID)
}

func (m *memoryRepo) OnHandQty(_ context.Context, itemID int64) (int64, error) {
	it, ok := m.items[itemID]
	if !ok {
		return 0, ErrItemNotFound
	}
	return it.QtyStored, nil
}

func (m *memoryRepo) ListMovements(_ context.Context, itemID int64, _ int) ([]Movement, error) {
	var out []Movement
	for _, mv := range m.movements {
		if mv.ItemID == itemID {
			out = append(out, mv)
		}
	}
	return out, nil
}

type memoryJournal struct {
	events []shared.JournalEvent
}

func (j *memoryJournal) Record(_ context.Context, evt shared.JournalEvent) error {
	j.events = append(j.events, evt)
	return nil
}

type memoryIdempotency struct {
	keys map[string]bool
}

func (s *memoryIdempotency) CheckAndInsert(_ context.Context, key, _ string) error {
	if s.keys == nil {
		s.keys = make(map[string]bool)
	}
	if s.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	s.keys[key] = true
	return nil
}

func (s *memoryIdempotency) Delete(_ context.Context, key string) error {
	delete(s.keys, key)
	return nil
}

func newTestService(repo *memoryRepo) (*Service, *memoryJournal) {
	journal := &memoryJournal{}
	return NewService(repo, journal, &memoryIdempotency{}, nil, nil), journal
}

func TestAddBatchPostsLotMovementAndCounter(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(1, "ea")
	svc, journal := newTestService(repo)

	batch, err := svc.AddBatch(context.Background(), AddBatchInput{ItemID: 1, Qty: 10, UnitCostCents: 250, SourceKind: SourcePurchase})
	require.NoError(t, err)
	require.Equal(t, int64(10), batch.QtyRemaining)

	require.Len(t, repo.movements, 1)
	require.Equal(t, int64(10), repo.movements[0].QtyChange)
	require.Equal(t, batch.ID, *repo.movements[0].BatchID)

	qty, err := svc.OnHand(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, int64(10), qty)

	require.Len(t, journal.events, 1)
	require.Equal(t, "batch_added", journal.events[0].Type)
}

func TestAddBatchRejectsBadInput(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(1, "ea")
	svc, _ := newTestService(repo)

	_, err := svc.AddBatch(context.Background(), AddBatchInput{ItemID: 1, Qty: 0})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.AddBatch(context.Background(), AddBatchInput{ItemID: 1, Qty: -5})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.AddBatch(context.Background(), AddBatchInput{ItemID: 1, Qty: 5, UnitCostCents: -1})
	require.ErrorIs(t, err, ErrInvalidUnitCost)
	require.Empty(t, repo.batches)
}

func TestConsumeDrainsOldestBatchesFirst(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(1, "ea")
	svc, _ := newTestService(repo)
	ctx := context.Background()

	first, err := svc.AddBatch(ctx, AddBatchInput{ItemID: 1, Qty: 4, UnitCostCents: 10})
	require.NoError(t, err)
	second, err := svc.AddBatch(ctx, AddBatchInput{ItemID: 1, Qty: 4, UnitCostCents: 20})
	require.NoError(t, err)

	allocations, err := svc.Consume(ctx, ConsumeInput{ItemID: 1, Qty: 6, SourceKind: SourceStockOut})
	require.NoError(t, err)
	require.Len(t, allocations, 2)
	require.Equal(t, Allocation{BatchID: first.ID, Qty: 4, UnitCostCents: 10}, allocations[0])
	require.Equal(t, Allocation{BatchID: second.ID, Qty: 2, UnitCostCents: 20}, allocations[1])

	open, err := repo.LockOpenBatches(ctx, 1)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, second.ID, open[0].ID)
	require.Equal(t, int64(2), open[0].QtyRemaining)

	qty, err := svc.OnHand(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), qty)
}

func TestConsumeWritesOneMovementPerBatchTouched(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(1, "ea")
	svc, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AddBatch(ctx, AddBatchInput{ItemID: 1, Qty: 3, UnitCostCents: 5})
	require.NoError(t, err)
	_, err = svc.AddBatch(ctx, AddBatchInput{ItemID: 1, Qty: 3, UnitCostCents: 7})
	require.NoError(t, err)

	_, err = svc.Consume(ctx, ConsumeInput{ItemID: 1, Qty: 5})
	require.NoError(t, err)

	var negatives []Movement
	for _, mv := range repo.movements {
		if mv.QtyChange < 0 {
			negatives = append(negatives, mv)
		}
	}
	require.Len(t, negatives, 2)
	require.Equal(t, int64(-3), negatives[0].QtyChange)
	require.Equal(t, int64(5), negatives[0].UnitCostCents)
	require.Equal(t, int64(-2), negatives[1].QtyChange)
	require.Equal(t, int64(7), negatives[1].UnitCostCents)
}

func TestConsumeShortageFailsFastWithoutMutation(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(1, "ea")
	svc, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AddBatch(ctx, AddBatchInput{ItemID: 1, Qty: 5, UnitCostCents: 10})
	require.NoError(t, err)
	before := repo.snapshot()

	_, err = svc.Consume(ctx, ConsumeInput{ItemID: 1, Qty: 8})
	require.ErrorIs(t, err, ErrInsufficientStock)

	var short *InsufficientStockError
	require.ErrorAs(t, err, &short)
	require.Equal(t, int64(1), short.ItemID)
	require.Equal(t, int64(8), short.Required)
	require.Equal(t, int64(5), short.OnHand)
	require.Equal(t, int64(3), short.Missing())

	require.Equal(t, before.items[1].QtyStored, repo.items[1].QtyStored)
	require.Len(t, repo.movements, len(before.movements))
	require.Equal(t, before.batches[0].QtyRemaining, repo.batches[0].QtyRemaining)
}

func TestConsumeExactDepletion(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(1, "ea")
	svc, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AddBatch(ctx, AddBatchInput{ItemID: 1, Qty: 5, UnitCostCents: 10})
	require.NoError(t, err)

	allocations, err := svc.Consume(ctx, ConsumeInput{ItemID: 1, Qty: 5})
	require.NoError(t, err)
	require.Len(t, allocations, 1)

	open, err := repo.LockOpenBatches(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, open)

	qty, err := svc.OnHand(ctx, 1)
	require.NoError(t, err)
	require.Zero(t, qty)

	_, err = svc.Consume(ctx, ConsumeInput{ItemID: 1, Qty: 1})
	require.ErrorIs(t, err, ErrInsufficientStock)
}

func TestAdjustRoutesThroughBatchesAndFIFO(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(1, "ea")
	svc, _ := newTestService(repo)
	ctx := context.Background()

	require.NoError(t, svc.Adjust(ctx, 1, 6, 15, "initial count"))
	require.NoError(t, svc.Adjust(ctx, 1, -2, 0, "damage"))
	require.ErrorIs(t, svc.Adjust(ctx, 1, 0, 0, "noop"), ErrInvalidQuantity)

	qty, err := svc.OnHand(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(4), qty)

	for _, mv := range repo.movements {
		require.Equal(t, SourceAdjustment, mv.SourceKind)
	}
}

func TestConservationAcrossMixedOperations(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(1, "g")
	svc, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AddBatch(ctx, AddBatchInput{ItemID: 1, Qty: 500, UnitCostCents: 3})
	require.NoError(t, err)
	_, err = svc.AddBatch(ctx, AddBatchInput{ItemID: 1, Qty: 250, UnitCostCents: 4})
	require.NoError(t, err)
	_, err = svc.Consume(ctx, ConsumeInput{ItemID: 1, Qty: 600})
	require.NoError(t, err)
	require.NoError(t, svc.Adjust(ctx, 1, 50, 5, "recount"))

	var movementSum, remainingSum int64
	for _, mv := range repo.movements {
		movementSum += mv.QtyChange
	}
	for _, b := range repo.batches {
		remainingSum += b.QtyRemaining
	}

	qty, err := svc.OnHand(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, qty, movementSum)
	require.Equal(t, qty, remainingSum)
}

func TestIdempotencyKeyRejectsReplay(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(1, "ea")
	svc, _ := newTestService(repo)
	ctx := context.Background()

	input := AddBatchInput{ItemID: 1, Qty: 5, UnitCostCents: 10, IdempotencyKey: "po-42"}
	_, err := svc.AddBatch(ctx, input)
	require.NoError(t, err)

	_, err = svc.AddBatch(ctx, input)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	require.Len(t, repo.batches, 1)
}

func TestIdempotencyKeyReleasedOnFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(1, "ea")
	svc, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Consume(ctx, ConsumeInput{ItemID: 1, Qty: 5, IdempotencyKey: "ship-9"})
	require.ErrorIs(t, err, ErrInsufficientStock)

	_, err = svc.AddBatch(ctx, AddBatchInput{ItemID: 1, Qty: 5, UnitCostCents: 1})
	require.NoError(t, err)

	// The failed attempt must not poison the key for the retry.
	_, err = svc.Consume(ctx, ConsumeInput{ItemID: 1, Qty: 5, IdempotencyKey: "ship-9"})
	require.NoError(t, err)
}
