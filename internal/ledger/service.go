package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stockforge/stockforge/internal/shared"
)

// RepositoryPort is the persistence surface the service depends on.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetItem(ctx context.Context, itemID int64) (Item, error)
	OnHandQty(ctx context.Context, itemID int64) (int64, error)
	ListMovements(ctx context.Context, itemID int64, limit int) ([]Movement, error)
}

// JournalPort records committed ledger activity.
type JournalPort interface {
	Record(ctx context.Context, evt shared.JournalEvent) error
}

// IdempotencyPort guards replayed mutations.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service coordinates ledger mutations, journalling and cache invalidation.
type Service struct {
	repo        RepositoryPort
	journal     JournalPort
	idempotency IdempotencyPort
	cache       *Cache
	logger      *slog.Logger
}

// NewService wires the ledger service. journal, idempotency and cache may be
// nil; the service degrades to the bare transactional path.
func NewService(repo RepositoryPort, journal JournalPort, idempotency IdempotencyPort, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, journal: journal, idempotency: idempotency, cache: cache, logger: logger}
}

// AddBatch posts an inbound lot.
func (s *Service) AddBatch(ctx context.Context, input AddBatchInput) (Batch, error) {
	if input.Qty <= 0 {
		return Batch{}, ErrInvalidQuantity
	}
	if input.UnitCostCents < 0 {
		return Batch{}, ErrInvalidUnitCost
	}

	release, err := s.claimKey(ctx, input.IdempotencyKey)
	if err != nil {
		return Batch{}, err
	}

	var batch Batch
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetItemForUpdate(ctx, input.ItemID); err != nil {
			return err
		}
		var txErr error
		batch, txErr = AddBatchTx(ctx, tx, input)
		return txErr
	})
	if err != nil {
		release(ctx)
		return Batch{}, err
	}

	s.cache.Invalidate(ctx, input.ItemID)
	s.record(ctx, shared.JournalEvent{
		Type:          "batch_added",
		ItemID:        input.ItemID,
		QtyChange:     input.Qty,
		UnitCostCents: input.UnitCostCents,
		SourceKind:    string(batch.SourceKind),
		SourceID:      input.SourceID,
	})
	return batch, nil
}

// Consume drains stock FIFO. On shortage the returned error carries the
// item, the requested quantity and what was actually on hand.
func (s *Service) Consume(ctx context.Context, input ConsumeInput) ([]Allocation, error) {
	if input.Qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	release, err := s.claimKey(ctx, input.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	var allocations []Allocation
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var txErr error
		allocations, txErr = ConsumeTx(ctx, tx, input)
		return txErr
	})
	if err != nil {
		release(ctx)
		return nil, err
	}

	s.cache.Invalidate(ctx, input.ItemID)
	for _, a := range allocations {
		s.record(ctx, shared.JournalEvent{
			Type:          "stock_consumed",
			ItemID:        input.ItemID,
			QtyChange:     -a.Qty,
			UnitCostCents: a.UnitCostCents,
			SourceKind:    string(input.SourceKind),
			SourceID:      input.SourceID,
		})
	}
	return allocations, nil
}

// Adjust posts a signed correction. Positive deltas create a new lot at the
// given cost; negative deltas consume FIFO like any other outbound.
func (s *Service) Adjust(ctx context.Context, itemID, delta, unitCostCents int64, reason string) error {
	switch {
	case delta > 0:
		_, err := s.AddBatch(ctx, AddBatchInput{
			ItemID:        itemID,
			Qty:           delta,
			UnitCostCents: unitCostCents,
			SourceKind:    SourceAdjustment,
			SourceID:      reason,
		})
		return err
	case delta < 0:
		_, err := s.Consume(ctx, ConsumeInput{
			ItemID:     itemID,
			Qty:        -delta,
			SourceKind: SourceAdjustment,
			SourceID:   reason,
		})
		return err
	default:
		return ErrInvalidQuantity
	}
}

// OnHand returns the current quantity in base units, served from cache when
// possible.
func (s *Service) OnHand(ctx context.Context, itemID int64) (int64, error) {
	return s.cache.OnHand(ctx, itemID, func(ctx context.Context) (int64, error) {
		return s.repo.OnHandQty(ctx, itemID)
	})
}

// Item returns the item record.
func (s *Service) Item(ctx context.Context, itemID int64) (Item, error) {
	return s.repo.GetItem(ctx, itemID)
}

// Movements lists recent ledger lines for an item.
func (s *Service) Movements(ctx context.Context, itemID int64, limit int) ([]Movement, error) {
	return s.repo.ListMovements(ctx, itemID, limit)
}

// claimKey reserves the idempotency key and returns a release func used when
// the guarded operation fails.
func (s *Service) claimKey(ctx context.Context, key string) (func(context.Context), error) {
	if s.idempotency == nil || key == "" {
		return func(context.Context) {}, nil
	}
	if err := s.idempotency.CheckAndInsert(ctx, key, "ledger"); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			return nil, fmt.Errorf("%w: %s", shared.ErrIdempotencyConflict, key)
		}
		return nil, err
	}
	return func(ctx context.Context) {
		if err := s.idempotency.Delete(ctx, key); err != nil {
			s.logger.Warn("release idempotency key failed", "key", key, "error", err)
		}
	}, nil
}

func (s *Service) record(ctx context.Context, evt shared.JournalEvent) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Record(ctx, evt); err != nil {
		s.logger.Warn("journal record failed", "type", evt.Type, "item_id", evt.ItemID, "error", err)
	}
}
