package manufacturing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockforge/stockforge/internal/ledger"
	"github.com/stockforge/stockforge/internal/platform/db"
)

// TxRepository extends the ledger's transaction surface with run
// bookkeeping. One pgx transaction spans the run row, every FIFO allocation
// and the output batch.
type TxRepository interface {
	ledger.TxRepository
	CreateRun(ctx context.Context, run Run) (int64, error)
	CompleteRun(ctx context.Context, runID int64, executedAt time.Time, meta RunMeta) error
}

// Repository is the pgx-backed store for recipes and runs.
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
		return fn(ctx, &txRepository{TxRepository: ledger.NewTxRepository(tx), tx: tx})
	})
}

type txRepository struct {
	ledger.TxRepository
	tx pgx.Tx
}

func (r *txRepository) CreateRun(ctx context.Context, run Run) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO manufacturing_runs (recipe_id, output_item_id, output_qty, status)
VALUES ($1, $2, $3, $4) RETURNING id`,
		run.RecipeID, run.OutputItemID, run.OutputQty, string(RunStatusCreated)).Scan(&id)
	return id, err
}

func (r *txRepository) CompleteRun(ctx context.Context, runID int64, executedAt time.Time, meta RunMeta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `UPDATE manufacturing_runs SET status=$2, executed_at=$3, meta=$4
WHERE id=$1 AND status=$5`,
		runID, string(RunStatusCompleted), executedAt, raw, string(RunStatusCreated))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

// GetRecipe loads a recipe with its component lines.
func (r *Repository) GetRecipe(ctx context.Context, recipeID int64) (Recipe, error) {
	var rec Recipe
	err := r.pool.QueryRow(ctx, `SELECT id, name, output_item_id, output_qty, created_at
FROM recipes WHERE id=$1`, recipeID).Scan(&rec.ID, &rec.Name, &rec.OutputItemID, &rec.OutputQty, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Recipe{}, ErrRecipeNotFound
	}
	if err != nil {
		return Recipe{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, recipe_id, item_id, qty_required, is_optional, sort
FROM recipe_items WHERE recipe_id=$1
ORDER BY sort ASC, id ASC`, recipeID)
	if err != nil {
		return Recipe{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var it RecipeItem
		if err := rows.Scan(&it.ID, &it.RecipeID, &it.ItemID, &it.QtyRequired, &it.IsOptional, &it.Sort); err != nil {
			return Recipe{}, err
		}
		rec.Items = append(rec.Items, it)
	}
	return rec, rows.Err()
}

// GetRun loads a run including its stored cost breakdown.
func (r *Repository) GetRun(ctx context.Context, runID int64) (Run, error) {
	var (
		run Run
		raw []byte
	)
	err := r.pool.QueryRow(ctx, `SELECT id, recipe_id, output_item_id, output_qty, status, executed_at, meta, created_at
FROM manufacturing_runs WHERE id=$1`, runID).
		Scan(&run.ID, &run.RecipeID, &run.OutputItemID, &run.OutputQty, (*string)(&run.Status), &run.ExecutedAt, &raw, &run.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &run.Meta); err != nil {
			return Run{}, err
		}
	}
	return run, nil
}
