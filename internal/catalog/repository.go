package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockforge/stockforge/internal/platform/db"
)

// Repository is the pgx-backed master-data store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateItem inserts an item and returns it with generated fields.
func (r *Repository) CreateItem(ctx context.Context, item Item) (Item, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO items (name, unit, dimension)
VALUES ($1, $2, $3) RETURNING id, qty_stored, created_at, updated_at`,
		item.Name, item.Unit, string(item.Dimension)).
		Scan(&item.ID, &item.QtyStored, &item.CreatedAt, &item.UpdatedAt)
	return item, err
}

// GetItem loads one item.
func (r *Repository) GetItem(ctx context.Context, itemID int64) (Item, error) {
	var item Item
	err := r.pool.QueryRow(ctx, `SELECT id, name, unit, dimension, qty_stored, created_at, updated_at
FROM items WHERE id=$1`, itemID).
		Scan(&item.ID, &item.Name, &item.Unit, &item.Dimension, &item.QtyStored, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	return item, err
}

// ListItems returns items ordered by id.
func (r *Repository) ListItems(ctx context.Context, limit, offset int) ([]Item, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.pool.Query(ctx, `SELECT id, name, unit, dimension, qty_stored, created_at, updated_at
FROM items ORDER BY id ASC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.Name, &item.Unit, &item.Dimension, &item.QtyStored, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// RenameItem updates the display name only. Unit and dimension are frozen
// once movements may reference the item.
func (r *Repository) RenameItem(ctx context.Context, itemID int64, name string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE items SET name=$2, updated_at=NOW() WHERE id=$1`, itemID, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// CreateRecipe inserts a recipe with its component lines atomically.
func (r *Repository) CreateRecipe(ctx context.Context, recipe Recipe) (Recipe, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `INSERT INTO recipes (name, output_item_id, output_qty)
VALUES ($1, $2, $3) RETURNING id, created_at`,
			recipe.Name, recipe.OutputItemID, recipe.OutputQty).
			Scan(&recipe.ID, &recipe.CreatedAt); err != nil {
			return fmt.Errorf("insert recipe: %w", err)
		}
		for i := range recipe.Items {
			line := &recipe.Items[i]
			line.RecipeID = recipe.ID
			line.Sort = i
			if err := tx.QueryRow(ctx, `INSERT INTO recipe_items (recipe_id, item_id, qty_required, is_optional, sort)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
				line.RecipeID, line.ItemID, line.QtyRequired, line.IsOptional, line.Sort).
				Scan(&line.ID); err != nil {
				return fmt.Errorf("insert recipe line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Recipe{}, err
	}
	return recipe, nil
}

// GetRecipe loads a recipe with its lines.
func (r *Repository) GetRecipe(ctx context.Context, recipeID int64) (Recipe, error) {
	var rec Recipe
	err := r.pool.QueryRow(ctx, `SELECT id, name, output_item_id, output_qty, created_at
FROM recipes WHERE id=$1`, recipeID).
		Scan(&rec.ID, &rec.Name, &rec.OutputItemID, &rec.OutputQty, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Recipe{}, ErrRecipeNotFound
	}
	if err != nil {
		return Recipe{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, recipe_id, item_id, qty_required, is_optional, sort
FROM recipe_items WHERE recipe_id=$1 ORDER BY sort ASC, id ASC`, recipeID)
	if err != nil {
		return Recipe{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var line RecipeItem
		if err := rows.Scan(&line.ID, &line.RecipeID, &line.ItemID, &line.QtyRequired, &line.IsOptional, &line.Sort); err != nil {
			return Recipe{}, err
		}
		rec.Items = append(rec.Items, line)
	}
	return rec, rows.Err()
}

// ListRecipes returns recipes without their lines.
func (r *Repository) ListRecipes(ctx context.Context, limit, offset int) ([]Recipe, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.pool.Query(ctx, `SELECT id, name, output_item_id, output_qty, created_at
FROM recipes ORDER BY id ASC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recipes []Recipe
	for rows.Next() {
		var rec Recipe
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.OutputItemID, &rec.OutputQty, &rec.CreatedAt); err != nil {
			return nil, err
		}
		recipes = append(recipes, rec)
	}
	return recipes, rows.Err()
}
