// Package catalog manages the master data the ledger and manufacturing
// modules operate on: items and recipes. It never moves stock.
package catalog

import (
	"errors"
	"time"

	"github.com/stockforge/stockforge/internal/uom"
)

// Item is the master-data view of a stock item.
type Item struct {
	ID        int64
	Name      string
	Unit      string
	Dimension uom.Dimension
	QtyStored int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Recipe is a stored bill of materials.
type Recipe struct {
	ID           int64
	Name         string
	OutputItemID int64
	OutputQty    int64
	Items        []RecipeItem
	CreatedAt    time.Time
}

// RecipeItem is one component line of a recipe.
type RecipeItem struct {
	ID          int64
	RecipeID    int64
	ItemID      int64
	QtyRequired int64
	IsOptional  bool
	Sort        int
}

var (
	// ErrItemNotFound indicates an unknown item id.
	ErrItemNotFound = errors.New("catalog: item not found")
	// ErrRecipeNotFound indicates an unknown recipe id.
	ErrRecipeNotFound = errors.New("catalog: recipe not found")
	// ErrInvalidUnit indicates a unit that is not registered under the
	// item's dimension.
	ErrInvalidUnit = errors.New("catalog: unit not supported for dimension")
	// ErrSelfReference indicates a recipe consuming its own output.
	ErrSelfReference = errors.New("catalog: recipe cannot consume its own output")
)
