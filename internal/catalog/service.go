package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stockforge/stockforge/internal/uom"
)

// RepositoryPort is the persistence surface the service depends on.
type RepositoryPort interface {
	CreateItem(ctx context.Context, item Item) (Item, error)
	GetItem(ctx context.Context, itemID int64) (Item, error)
	ListItems(ctx context.Context, limit, offset int) ([]Item, error)
	RenameItem(ctx context.Context, itemID int64, name string) error
	CreateRecipe(ctx context.Context, recipe Recipe) (Recipe, error)
	GetRecipe(ctx context.Context, recipeID int64) (Recipe, error)
	ListRecipes(ctx context.Context, limit, offset int) ([]Recipe, error)
}

// Service validates and persists master data.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService wires the catalog service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// CreateItem registers an item after checking its unit belongs to the
// declared dimension.
func (s *Service) CreateItem(ctx context.Context, name, unit string, dim uom.Dimension) (Item, error) {
	if !dim.Valid() {
		return Item{}, fmt.Errorf("%w: %q", uom.ErrUnknownDimension, dim)
	}
	if !uom.Supported(unit, dim) {
		return Item{}, fmt.Errorf("%w: %q in %q", ErrInvalidUnit, unit, dim)
	}
	item, err := s.repo.CreateItem(ctx, Item{Name: name, Unit: unit, Dimension: dim})
	if err != nil {
		return Item{}, err
	}
	s.logger.Info("item created", "item_id", item.ID, "unit", unit, "dimension", string(dim))
	return item, nil
}

// Item loads one item.
func (s *Service) Item(ctx context.Context, itemID int64) (Item, error) {
	return s.repo.GetItem(ctx, itemID)
}

// ListItems pages through items.
func (s *Service) ListItems(ctx context.Context, limit, offset int) ([]Item, error) {
	return s.repo.ListItems(ctx, limit, offset)
}

// RenameItem updates an item's display name.
func (s *Service) RenameItem(ctx context.Context, itemID int64, name string) error {
	return s.repo.RenameItem(ctx, itemID, name)
}

// CreateRecipe stores a bill of materials. Every referenced item must exist
// and the output item must not appear among the components.
func (s *Service) CreateRecipe(ctx context.Context, recipe Recipe) (Recipe, error) {
	if _, err := s.repo.GetItem(ctx, recipe.OutputItemID); err != nil {
		return Recipe{}, err
	}
	for _, line := range recipe.Items {
		if line.ItemID == recipe.OutputItemID {
			return Recipe{}, ErrSelfReference
		}
		if _, err := s.repo.GetItem(ctx, line.ItemID); err != nil {
			return Recipe{}, err
		}
	}
	created, err := s.repo.CreateRecipe(ctx, recipe)
	if err != nil {
		return Recipe{}, err
	}
	s.logger.Info("recipe created", "recipe_id", created.ID, "lines", len(created.Items))
	return created, nil
}

// Recipe loads one recipe with lines.
func (s *Service) Recipe(ctx context.Context, recipeID int64) (Recipe, error) {
	return s.repo.GetRecipe(ctx, recipeID)
}

// ListRecipes pages through recipes.
func (s *Service) ListRecipes(ctx context.Context, limit, offset int) ([]Recipe, error) {
	return s.repo.ListRecipes(ctx, limit, offset)
}
