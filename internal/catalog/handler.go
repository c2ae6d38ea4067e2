package catalog

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stockforge/stockforge/internal/platform/httpx"
	"github.com/stockforge/stockforge/internal/uom"
)

// CreateItemRequest registers a stock item.
type CreateItemRequest struct {
	Name      string `json:"name" validate:"required,min=1,max=256"`
	Unit      string `json:"unit" validate:"required,max=16"`
	Dimension string `json:"dimension" validate:"required,oneof=length area volume weight count"`
}

// RenameItemRequest changes an item's display name.
type RenameItemRequest struct {
	Name string `json:"name" validate:"required,min=1,max=256"`
}

// CreateRecipeRequest stores a bill of materials.
type CreateRecipeRequest struct {
	Name         string              `json:"name" validate:"required,min=1,max=256"`
	OutputItemID int64               `json:"output_item_id" validate:"required,gt=0"`
	OutputQty    int64               `json:"output_qty" validate:"required,gt=0"`
	Items        []RecipeLineRequest `json:"items" validate:"required,min=1,dive"`
}

// RecipeLineRequest is one component line.
type RecipeLineRequest struct {
	ItemID      int64 `json:"item_id" validate:"required,gt=0"`
	QtyRequired int64 `json:"qty_required" validate:"required,gt=0"`
	IsOptional  bool  `json:"is_optional"`
}

// ItemResponse mirrors an item row.
type ItemResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Unit      string    `json:"unit"`
	Dimension string    `json:"dimension"`
	QtyStored int64     `json:"qty_stored"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecipeResponse mirrors a recipe with lines.
type RecipeResponse struct {
	ID           int64                `json:"id"`
	Name         string               `json:"name"`
	OutputItemID int64                `json:"output_item_id"`
	OutputQty    int64                `json:"output_qty"`
	Items        []RecipeLineResponse `json:"items,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
}

// RecipeLineResponse mirrors one component line.
type RecipeLineResponse struct {
	ItemID      int64 `json:"item_id"`
	QtyRequired int64 `json:"qty_required"`
	IsOptional  bool  `json:"is_optional,omitempty"`
}

// Handler exposes the catalog over HTTP.
type Handler struct {
	svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the catalog endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/items", h.createItem)
	r.Get("/items", h.listItems)
	r.Get("/items/{id}", h.getItem)
	r.Put("/items/{id}/name", h.renameItem)
	r.Post("/recipes", h.createRecipe)
	r.Get("/recipes", h.listRecipes)
	r.Get("/recipes/{id}", h.getRecipe)
	r.Get("/units", h.listUnits)
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.svc.CreateItem(r.Context(), req.Name, req.Unit, uom.Dimension(req.Dimension))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toItemResponse(item))
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	items, err := h.svc.ListItems(r.Context(), limit, offset)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toItemResponse(item))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid item id")
		return
	}
	item, err := h.svc.Item(r.Context(), itemID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toItemResponse(item))
}

func (h *Handler) renameItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid item id")
		return
	}
	var req RenameItemRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.svc.RenameItem(r.Context(), itemID, req.Name); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "renamed"})
}

func (h *Handler) createRecipe(w http.ResponseWriter, r *http.Request) {
	var req CreateRecipeRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	recipe := Recipe{Name: req.Name, OutputItemID: req.OutputItemID, OutputQty: req.OutputQty}
	for _, line := range req.Items {
		recipe.Items = append(recipe.Items, RecipeItem{
			ItemID:      line.ItemID,
			QtyRequired: line.QtyRequired,
			IsOptional:  line.IsOptional,
		})
	}
	created, err := h.svc.CreateRecipe(r.Context(), recipe)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRecipeResponse(created))
}

func (h *Handler) listRecipes(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	recipes, err := h.svc.ListRecipes(r.Context(), limit, offset)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]RecipeResponse, 0, len(recipes))
	for _, rec := range recipes {
		out = append(out, toRecipeResponse(rec))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"recipes": out})
}

func (h *Handler) getRecipe(w http.ResponseWriter, r *http.Request) {
	recipeID, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid recipe id")
		return
	}
	recipe, err := h.svc.Recipe(r.Context(), recipeID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRecipeResponse(recipe))
}

func (h *Handler) listUnits(w http.ResponseWriter, r *http.Request) {
	out := make(map[string][]string, len(uom.Dimensions()))
	for _, dim := range uom.Dimensions() {
		units, err := uom.Units(dim)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		out[string(dim)] = units
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"dimensions": out})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrItemNotFound), errors.Is(err, ErrRecipeNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidUnit), errors.Is(err, ErrSelfReference), errors.Is(err, uom.ErrUnknownDimension):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

func toItemResponse(item Item) ItemResponse {
	return ItemResponse{
		ID:        item.ID,
		Name:      item.Name,
		Unit:      item.Unit,
		Dimension: string(item.Dimension),
		QtyStored: item.QtyStored,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}

func toRecipeResponse(rec Recipe) RecipeResponse {
	resp := RecipeResponse{
		ID:           rec.ID,
		Name:         rec.Name,
		OutputItemID: rec.OutputItemID,
		OutputQty:    rec.OutputQty,
		CreatedAt:    rec.CreatedAt,
	}
	for _, line := range rec.Items {
		resp.Items = append(resp.Items, RecipeLineResponse{
			ItemID:      line.ItemID,
			QtyRequired: line.QtyRequired,
			IsOptional:  line.IsOptional,
		})
	}
	return resp
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
