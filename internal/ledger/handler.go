package ledger

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stockforge/stockforge/internal/observability"
	"github.com/stockforge/stockforge/internal/platform/httpx"
	"github.com/stockforge/stockforge/internal/shared"
)

// Handler exposes the ledger over HTTP.
type Handler struct {
	svc     *Service
	metrics *observability.Metrics
}

// NewHandler constructs a Handler. metrics may be nil.
func NewHandler(svc *Service, metrics *observability.Metrics) *Handler {
	return &Handler{svc: svc, metrics: metrics}
}

// Routes mounts the ledger endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/batches", h.addBatch)
	r.Post("/consume", h.consume)
	r.Post("/adjustments", h.adjust)
	r.Get("/items/{id}/on-hand", h.onHand)
	r.Get("/items/{id}/movements", h.movements)
}

func (h *Handler) addBatch(w http.ResponseWriter, r *http.Request) {
	var req AddBatchRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	batch, err := h.svc.AddBatch(r.Context(), AddBatchInput{
		ItemID:         req.ItemID,
		Qty:            req.Qty,
		UnitCostCents:  req.UnitCostCents,
		SourceKind:     SourceKind(req.SourceKind),
		SourceID:       req.SourceID,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.metrics.ObserveMovement(string(batch.SourceKind), req.Qty)
	httpx.JSON(w, http.StatusOK, toBatchResponse(batch))
}

func (h *Handler) consume(w http.ResponseWriter, r *http.Request) {
	var req ConsumeRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	allocations, err := h.svc.Consume(r.Context(), ConsumeInput{
		ItemID:         req.ItemID,
		Qty:            req.Qty,
		SourceKind:     SourceKind(req.SourceKind),
		SourceID:       req.SourceID,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	kind := req.SourceKind
	if kind == "" {
		kind = string(SourceStockOut)
	}
	h.metrics.ObserveMovement(kind, -req.Qty)
	httpx.JSON(w, http.StatusOK, map[string]any{"allocations": toAllocationResponses(allocations)})
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.svc.Adjust(r.Context(), req.ItemID, req.Delta, req.UnitCostCents, req.Reason); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

func (h *Handler) onHand(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid item id")
		return
	}
	qty, err := h.svc.OnHand(r.Context(), itemID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	resp := OnHandResponse{ItemID: itemID, Qty: qty}
	if item, err := h.svc.Item(r.Context(), itemID); err == nil {
		resp.Unit = item.Unit
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid item id")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	movements, err := h.svc.Movements(r.Context(), itemID, limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": toMovementResponses(movements)})
}

// respondError extends the shared mapping with the ledger-specific shortage
// payload: a 400 whose body enumerates what was missing.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var short *InsufficientStockError
	switch {
	case errors.As(err, &short):
		httpx.JSON(w, http.StatusBadRequest, map[string]any{
			"error": "insufficient_stock",
			"shortages": []ShortageResponse{{
				ItemID:    short.ItemID,
				Required:  short.Required,
				Available: short.OnHand,
			}},
		})
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidUnitCost):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrItemNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
