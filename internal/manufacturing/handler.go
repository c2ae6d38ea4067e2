package manufacturing

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stockforge/stockforge/internal/ledger"
	"github.com/stockforge/stockforge/internal/observability"
	"github.com/stockforge/stockforge/internal/platform/httpx"
)

// Handler exposes manufacturing runs over HTTP.
type Handler struct {
	svc     *Service
	metrics *observability.Metrics
}

// NewHandler constructs a Handler. metrics may be nil.
func NewHandler(svc *Service, metrics *observability.Metrics) *Handler {
	return &Handler{svc: svc, metrics: metrics}
}

// Routes mounts the manufacturing endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/run", h.run)
	r.Post("/validate", h.validateRun)
	r.Get("/runs/{id}", h.getRun)
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.svc.ExecuteRun(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrShortage) || errors.Is(err, ledger.ErrInsufficientStock) {
			h.metrics.ObserveRun("shortage")
		} else {
			h.metrics.ObserveRun("failed")
		}
		h.respondError(w, err)
		return
	}
	h.metrics.ObserveRun("completed")
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) validateRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.svc.ValidateRun(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	runID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid run id")
		return
	}
	run, err := h.svc.Run(r.Context(), runID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRunResponse(run))
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var (
		shortErr *ShortageError
		stockErr *ledger.InsufficientStockError
	)
	switch {
	case errors.As(err, &shortErr):
		httpx.JSON(w, http.StatusBadRequest, map[string]any{
			"error":     "insufficient_stock",
			"shortages": shortErr.Shortages,
		})
	case errors.As(err, &stockErr):
		httpx.JSON(w, http.StatusBadRequest, map[string]any{
			"error": "insufficient_stock",
			"shortages": []Shortage{{
				ItemID:    stockErr.ItemID,
				Required:  stockErr.Required,
				Available: stockErr.OnHand,
			}},
		})
	case errors.Is(err, ErrRecipeNotFound), errors.Is(err, ErrRunNotFound), errors.Is(err, ledger.ErrItemNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidOutputQty), errors.Is(err, ErrNoComponents),
		errors.Is(err, ErrAmbiguousRequest), errors.Is(err, ledger.ErrInvalidQuantity):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}
