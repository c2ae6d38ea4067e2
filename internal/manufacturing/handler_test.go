package manufacturing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter(store *memStore) http.Handler {
	r := chi.NewRouter()
	r.Route("/manufacturing", NewHandler(newTestService(store), nil).Routes)
	return r
}

func TestRunEndpointReturnsShortagesAs400(t *testing.T) {
	store := newMemStore()
	store.addItem(1, "ea", "count")
	store.addItem(2, "ea", "count")
	store.addStock(t, 1, 2, 10)

	router := newTestRouter(store)
	payload := `{"output_item_id":2,"output_qty":1,"components":[{"item_id":1,"qty":5}]}`
	req := httptest.NewRequest(http.MethodPost, "/manufacturing/run", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Error     string     `json:"error"`
		Shortages []Shortage `json:"shortages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "insufficient_stock", body.Error)
	require.Equal(t, []Shortage{{ItemID: 1, Required: 5, Available: 2}}, body.Shortages)
}

func TestRunEndpointExecutesAndExposesRun(t *testing.T) {
	store := newMemStore()
	store.addItem(1, "ea", "count")
	store.addItem(2, "ea", "count")
	store.addStock(t, 1, 10, 10)

	router := newTestRouter(store)
	payload := `{"output_item_id":2,"output_qty":2,"components":[{"item_id":1,"qty":4}]}`
	req := httptest.NewRequest(http.MethodPost, "/manufacturing/run", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var result RunResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, int64(40), result.CostInputsCents)
	require.Equal(t, int64(20), result.OutputUnitCostCents)

	req = httptest.NewRequest(http.MethodGet, "/manufacturing/runs/1", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var run RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	require.Equal(t, string(RunStatusCompleted), run.Status)
	require.Equal(t, result.OutputBatchID, run.Meta.OutputBatchID)
}

func TestValidateEndpointIsReadOnly(t *testing.T) {
	store := newMemStore()
	store.addItem(1, "ea", "count")
	store.addItem(2, "ea", "count")
	store.addStock(t, 1, 1, 10)
	before := store.snapshot()

	router := newTestRouter(store)
	payload := `{"output_item_id":2,"output_qty":1,"components":[{"item_id":1,"qty":3}]}`
	req := httptest.NewRequest(http.MethodPost, "/manufacturing/validate", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var result ValidationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.False(t, result.Feasible)
	require.Len(t, result.Shortages, 1)
	require.Len(t, store.movements, len(before.movements))
}

func TestRunEndpointRejectsUnknownRecipe(t *testing.T) {
	store := newMemStore()
	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/manufacturing/run", strings.NewReader(`{"recipe_id":42,"output_qty":1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
