package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, repo *memoryRepo) http.Handler {
	t.Helper()
	svc, _ := newTestService(repo)
	r := chi.NewRouter()
	r.Route("/inventory", NewHandler(svc, nil).Routes)
	return r
}

func TestConsumeEndpointReportsShortageAs400(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(1, "ea")
	svc, _ := newTestService(repo)
	_, err := svc.AddBatch(context.Background(), AddBatchInput{ItemID: 1, Qty: 3, UnitCostCents: 10})
	require.NoError(t, err)

	router := newTestRouter(t, repo)
	req := httptest.NewRequest(http.MethodPost, "/inventory/consume", strings.NewReader(`{"item_id":1,"qty":9}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Error     string             `json:"error"`
		Shortages []ShortageResponse `json:"shortages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "insufficient_stock", body.Error)
	require.Equal(t, []ShortageResponse{{ItemID: 1, Required: 9, Available: 3}}, body.Shortages)
}

func TestAddBatchEndpointValidatesPayload(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(1, "ea")
	router := newTestRouter(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/inventory/batches", strings.NewReader(`{"item_id":1,"qty":-4}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/inventory/batches", strings.NewReader(`{"item_id":1,"qty":4,"unit_cost_cents":25}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var batch BatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &batch))
	require.Equal(t, int64(4), batch.QtyRemaining)
	require.Equal(t, int64(25), batch.UnitCostCents)
}

func TestOnHandEndpoint(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(7, "kg")
	svc, _ := newTestService(repo)
	_, err := svc.AddBatch(context.Background(), AddBatchInput{ItemID: 7, Qty: 2500, UnitCostCents: 1})
	require.NoError(t, err)

	router := newTestRouter(t, repo)
	req := httptest.NewRequest(http.MethodGet, "/inventory/items/7/on-hand", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp OnHandResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, int64(2500), resp.Qty)
	require.Equal(t, "kg", resp.Unit)

	req = httptest.NewRequest(http.MethodGet, "/inventory/items/99/on-hand", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
