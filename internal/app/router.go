package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockforge/stockforge/internal/catalog"
	"github.com/stockforge/stockforge/internal/ledger"
	"github.com/stockforge/stockforge/internal/manufacturing"
	"github.com/stockforge/stockforge/internal/observability"
	"github.com/stockforge/stockforge/internal/platform/httpx"
	"github.com/stockforge/stockforge/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger               *slog.Logger
	Config               *Config
	LedgerHandler        *ledger.Handler
	ManufacturingHandler *manufacturing.Handler
	CatalogHandler       *catalog.Handler
	JobHandler           *jobs.Handler
	Pool                 *pgxpool.Pool
	Metrics              *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if params.Pool != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := params.Pool.Ping(ctx); err != nil {
				httpx.Problem(w, http.StatusServiceUnavailable, "Unhealthy", "database unreachable")
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	var tokenHash string
	if params.Config != nil {
		tokenHash = params.Config.APITokenHash
	}
	auth := BearerAuth(tokenHash, params.Logger)

	r.Group(func(r chi.Router) {
		r.Use(auth)
		if params.LedgerHandler != nil {
			r.Route("/inventory", params.LedgerHandler.Routes)
		}
		if params.ManufacturingHandler != nil {
			r.Route("/manufacturing", params.ManufacturingHandler.Routes)
		}
		if params.CatalogHandler != nil {
			r.Route("/catalog", params.CatalogHandler.Routes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.Routes)
		}
	})

	return r
}
