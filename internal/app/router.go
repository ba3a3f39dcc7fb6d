package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/runway/internal/accounting/reports"
	"github.com/odyssey-erp/runway/internal/observability"
	"github.com/odyssey-erp/runway/internal/platform/httpx"
	"github.com/odyssey-erp/runway/internal/shared"
	"github.com/odyssey-erp/runway/jobs"
)

// IntegrityChecker runs the ledger verification paths for one company.
type IntegrityChecker interface {
	CheckIntegrity(ctx context.Context, companyID uuid.UUID, asOf time.Time, opts ...reports.ReadOption) (reports.IntegrityReport, error)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the ops router.
type RouterParams struct {
	Logger     *slog.Logger
	Config     *Config
	Integrity  IntegrityChecker
	Observer   jobs.IntegrityObserver
	JobHandler *jobs.Handler
	Metrics    *observability.Metrics
	Health     map[string]Pinger
}

// NewRouter constructs the operator router: health, metrics, integrity and
// queue depth. It never writes to the ledger.
func NewRouter(params RouterParams) http.Handler {
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", healthHandler(params.Health, params.Logger))
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	if params.Integrity != nil {
		r.Get("/companies/{companyID}/integrity", integrityHandler(params.Integrity, params.Observer, params.Logger))
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	return r
}

func healthHandler(checks map[string]Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		for name, p := range checks {
			if p == nil {
				continue
			}
			if err := p.Ping(ctx); err != nil {
				logger.Warn("health check failed", slog.String("dependency", name), slog.Any("error", err))
				status[name] = "unavailable"
				status["status"] = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}
		httpx.JSON(w, code, status)
	}
}

func integrityHandler(checker IntegrityChecker, observer jobs.IntegrityObserver, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID, err := uuid.Parse(chi.URLParam(r, "companyID"))
		if err != nil {
			httpx.RespondError(w, shared.Validation("company_id", "must be a UUID"))
			return
		}
		asOf := time.Now().UTC()
		if raw := r.URL.Query().Get("as_of"); raw != "" {
			asOf, err = time.Parse("2006-01-02", raw)
			if err != nil {
				httpx.RespondError(w, shared.Validation("as_of", "must be YYYY-MM-DD"))
				return
			}
		}
		var opts []reports.ReadOption
		if strict := r.URL.Query().Get("strict"); strict == "1" || strict == "true" {
			opts = append(opts, reports.ReadSerializable())
		}
		report, err := checker.CheckIntegrity(r.Context(), companyID, asOf, opts...)
		if err != nil {
			logger.Warn("integrity check failed", slog.String("company_id", companyID.String()), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		if observer != nil {
			observer.ObserveIntegrity(companyID.String(), len(report.Findings))
		}
		httpx.JSON(w, http.StatusOK, report)
	}
}
