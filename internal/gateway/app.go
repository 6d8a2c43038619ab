package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"CartCast/internal/cart"
	"CartCast/internal/events"
	"CartCast/pkg/kit"
)

type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled bool
	MetricsToken   string

	// CORSOrigins lists the browser origins allowed to call the API; "*"
	// allows any. Empty leaves CORS headers off.
	CORSOrigins []string
}

type Deps struct {
	Cart   *cart.Server
	Events *events.Server

	// PopupLimitPerMin caps popup triggers per client IP; 0 disables it.
	PopupLimitPerMin int
}

const (
	readyTimeout = 2 * time.Second
	limitWindow  = 60 * time.Second
	corsMaxAge   = 300
)

// NewHandler assembles the public API: cart routes under an implicit and a
// path-addressed session, the popup trigger and the event stream.
func NewHandler(deps Deps, httpDeps HTTPDeps) http.Handler {
	r := chi.NewRouter()
	setupMiddleware(r, httpDeps)
	setupMetrics(r, httpDeps)

	r.Get("/healthz", healthz)
	r.Get("/readyz", readyz(deps.Cart.Engine.Store, httpDeps.Log))

	r.Mount("/api/cart", deps.Cart.Routes())
	r.Mount("/api/sessions/{sessionID}/cart", deps.Cart.Routes())

	popupLimiter := kit.NewIPRateLimiter(deps.PopupLimitPerMin, limitWindow)
	r.With(popupLimiter.Middleware).Post("/api/popup", deps.Events.TriggerHandler())
	r.Get("/api/events", deps.Events.StreamHandler())

	return r
}

func setupMiddleware(r *chi.Mux, deps HTTPDeps) {
	r.Use(chimw.RequestID)
	r.Use(kit.Recoverer)
	r.Use(kit.Logging(deps.Log))

	if len(deps.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: deps.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Authorization", "X-Session-Id"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         corsMaxAge,
		}))
	}
}

func setupMetrics(r *chi.Mux, deps HTTPDeps) {
	if deps.Registry == nil {
		return
	}

	metrics := kit.NewMetrics(deps.Registry)
	r.Use(metrics.Middleware(deps.Service, kit.ChiRoutePatternOrPath))

	if !deps.MetricsEnabled {
		return
	}

	r.With(kit.MetricsAuth(deps.MetricsToken)).
		Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func readyz(store cart.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			if log != nil {
				log.Warn("readyz failed: store", zap.Error(err))
			}
			kit.WriteError(w, r, http.StatusServiceUnavailable, "store not ready", nil)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
