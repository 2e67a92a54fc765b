package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/armada-dist/armada/internal/debt"
	"github.com/armada-dist/armada/internal/delivery"
	"github.com/armada-dist/armada/internal/masterdata/drivers"
	"github.com/armada-dist/armada/internal/masterdata/products"
	"github.com/armada-dist/armada/internal/masterdata/stores"
	"github.com/armada-dist/armada/internal/observability"
	"github.com/armada-dist/armada/internal/orders"
	"github.com/armada-dist/armada/internal/stock"
	"github.com/armada-dist/armada/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	StockHandler    *stock.Handler
	DeliveryHandler *delivery.Handler
	DebtHandler     *debt.Handler
	OrdersHandler   *orders.Handler
	ProductsHandler *products.Handler
	StoresHandler   *stores.Handler
	DriversHandler  *drivers.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with Armada defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(api chi.Router) {
		if params.StockHandler != nil {
			api.Route("/stock", params.StockHandler.MountRoutes)
		}
		if params.DeliveryHandler != nil {
			api.Route("/deliveries", params.DeliveryHandler.MountRoutes)
		}
		if params.DebtHandler != nil {
			api.Route("/debt", params.DebtHandler.MountRoutes)
		}
		if params.OrdersHandler != nil {
			api.Route("/orders", params.OrdersHandler.MountRoutes)
		}
		if params.ProductsHandler != nil {
			api.Route("/products", params.ProductsHandler.MountRoutes)
		}
		if params.StoresHandler != nil {
			api.Route("/stores", params.StoresHandler.MountRoutes)
		}
		if params.DriversHandler != nil {
			api.Route("/drivers", params.DriversHandler.MountRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
