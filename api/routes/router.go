package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harvestdesk/farmops-backend/api/controllers"
	customercontrollers "github.com/harvestdesk/farmops-backend/api/controllers/customers"
	inventorycontrollers "github.com/harvestdesk/farmops-backend/api/controllers/inventory"
	locationcontrollers "github.com/harvestdesk/farmops-backend/api/controllers/locations"
	ordercontrollers "github.com/harvestdesk/farmops-backend/api/controllers/orders"
	productioncontrollers "github.com/harvestdesk/farmops-backend/api/controllers/production"
	"github.com/harvestdesk/farmops-backend/api/middleware"
	"github.com/harvestdesk/farmops-backend/internal/customers"
	"github.com/harvestdesk/farmops-backend/internal/inventory"
	"github.com/harvestdesk/farmops-backend/internal/locations"
	"github.com/harvestdesk/farmops-backend/internal/movements"
	"github.com/harvestdesk/farmops-backend/internal/orders"
	"github.com/harvestdesk/farmops-backend/internal/production"
	"github.com/harvestdesk/farmops-backend/internal/reports"
	"github.com/harvestdesk/farmops-backend/pkg/config"
	"github.com/harvestdesk/farmops-backend/pkg/logger"
	"github.com/harvestdesk/farmops-backend/pkg/metrics"
	"github.com/harvestdesk/farmops-backend/pkg/redis"
)

// Dependencies are the services behind the API. Redis is optional; without it
// the idempotent replay layer is off.
type Dependencies struct {
	DB          controllers.Pinger
	Redis       *redis.Client
	Inventory   inventory.Service
	Movements   movements.Service
	Locations   locations.Service
	Orders      orders.Service
	Customers   customers.Service
	Production  production.Service
	Reports     reports.Service
	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	ready := map[string]controllers.Pinger{"db": deps.DB}
	if deps.Redis != nil {
		ready["redis"] = deps.Redis
	}
	r.Get("/health/live", controllers.HealthLive(cfg))
	r.Get("/health/ready", controllers.HealthReady(cfg, logg, ready))

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		if cfg.FeatureFlags.Idempotency && deps.Redis != nil {
			r.Use(middleware.Idempotency(deps.Redis, cfg.FeatureFlags.IdempotencyTTL, logg))
		}

		r.Post("/inventory-move", inventorycontrollers.Move(deps.Inventory, logg))
		r.Post("/inventory-consume", inventorycontrollers.Consume(deps.Inventory, logg))
		r.Route("/inventory", func(r chi.Router) {
			r.Get("/", inventorycontrollers.List(deps.Inventory, logg))
			r.Post("/", inventorycontrollers.Upsert(deps.Inventory, logg))
			r.Get("/movements", inventorycontrollers.Movements(deps.Movements, logg))
			r.Get("/export", inventorycontrollers.Export(deps.Reports, logg))
			r.Get("/{id}", inventorycontrollers.Get(deps.Inventory, logg))
		})

		r.Get("/locations", locationcontrollers.List(deps.Locations, logg))
		r.Post("/locations", locationcontrollers.Create(deps.Locations, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(deps.Orders, logg))
			r.Post("/", ordercontrollers.Create(deps.Orders, logg))
			r.Get("/{id}", ordercontrollers.Get(deps.Orders, logg))
			r.Put("/{id}", ordercontrollers.UpdateStatus(deps.Orders, logg))
			r.Post("/{id}/pick", ordercontrollers.Pick(deps.Orders, logg))
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", customercontrollers.List(deps.Customers, logg))
			r.Post("/", customercontrollers.Create(deps.Customers, logg))
			r.Route("/segmentation", func(r chi.Router) {
				r.Get("/calculate", customercontrollers.Calculate(deps.Customers, logg))
				r.Post("/apply", customercontrollers.Apply(deps.Customers, logg))
				r.Get("/top", customercontrollers.Top(deps.Customers, logg))
				r.Get("/export", customercontrollers.Export(deps.Reports, logg))
			})
			r.Get("/{id}", customercontrollers.Get(deps.Customers, logg))
			r.Put("/{id}", customercontrollers.Update(deps.Customers, logg))
		})

		r.Get("/production-logs", productioncontrollers.List(deps.Production, logg))
		r.Post("/production-logs", productioncontrollers.Create(deps.Production, logg))
	})

	return r
}
