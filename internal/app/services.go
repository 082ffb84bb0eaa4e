package app

import (
	"fmt"

	"github.com/harvestdesk/farmops-backend/internal/customers"
	"github.com/harvestdesk/farmops-backend/internal/inventory"
	"github.com/harvestdesk/farmops-backend/internal/locations"
	"github.com/harvestdesk/farmops-backend/internal/movements"
	"github.com/harvestdesk/farmops-backend/internal/orders"
	"github.com/harvestdesk/farmops-backend/internal/production"
	"github.com/harvestdesk/farmops-backend/internal/reports"
	"github.com/harvestdesk/farmops-backend/pkg/config"
	"github.com/harvestdesk/farmops-backend/pkg/db"
	"github.com/harvestdesk/farmops-backend/pkg/logger"
	"github.com/harvestdesk/farmops-backend/pkg/metrics"
	"github.com/harvestdesk/farmops-backend/pkg/outbox"
)

// Services is the domain layer shared by the API, the cron worker and farmctl.
type Services struct {
	Inventory  inventory.Service
	Movements  movements.Service
	Locations  locations.Service
	Orders     orders.Service
	Customers  customers.Service
	Production production.Service
	Reports    reports.Service
	Outbox     *outbox.Repository
}

type Params struct {
	DB      *db.Client
	Config  *config.Config
	Metrics *metrics.DomainMetrics
	Logger  *logger.Logger
}

// Build wires every service onto one row store. An unconfigured client still
// builds; each store call then fails with NOT_CONFIGURED.
func Build(p Params) (*Services, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if p.Config == nil {
		return nil, fmt.Errorf("config required")
	}
	cfg := p.Config
	conn := p.DB.DB()
	timeout := p.DB.Timeout()

	outboxRepo := outbox.NewRepository(conn)
	emitter := outbox.NewService(outboxRepo, p.Logger)
	journalRepo := movements.NewRepository(conn, timeout)

	ledger, err := inventory.NewService(inventory.ServiceParams{
		Repository:       inventory.NewRepository(conn, timeout),
		Movements:        journalRepo,
		Tx:               p.DB,
		Outbox:           emitter,
		Metrics:          p.Metrics,
		Logger:           p.Logger,
		ConditionalDebit: cfg.Store.ConditionalDebit,
	})
	if err != nil {
		return nil, fmt.Errorf("inventory service: %w", err)
	}
	journal, err := movements.NewService(journalRepo)
	if err != nil {
		return nil, fmt.Errorf("movements service: %w", err)
	}
	locs, err := locations.NewService(locations.NewRepository(conn, timeout))
	if err != nil {
		return nil, fmt.Errorf("locations service: %w", err)
	}
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repository: orders.NewRepository(conn, timeout),
		Inventory:  ledger,
		Tx:         p.DB,
		Outbox:     emitter,
		IDs:        orders.NewIDGenerator(cfg.Orders.TimeZone),
		IDMode:     cfg.Orders.IDMode,
		Metrics:    p.Metrics,
		Logger:     p.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("orders service: %w", err)
	}
	customerSvc, err := customers.NewService(customers.ServiceParams{
		Repository: customers.NewRepository(conn, timeout),
		Tx:         p.DB,
		Outbox:     emitter,
		Thresholds: customers.Thresholds{
			VIPScore:    cfg.Segmentation.VIPScore,
			StableScore: cfg.Segmentation.StableScore,
			AtRiskDays:  cfg.Segmentation.AtRiskDays,
		},
		TopLimit: cfg.Segmentation.TopLimit,
		Metrics:  p.Metrics,
		Logger:   p.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("customers service: %w", err)
	}
	productionSvc, err := production.NewService(production.NewRepository(conn, timeout))
	if err != nil {
		return nil, fmt.Errorf("production service: %w", err)
	}
	reportSvc, err := reports.NewService(ledger, locs, customerSvc)
	if err != nil {
		return nil, fmt.Errorf("reports service: %w", err)
	}

	return &Services{
		Inventory:  ledger,
		Movements:  journal,
		Locations:  locs,
		Orders:     orderSvc,
		Customers:  customerSvc,
		Production: productionSvc,
		Reports:    reportSvc,
		Outbox:     outboxRepo,
	}, nil
}
