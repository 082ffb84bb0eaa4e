package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harvestdesk/farmops-backend/internal/inventory"
	"github.com/harvestdesk/farmops-backend/pkg/db/models"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// InventoryLedger is the part of the inventory ledger the fulfillment flow needs.
type InventoryLedger interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.InventoryRow, error)
	ConsumeTx(ctx context.Context, tx *gorm.DB, picks []inventory.Pick, reference string) (*inventory.ConsumeResult, error)
}
