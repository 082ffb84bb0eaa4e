package models

// All lists every model owned by the service, in dependency order. The SQLite
// fallback store migrates with it; postgres uses the goose migrations.
func All() []any {
	return []any{
		&StorageLocation{},
		&InventoryRow{},
		&InventoryMovement{},
		&Order{},
		&OrderItem{},
		&Customer{},
		&ProductionLog{},
		&OutboxEvent{},
	}
}
