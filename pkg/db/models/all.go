package models

// All lists every persisted model, in dependency order, for AutoMigrate in
// tests and local tooling.
func All() []any {
	return []any{
		&Slot{},
		&Order{},
		&OrderLineItem{},
		&InventoryItem{},
		&StockMovement{},
		&OutboxEvent{},
	}
}
