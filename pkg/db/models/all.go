package models

// All lists every persisted model, in dependency order. Used for sqlite
// schemas in local development and tests; Postgres uses goose migrations.
func All() []any {
	return []any{
		&Shift{},
		&CashMovement{},
		&LedgerEntry{},
		&StoreNotificationSetting{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
