package models

import "github.com/google/uuid"

// ensureID assigns a fresh UUID when the primary key has not been set.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model in dependency order (parents first). The
// belongs-to pointers on the models are never loaded; they give AutoMigrate the
// same foreign keys the goose migrations declare.
func All() []any {
	return []any{
		&User{},
		&Stall{},
		&Product{},
		&Cart{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&Review{},
		&Message{},
		&Notification{},
	}
}
