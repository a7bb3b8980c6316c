package entity

import (
	"encoding/json"
	"time"
)

// Tipos de entidad auditados.
const (
	AuditEntityProduct   = "product"
	AuditEntityMovement  = "stock_movement"
	AuditEntityPromotion = "promotion"
	AuditEntitySale      = "sale"
)

// AuditRecord es una instantánea inmutable antes/después de una mutación.
// PublishedAt lo completa el relay al publicarlo en el stream de auditoría.
type AuditRecord struct {
	ID          string
	EntityType  string
	EntityID    string
	Action      string
	ActorID     string
	Before      json.RawMessage
	After       json.RawMessage
	CreatedAt   time.Time
	PublishedAt *time.Time
}
