package repository

import (
	"context"
	"time"

	"github.com/jhoicas/pos-ledger/internal/domain/entity"
)

// AuditRepository define el puerto del registro de auditoría (outbox).
type AuditRepository interface {
	Create(ctx context.Context, record *entity.AuditRecord) error
	// ListUnpublished devuelve registros pendientes de publicar en orden de creación.
	ListUnpublished(ctx context.Context, limit int) ([]*entity.AuditRecord, error)
	MarkPublished(ctx context.Context, ids []string, at time.Time) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]*entity.AuditRecord, error)
}
