package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/pos-ledger/internal/domain/entity"
	"github.com/jhoicas/pos-ledger/internal/domain/repository"
)

var _ repository.AuditRepository = (*AuditRepo)(nil)

// AuditRepo outbox de auditoría. El núcleo solo inserta; published_at lo escribe el relay.
type AuditRepo struct {
	q Querier
}

// NewAuditRepository construye el adaptador. Acepta pool o tx (Querier).
func NewAuditRepository(q Querier) *AuditRepo {
	return &AuditRepo{q: q}
}

const auditColumns = `id, entity_type, entity_id, action, actor_id, before, after, created_at, published_at`

func scanAudit(row pgx.Row) (*entity.AuditRecord, error) {
	var rec entity.AuditRecord
	var before, after []byte
	if err := row.Scan(&rec.ID, &rec.EntityType, &rec.EntityID, &rec.Action, &rec.ActorID,
		&before, &after, &rec.CreatedAt, &rec.PublishedAt); err != nil {
		return nil, err
	}
	rec.Before = before
	rec.After = after
	return &rec, nil
}

func (r *AuditRepo) list(ctx context.Context, query string, args ...any) ([]*entity.AuditRecord, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*entity.AuditRecord
	for rows.Next() {
		rec, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

// Create inserta un registro de auditoría.
func (r *AuditRepo) Create(ctx context.Context, rec *entity.AuditRecord) error {
	query := `
		INSERT INTO audit_records (id, entity_type, entity_id, action, actor_id, before, after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	var before, after any
	if len(rec.Before) > 0 {
		before = string(rec.Before)
	}
	if len(rec.After) > 0 {
		after = string(rec.After)
	}
	_, err := r.q.Exec(ctx, query, rec.ID, rec.EntityType, rec.EntityID, rec.Action, rec.ActorID,
		before, after, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// ListUnpublished registros sin publicar en orden de inserción.
func (r *AuditRepo) ListUnpublished(ctx context.Context, limit int) ([]*entity.AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	list, err := r.list(ctx,
		`SELECT `+auditColumns+` FROM audit_records WHERE published_at IS NULL ORDER BY seq LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unpublished audit records: %w", err)
	}
	return list, nil
}

// MarkPublished marca los registros como publicados.
func (r *AuditRepo) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.q.Exec(ctx,
		`UPDATE audit_records SET published_at = $2 WHERE id = ANY($1::uuid[]) AND published_at IS NULL`, ids, at)
	if err != nil {
		return fmt.Errorf("mark audit records published: %w", err)
	}
	return nil
}

// ListByEntity historial de auditoría de una entidad.
func (r *AuditRepo) ListByEntity(ctx context.Context, entityType, entityID string) ([]*entity.AuditRecord, error) {
	list, err := r.list(ctx,
		`SELECT `+auditColumns+` FROM audit_records WHERE entity_type = $1 AND entity_id = $2 ORDER BY seq`,
		entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	return list, nil
}
