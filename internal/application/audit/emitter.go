// Package audit registra una instantánea antes/después por cada mutación del núcleo y la
// publica en el stream de auditoría.
//
// La escritura ocurre dentro de la misma transacción que la mutación (outbox): si la transacción
// se revierte no queda registro, y si confirma queda exactamente uno. El Relay publica después los
// registros pendientes.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/pos-ledger/internal/domain/entity"
	"github.com/jhoicas/pos-ledger/internal/domain/repository"
)

// Acciones registradas.
const (
	ActionCreate       = "create"
	ActionUpdate       = "update"
	ActionAppend       = "append"
	ActionStatusChange = "status_change"
	ActionPostSale     = "post_sale"
	ActionCancelSale   = "cancel_sale"
)

// Entry describe una mutación a auditar.
type Entry struct {
	EntityType string
	EntityID   string
	Action     string
	ActorID    string
	Before     any // nil si la entidad no existía
	After      any
}

// Emitter escribe registros de auditoría con el repositorio de la transacción en curso.
type Emitter struct {
	now func() time.Time
}

// NewEmitter construye el emisor.
func NewEmitter() *Emitter {
	return &Emitter{now: func() time.Time { return time.Now().UTC() }}
}

// Emit persiste el registro. Un error aquí debe abortar la transacción del llamador.
func (e *Emitter) Emit(ctx context.Context, repo repository.AuditRepository, entry Entry) error {
	before, err := marshalSnapshot(entry.Before)
	if err != nil {
		return fmt.Errorf("audit: snapshot before: %w", err)
	}
	after, err := marshalSnapshot(entry.After)
	if err != nil {
		return fmt.Errorf("audit: snapshot after: %w", err)
	}
	rec := &entity.AuditRecord{
		ID:         uuid.New().String(),
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Action:     entry.Action,
		ActorID:    entry.ActorID,
		Before:     before,
		After:      after,
		CreatedAt:  e.now(),
	}
	if err := repo.Create(ctx, rec); err != nil {
		return fmt.Errorf("audit: registrar %s/%s: %w", entry.EntityType, entry.EntityID, err)
	}
	return nil
}

func marshalSnapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}
