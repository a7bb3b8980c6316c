package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jhoicas/pos-ledger/internal/domain/repository"
	"github.com/jhoicas/pos-ledger/pkg/logger"
)

// Publisher publica un evento en el stream de auditoría (Kafka en producción).
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Event es el mensaje publicado por cada registro de auditoría.
type Event struct {
	ID         string          `json:"id"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Action     string          `json:"action"`
	ActorID    string          `json:"actor_id,omitempty"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Relay publica los registros pendientes del outbox en orden de creación y los marca publicados.
// Entrega al menos una vez: si falla el marcado el registro se vuelve a publicar.
type Relay struct {
	repo     repository.AuditRepository
	pub      Publisher
	batch    int
	interval time.Duration
	log      *logger.Logger
	now      func() time.Time
}

// NewRelay construye el relay.
func NewRelay(repo repository.AuditRepository, pub Publisher, batch int, interval time.Duration, log *logger.Logger) *Relay {
	if batch <= 0 {
		batch = 100
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Relay{
		repo:     repo,
		pub:      pub,
		batch:    batch,
		interval: interval,
		log:      log.Component("audit_relay"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Flush publica un lote. Se detiene en el primer error de publicación para conservar el orden;
// los registros ya publicados del lote se marcan igualmente.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	records, err := r.repo.ListUnpublished(ctx, r.batch)
	if err != nil {
		return 0, fmt.Errorf("audit relay: listar pendientes: %w", err)
	}
	published := make([]string, 0, len(records))
	var pubErr error
	for _, rec := range records {
		ev := Event{
			ID:         rec.ID,
			EntityType: rec.EntityType,
			EntityID:   rec.EntityID,
			Action:     rec.Action,
			ActorID:    rec.ActorID,
			Before:     rec.Before,
			After:      rec.After,
			CreatedAt:  rec.CreatedAt,
		}
		if err := r.pub.Publish(ctx, rec.EntityID, ev); err != nil {
			pubErr = fmt.Errorf("audit relay: publicar %s: %w", rec.ID, err)
			break
		}
		published = append(published, rec.ID)
	}
	if len(published) > 0 {
		if err := r.repo.MarkPublished(ctx, published, r.now()); err != nil {
			return 0, fmt.Errorf("audit relay: marcar publicados: %w", err)
		}
	}
	return len(published), pubErr
}

// Run ejecuta Flush periódicamente hasta que ctx se cancele.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.Flush(ctx)
			if err != nil {
				r.log.Error().Err(err).Int("published", n).Msg("relay de auditoría")
				continue
			}
			if n > 0 {
				r.log.Debug().Int("published", n).Msg("registros de auditoría publicados")
			}
		}
	}
}
