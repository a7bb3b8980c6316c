package audit_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pos-ledger/internal/application/audit"
	"github.com/jhoicas/pos-ledger/internal/application/inventory"
	"github.com/jhoicas/pos-ledger/internal/infrastructure/memory"
	"github.com/jhoicas/pos-ledger/pkg/logger"
)

type published struct {
	key   string
	event audit.Event
}

// fakePublisher falla a partir de la llamada failAt (1-based); 0 nunca falla.
type fakePublisher struct {
	sent   []published
	calls  int
	failAt int
}

func (p *fakePublisher) Publish(_ context.Context, key string, event any) error {
	p.calls++
	if p.failAt > 0 && p.calls >= p.failAt {
		return errors.New("broker caído")
	}
	p.sent = append(p.sent, published{key: key, event: event.(audit.Event)})
	return nil
}

func emitN(t *testing.T, store *memory.Store, n int) {
	t.Helper()
	emitter := audit.NewEmitter()
	for i := 0; i < n; i++ {
		err := store.Run(context.Background(), func(ctx context.Context, repos inventory.TxRepositories) error {
			return emitter.Emit(ctx, repos.Audit, audit.Entry{
				EntityType: "product",
				EntityID:   "p" + string(rune('a'+i)),
				Action:     audit.ActionUpdate,
				ActorID:    "admin",
				Before:     map[string]int{"quantity": i},
				After:      map[string]int{"quantity": i + 1},
			})
		})
		require.NoError(t, err)
	}
}

func TestEmit_RevertidoNoDejaRegistro(t *testing.T) {
	store := memory.NewStore()
	emitter := audit.NewEmitter()
	boom := errors.New("boom")

	err := store.Run(context.Background(), func(ctx context.Context, repos inventory.TxRepositories) error {
		require.NoError(t, emitter.Emit(ctx, repos.Audit, audit.Entry{EntityType: "product", EntityID: "p1", Action: audit.ActionCreate}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	recs, err := store.Audit().ListUnpublished(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestEmit_SerializaInstantaneas(t *testing.T) {
	store := memory.NewStore()
	emitN(t, store, 1)

	recs, err := store.Audit().ListUnpublished(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	var after map[string]int
	require.NoError(t, json.Unmarshal(recs[0].After, &after))
	assert.Equal(t, 1, after["quantity"])
	assert.False(t, recs[0].CreatedAt.IsZero())
}

func TestRelay_PublicaEnOrdenYMarca(t *testing.T) {
	store := memory.NewStore()
	emitN(t, store, 3)
	pub := &fakePublisher{}
	relay := audit.NewRelay(store.Audit(), pub, 10, time.Second, logger.Nop())

	n, err := relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, pub.sent, 3)
	assert.Equal(t, "pa", pub.sent[0].key)
	assert.Equal(t, "pc", pub.sent[2].key)
	assert.Equal(t, audit.ActionUpdate, pub.sent[0].event.Action)

	n, err = relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n, "nada pendiente tras publicar")
}

func TestRelay_ErrorDePublicacionConservaPendientes(t *testing.T) {
	store := memory.NewStore()
	emitN(t, store, 3)
	pub := &fakePublisher{failAt: 2}
	relay := audit.NewRelay(store.Audit(), pub, 10, time.Second, logger.Nop())

	n, err := relay.Flush(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, n)

	pending, err := store.Audit().ListUnpublished(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "pb", pending[0].EntityID)

	pub.failAt = 0
	n, err = relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRelay_RespetaTamanoDeLote(t *testing.T) {
	store := memory.NewStore()
	emitN(t, store, 5)
	pub := &fakePublisher{}
	relay := audit.NewRelay(store.Audit(), pub, 2, time.Second, logger.Nop())

	n, err := relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
