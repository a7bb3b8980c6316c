// Package kafka publica los eventos de auditoría en un topic de Kafka.
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jhoicas/pos-ledger/internal/application/audit"
)

var _ audit.Publisher = (*Producer)(nil)

// Producer escribe mensajes JSON. La clave es el ID de la entidad: el balanceo por hash
// mantiene en una misma partición todos los eventos de una entidad.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer construye el productor.
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	return &Producer{writer: writer}
}

// Publish serializa event y lo escribe con la clave dada.
func (p *Producer) Publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	})
}

// Close vacía el buffer y cierra el writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
