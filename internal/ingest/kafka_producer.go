// Package ingest streams driver location fixes to Kafka for downstream
// consumers (trip replay, billing audit). The dispatch path never depends on
// a publish succeeding.
package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/noachFrank/CarServiceServer/internal/models"
)

// LocationPublisher writes location updates to a Kafka topic, keyed by
// driver id so per-driver ordering is preserved.
type LocationPublisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewLocationPublisher(brokers []string, topic string, logger *slog.Logger) *LocationPublisher {
	return &LocationPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
		logger: logger,
	}
}

// Publish writes one location fix. Errors are returned for the caller to
// log; they never propagate to the client path.
func (p *LocationPublisher) Publish(ctx context.Context, loc *models.DriverLocation) error {
	payload, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(loc.DriverID),
		Value: payload,
	})
}

func (p *LocationPublisher) Close() error {
	return p.writer.Close()
}
