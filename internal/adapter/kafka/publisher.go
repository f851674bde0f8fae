package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/crime-stats-service/internal/config"
	"github.com/couchcryptid/crime-stats-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Record is the published form of one cleaned incident.
type Record struct {
	Location string        `json:"location"`
	Category string        `json:"category"`
	Lat      float64       `json:"lat"`
	Lng      float64       `json:"lng"`
	Period   domain.Period `json:"month"`
}

// Publisher produces cleaned incident records to a Kafka topic.
// It implements ingest.RecordPublisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured records topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaRecordsTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish writes one location's records in a single WriteMessages call.
// Messages are keyed by location so a location's records share a partition.
func (p *Publisher) Publish(ctx context.Context, location string, records []domain.IncidentRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(location, records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d records for %s: %w", len(msgs), location, err)
	}
	p.logger.Debug("records published", "location", location, "count", len(msgs))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals an incident into a Kafka message.
func serializeToMessage(location string, rec domain.IncidentRecord) (kafkago.Message, error) {
	data, err := json.Marshal(Record{
		Location: location,
		Category: rec.Category,
		Lat:      rec.Lat,
		Lng:      rec.Lng,
		Period:   rec.Period,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize incident record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(location),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "category", Value: []byte(rec.Category)},
			{Key: "month", Value: []byte(rec.Period)},
		},
	}, nil
}
