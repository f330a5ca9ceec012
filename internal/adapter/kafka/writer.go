package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/glacier-risk-map/internal/config"
	"github.com/couchcryptid/glacier-risk-map/internal/domain"
)

// DecisionWriter produces triage decision events to a Kafka topic.
// It implements triage.Publisher.
type DecisionWriter struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewDecisionWriter creates a Kafka producer for the configured decision topic.
func NewDecisionWriter(cfg *config.Config, logger *slog.Logger) *DecisionWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaDecisionTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &DecisionWriter{writer: w, logger: logger}
}

// Publish writes one decision. Messages are keyed by report id so every
// decision for a report lands on the same partition.
func (w *DecisionWriter) Publish(ctx context.Context, d domain.Decision) error {
	msg, err := serializeToMessage(d)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write decision event: %w", err)
	}
	w.logger.Debug("decision event written", "event_id", d.EventID, "lake_id", d.ReportID)
	return nil
}

func (w *DecisionWriter) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Decision into a Kafka message.
func serializeToMessage(d domain.Decision) (kafkago.Message, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize decision: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(d.ReportID.String()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "decision", Value: []byte(d.Decision)},
			{Key: "decided_at", Value: []byte(d.DecidedAt.Format(time.RFC3339))},
		},
	}, nil
}
