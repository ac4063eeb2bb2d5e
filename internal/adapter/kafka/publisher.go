// Package kafka publishes assessment audit events to a Kafka topic for
// downstream consumers (dashboards, alert history).
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/wayrafrost/frost-alert-service/internal/domain"
	"github.com/wayrafrost/frost-alert-service/internal/observability"
)

// AlertEvent is the audit record published after each completed assessment.
type AlertEvent struct {
	EventID    string                    `json:"event_id"`
	RequestID  string                    `json:"request_id"`
	OccurredAt time.Time                 `json:"occurred_at"`
	Location   domain.Location           `json:"location"`
	RiskClass  domain.RiskClass          `json:"risk_class"`
	Assessment domain.CombinedAssessment `json:"assessment"`
	AlertSent  bool                      `json:"alert_sent"`
	MessageSID string                    `json:"message_sid,omitempty"`
}

// Publisher produces alert events to the audit topic.
// It implements predictor.AlertPublisher.
type Publisher struct {
	writer  *kafkago.Writer
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewPublisher creates a Kafka producer for the audit topic.
func NewPublisher(brokers []string, topic string, metrics *observability.Metrics, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, clock: clockwork.NewRealClock(), metrics: metrics, logger: logger}
}

// SetClock overrides the event timestamp clock. Tests only.
func (p *Publisher) SetClock(clock clockwork.Clock) {
	p.clock = clock
}

// PublishAssessment serializes and publishes the audit event for a completed
// assessment. Publish failures are surfaced but never invalidate the
// assessment they trail.
func (p *Publisher) PublishAssessment(ctx context.Context, outcome domain.PredictionOutcome) error {
	event := newAlertEvent(outcome, p.clock.Now())
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish alert event: %w", err)
	}
	p.metrics.AlertsPublished.Inc()
	p.logger.Debug("alert event published", "event_id", event.EventID, "risk_class", event.RiskClass)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// newAlertEvent flattens a prediction outcome into the audit record.
func newAlertEvent(outcome domain.PredictionOutcome, now time.Time) AlertEvent {
	event := AlertEvent{
		EventID:    uuid.NewString(),
		RequestID:  outcome.RequestID,
		OccurredAt: now,
		Location:   outcome.Location,
	}
	if outcome.Assessment != nil {
		event.RiskClass = outcome.Assessment.RiskClass
		event.Assessment = *outcome.Assessment
	}
	if outcome.Alert != nil {
		event.AlertSent = outcome.Alert.Sent
		if outcome.Alert.Receipt != nil {
			event.MessageSID = outcome.Alert.Receipt.MessageSID
		}
	}
	return event
}

// serializeToMessage marshals an AlertEvent into a Kafka message. The
// location key keeps events for one place in one partition.
func serializeToMessage(event AlertEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(domain.LocationKey(event.Location.Latitude, event.Location.Longitude)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "risk_class", Value: []byte(event.RiskClass.String())},
			{Key: "occurred_at", Value: []byte(event.OccurredAt.Format(time.RFC3339))},
		},
	}, nil
}
