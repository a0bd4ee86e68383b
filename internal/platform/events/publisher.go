// Package events publishes domain events after their transaction commits.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	TypeTeamMemberApproved  = "team.member_approved"
	TypeSubmissionFinalized = "submission.finalized"
	TypeScoreSubmitted      = "score.submitted"
	TypeTicketIssued        = "ticket.issued"
	TypePhaseChanged        = "phase.changed"
)

type Event struct {
	Type       string      `json:"type"`
	Key        string      `json:"-"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

func New(eventType, key string, payload interface{}) Event {
	return Event{Type: eventType, Key: key, OccurredAt: time.Now().UTC(), Payload: payload}
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaPublisher(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", evt.Type, err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.Key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(evt.Type)},
		},
	})
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// PublishAsync logs instead of returning errors; callers have already committed.
func PublishAsync(p Publisher, evt Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.Publish(ctx, evt); err != nil {
			log.Printf("WARN: failed to publish %s event for %s: %v", evt.Type, evt.Key, err)
		}
	}()
}
