// Package kafka publishes committed escrow events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/event"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/platform/timeouts"
	"github.com/segmentio/kafka-go"
)

// DefaultTopic receives every escrow event.
const DefaultTopic = "escrow-events"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher is an event.Sink that writes stamped events to Kafka, keyed
// by instance so each campaign's events stay ordered within a partition.
type Publisher struct {
	writer messageWriter
	topic  string
}

// Config configures a Publisher.
type Config struct {
	Brokers []string
	Topic   string
	// OnError observes batches the broker rejected. Writes are async so
	// operations never wait on the broker.
	OnError func(count int, err error)
}

// NewPublisher builds a publisher for the given brokers.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.Hash{},
		Async:        true,
	}
	if cfg.OnError != nil {
		writer.Completion = func(messages []kafka.Message, err error) {
			if err != nil {
				cfg.OnError(len(messages), err)
			}
		}
	}
	return newPublisher(writer, cfg.Topic), nil
}

func newPublisher(writer messageWriter, topic string) *Publisher {
	return &Publisher{writer: writer, topic: topic}
}

// envelope is the wire form of a published event.
type envelope struct {
	Seq        uint64          `json:"seq"`
	InstanceID string          `json:"instance_id"`
	Type       event.Type      `json:"type"`
	Timestamp  time.Time       `json:"timestamp"`
	Actor      string          `json:"actor"`
	Payload    json.RawMessage `json:"payload"`
	Hash       string          `json:"hash"`
	PrevHash   string          `json:"prev_hash"`
}

// Message converts a stamped event to a Kafka message.
func Message(evt event.Event) (kafka.Message, error) {
	payload := json.RawMessage(evt.PayloadJSON)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	value, err := json.Marshal(envelope{
		Seq:        evt.Seq,
		InstanceID: evt.InstanceID,
		Type:       evt.Type,
		Timestamp:  evt.Timestamp.UTC(),
		Actor:      evt.Actor,
		Payload:    payload,
		Hash:       evt.Hash,
		PrevHash:   evt.PrevHash,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode event %d: %w", evt.Seq, err)
	}
	return kafka.Message{
		Key:   []byte(evt.InstanceID),
		Value: value,
		Time:  evt.Timestamp.UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
			{Key: "seq", Value: []byte(strconv.FormatUint(evt.Seq, 10))},
		},
	}, nil
}

// Record implements event.Sink.
func (p *Publisher) Record(ctx context.Context, events ...event.Event) error {
	if len(events) == 0 {
		return nil
	}
	messages := make([]kafka.Message, 0, len(events))
	for _, evt := range events {
		msg, err := Message(evt)
		if err != nil {
			return err
		}
		messages = append(messages, msg)
	}
	writeCtx, cancel := context.WithTimeout(ctx, timeouts.Publish)
	defer cancel()
	if err := p.writer.WriteMessages(writeCtx, messages...); err != nil {
		return fmt.Errorf("publish %d events to %s: %w", len(messages), p.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
