// Package events emits engine lifecycle events to kafka for downstream
// consumers (notification fanout, analytics). Publishing is
// best-effort: a failed publish is logged, never surfaced to clients.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	EventChatCreated    = "chat.created"
	EventMessageSent    = "message.sent"
	EventMessageDeleted = "message.deleted"
)

type Envelope struct {
	Event     string      `json:"event"`
	ChatID    string      `json:"chatId"`
	Timestamp int64       `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

type Publisher struct {
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

func NewPublisher(brokers []string, topic string, log *zap.SugaredLogger) *Publisher {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &Publisher{writer: w, log: log}
}

func (p *Publisher) Publish(ctx context.Context, event, chatID string, payload interface{}) {
	if p == nil || p.writer == nil {
		return
	}
	env := Envelope{
		Event:     event,
		ChatID:    chatID,
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	}
	b, err := json.Marshal(env)
	if err != nil {
		p.log.Errorw("event marshal failed", "event", event, "err", err)
		return
	}
	msg := kafka.Message{
		Key:   []byte(chatID),
		Value: b,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Errorw("event publish failed", "event", event, "chat", chatID, "err", err)
	}
}

func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
