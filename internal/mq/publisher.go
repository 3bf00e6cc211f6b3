package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// MessageTypeFlowEvent — событие жизненного цикла flow.
const MessageTypeFlowEvent MessageType = "flow.event"

// Message — конверт сообщения.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	Type MessageType `json:"type"`

	// Payload — полезная нагрузка, зависит от Type.
	Payload json.RawMessage `json:"payload"`

	Timestamp time.Time `json:"timestamp"`
}

// FlowEventPayload — payload события flow.
type FlowEventPayload struct {
	RunID      uuid.UUID `json:"run_id"`
	Project    string    `json:"project"`
	Flow       string    `json:"flow"`
	Event      string    `json:"event"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewMessage упаковывает payload в конверт.
func NewMessage(msgType MessageType, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   data,
		Timestamp: time.Now(),
	}, nil
}

// Publisher публикует события в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в обменник событий.
func (p *Publisher) Publish(ctx context.Context, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(ExchangeEvents),
			string(routingKey),
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish %s: %w", routingKey, err)
		}

		p.logger.Debug("published message",
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishFlowEvent публикует записанное событие flow.
// Ключ маршрутизации — имя события.
func (p *Publisher) PublishFlowEvent(ctx context.Context, payload FlowEventPayload) error {
	msg, err := NewMessage(MessageTypeFlowEvent, payload)
	if err != nil {
		return err
	}
	return p.Publish(ctx, RoutingKey(payload.Event), msg)
}
