package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

const (
	// ExchangeEvents — topic-обменник событий flows.
	// Ключ маршрутизации совпадает с именем события: "ingest.initial_sync.end".
	ExchangeEvents Exchange = "flowctl.events"

	// QueueEventsWatch — очередь для команды events watch.
	QueueEventsWatch Queue = "flowctl.events.watch"

	// RoutingKeyAll — все события всех flows.
	RoutingKeyAll RoutingKey = "#"
)

// FlowRoutingKey возвращает шаблон для событий одного flow: "ingest.#".
func FlowRoutingKey(flow string) RoutingKey {
	return RoutingKey(flow + ".#")
}

// SetupTopology объявляет обменник событий и очередь наблюдения.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.ExchangeDeclare(
			string(ExchangeEvents), // name
			amqp.ExchangeTopic,     // type
			true,                   // durable
			false,                  // auto-deleted
			false,                  // internal
			false,                  // no-wait
			nil,                    // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ExchangeEvents, err)
		}

		_, err = ch.QueueDeclare(
			string(QueueEventsWatch), // name
			true,                     // durable
			false,                    // delete when unused
			false,                    // exclusive
			false,                    // no-wait
			nil,                      // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", QueueEventsWatch, err)
		}

		return BindQueue(ch, QueueEventsWatch, RoutingKeyAll)
	})
}

// SetupFlowQueue объявляет временную очередь для событий одного flow.
// Очередь удаляется брокером, когда отключается последний consumer.
func SetupFlowQueue(ctx context.Context, conn *Connection, flow string) (Queue, error) {
	queue := FlowQueue(flow)

	err := conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		_, err := ch.QueueDeclare(
			string(queue), // name
			false,         // durable
			true,          // delete when unused
			false,         // exclusive
			false,         // no-wait
			nil,           // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}
		return BindQueue(ch, queue, FlowRoutingKey(flow))
	})
	if err != nil {
		return "", err
	}
	return queue, nil
}

// FlowQueue возвращает имя очереди наблюдения за одним flow.
func FlowQueue(flow string) Queue {
	return QueueEventsWatch + Queue("."+flow)
}

// BindQueue привязывает очередь к обменнику событий.
func BindQueue(ch *amqp.Channel, queue Queue, key RoutingKey) error {
	err := ch.QueueBind(
		string(queue),          // queue name
		string(key),            // routing key
		string(ExchangeEvents), // exchange
		false,                  // no-wait
		nil,                    // arguments
	)
	if err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", queue, ExchangeEvents, err)
	}
	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  flowctl RabbitMQ topology:

    flowctl.events (topic)
    └── flowctl.events.watch [routing: #]
            Consumer: flowctl events watch
    └── flowctl.events.watch.{flow} [routing: {flow}.#, auto-delete]
            Consumer: flowctl events watch --flow {flow}
  `
}
