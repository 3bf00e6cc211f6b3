// Package mq публикует события flows в RabbitMQ и читает их обратно.
//
// Структура:
//   - connection.go — соединение с переподключением (cenkalti/backoff)
//   - topology.go   — обменник flowctl.events и очереди наблюдения
//   - publisher.go  — публикация событий (реализует orchestrator.EventPublisher)
//   - consumer.go   — потребление событий для events watch
//
// Каждое записанное событие публикуется один раз с ключом маршрутизации,
// равным имени события, поэтому подписчик может выбрать события одного
// flow шаблоном "ingest.#" или одной стадии шаблоном "*.initial_sync.*".
package mq
