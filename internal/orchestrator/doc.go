// Package orchestrator управляет выполнением проектов.
//
// Orchestrator отвечает за:
//   - Проверку графа зависимостей перед запуском
//   - Раскладку flows по очередям глубины (RunState)
//   - Запись событий и продвижение ожидающих flows
//   - Отправку готовых flows в ограниченный пул воркеров
//   - Финализацию run (SUCCEEDED/FAILED) и запись истории
//
// ProjectScheduler — это "мозг" одного run: один цикл диспетчеризации
// и Parallelism воркеров, которые сообщают события через Emit.
package orchestrator
