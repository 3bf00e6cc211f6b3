// Package engine содержит граф зависимостей проекта.
//
// Включает:
//   - project.go — Project: добавление/удаление flows, проверка DAG (алгоритм Кана)
//   - events.go  — вывод событий жизненного цикла из опроса платформы
//   - parser.go  — парсинг документа проекта из JSON
//
// Engine отвечает за структуру проекта и правила событий, но не выполняет
// flows — это делает orchestrator.
package engine
