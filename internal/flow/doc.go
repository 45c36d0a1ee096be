// Package flow содержит модель графа диалога.
//
// Включает:
//   - parser.go   — парсинг графа {nodes, edges} из JSON редактора
//   - graph.go    — индексы узлов и рёбер, ResolveNext по handle
//   - validate.go — валидация структуры и атрибутов узлов
//
// Граф иммутабелен после построения: сессия получает снимок при
// создании, правки живого графа идущих сессий не касаются.
package flow
