// Package cli реализует инструмент командной строки Botflow.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Botflow API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для управления ботами, сессиями и аналитикой.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Botflow API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	bots, err := client.ListBots()
//
// ## Output
//
// Форматирование вывода сущностей платформы: методы Bots, Sessions,
// Interactions, NodeStats и т.д. знают колонки своей сущности.
// Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: botflow bot list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - bot: list, show, enable, disable
//   - session: list, show, log, stop
//   - stats: completion, dropoffs, engagement, daily
//   - graph: validate
//
// Каждая группа создаётся через фабричную функцию (NewBotCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
