package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
)

// Output — форматированный вывод сущностей платформы.
//
// Данные уходят в stdout таблицей или, с флагом --json, в JSON —
// сообщения Success/Error в stderr. Это позволяет использовать pipe:
// botflow session list --json | jq .
type Output struct {
	jsonMode bool
	w        io.Writer // stdout для данных
	errW     io.Writer // stderr для сообщений
}

// NewOutput создаёт Output. Если jsonMode=true, данные выводятся в JSON.
func NewOutput(jsonMode bool) *Output {
	return &Output{
		jsonMode: jsonMode,
		w:        os.Stdout,
		errW:     os.Stderr,
	}
}

// Bots выводит список ботов.
func (o *Output) Bots(bots []BotResponse) {
	rows := make([][]string, len(bots))
	for i := range bots {
		b := &bots[i]
		rows[i] = []string{
			b.ID,
			b.Name,
			b.Channel,
			strings.Join(b.TriggerKeywords, ","),
			strconv.FormatBool(b.IsActive),
		}
	}
	o.print([]string{"ID", "NAME", "CHANNEL", "KEYWORDS", "ACTIVE"}, rows, bots)
}

// Bot выводит карточку бота.
func (o *Output) Bot(b *BotResponse) {
	o.print(
		[]string{"ID", "NAME", "CHANNEL", "KEYWORDS", "ACTIVE", "UPDATED"},
		[][]string{{
			b.ID,
			b.Name,
			b.Channel,
			strings.Join(b.TriggerKeywords, ","),
			strconv.FormatBool(b.IsActive),
			b.UpdatedAt,
		}},
		b,
	)
}

// Sessions выводит список сессий.
func (o *Output) Sessions(sessions []SessionResponse) {
	rows := make([][]string, len(sessions))
	for i := range sessions {
		s := &sessions[i]
		rows[i] = []string{s.ID, s.BotID, s.UserID, s.Status, s.CurrentNodeID, s.StartedAt}
	}
	o.print([]string{"ID", "BOT_ID", "USER", "STATUS", "NODE", "STARTED"}, rows, sessions)
}

// Session выводит карточку сессии с маркерами приостановки.
func (o *Output) Session(s *SessionResponse) {
	o.print(
		[]string{"ID", "BOT_ID", "USER", "STATUS", "NODE", "AWAITING", "WAKE_AT", "STARTED", "ENDED"},
		[][]string{{
			s.ID,
			s.BotID,
			s.UserID,
			s.Status,
			s.CurrentNodeID,
			strconv.FormatBool(s.AwaitingInput),
			s.WakeAt,
			s.StartedAt,
			s.EndedAt,
		}},
		s,
	)
}

// Interactions выводит журнал посещений узлов сессии.
func (o *Output) Interactions(ins []InteractionResponse) {
	rows := make([][]string, len(ins))
	for i := range ins {
		in := &ins[i]
		rows[i] = []string{
			in.NodeID,
			in.NodeType,
			in.NodeLabel,
			in.UserResponse,
			strconv.FormatBool(in.IsDropOff),
			in.InteractedAt,
		}
	}
	o.print([]string{"NODE", "TYPE", "LABEL", "RESPONSE", "DROP_OFF", "AT"}, rows, ins)
}

// NodeStats выводит статистику узлов: точки обрыва или трафик.
func (o *Output) NodeStats(stats []NodeStatResponse) {
	rows := make([][]string, len(stats))
	for i, st := range stats {
		rows[i] = []string{st.NodeID, st.NodeLabel, st.NodeType, strconv.Itoa(st.Count)}
	}
	o.print([]string{"NODE", "LABEL", "TYPE", "COUNT"}, rows, stats)
}

// DayStats выводит сессии бота по дням.
func (o *Output) DayStats(days []DayStatResponse) {
	rows := make([][]string, len(days))
	for i, d := range days {
		rows[i] = []string{
			d.Day,
			strconv.Itoa(d.Total),
			strconv.Itoa(d.Completed),
			strconv.Itoa(d.Dropped),
		}
	}
	o.print([]string{"DAY", "TOTAL", "COMPLETED", "DROPPED"}, rows, days)
}

// Completion выводит completion rate бота.
func (o *Output) Completion(resp *CompletionResponse) {
	o.print(
		[]string{"BOT_ID", "COMPLETION_RATE"},
		[][]string{{resp.BotID, fmt.Sprintf("%.1f%%", resp.CompletionRate)}},
		resp,
	)
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, "Error: "+msg)
}

// print выводит данные: таблицу или JSON в зависимости от режима.
func (o *Output) print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.printJSON(jsonData)
		return
	}
	o.printTable(headers, rows)
}

// printTable выводит данные в виде таблицы через tabwriter.
func (o *Output) printTable(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	// Заголовки
	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	// Разделитель
	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	// Строки данных
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// printJSON выводит данные в формате JSON с отступами.
func (o *Output) printJSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
