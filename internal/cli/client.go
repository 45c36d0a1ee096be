package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// BotResponse — бот из API.
type BotResponse struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Channel         string          `json:"channel"`
	TriggerKeywords []string        `json:"trigger_keywords,omitempty"`
	IsActive        bool            `json:"is_active"`
	Graph           json.RawMessage `json:"graph,omitempty"`
	CreatedAt       string          `json:"created_at"`
	UpdatedAt       string          `json:"updated_at"`
}

// SessionResponse — сессия из API.
type SessionResponse struct {
	ID             string            `json:"id"`
	BotID          string            `json:"bot_id"`
	UserID         string            `json:"user_id"`
	Channel        string            `json:"channel,omitempty"`
	Status         string            `json:"status"`
	CurrentNodeID  string            `json:"current_node_id"`
	Variables      map[string]string `json:"variables,omitempty"`
	TriggerKeyword string            `json:"trigger_keyword,omitempty"`
	AwaitingInput  bool              `json:"awaiting_input,omitempty"`
	WakeAt         string            `json:"wake_at,omitempty"`
	StartedAt      string            `json:"started_at"`
	EndedAt        string            `json:"ended_at,omitempty"`
	LastActivityAt string            `json:"last_activity_at"`
}

// InteractionResponse — запись журнала из API.
type InteractionResponse struct {
	ID           string `json:"id"`
	SessionID    string `json:"session_id"`
	NodeID       string `json:"node_id"`
	NodeType     string `json:"node_type"`
	NodeLabel    string `json:"node_label,omitempty"`
	UserResponse string `json:"user_response,omitempty"`
	IsDropOff    bool   `json:"is_drop_off"`
	InteractedAt string `json:"interacted_at"`
}

// NodeStatResponse — статистика узла из API.
type NodeStatResponse struct {
	NodeID    string `json:"node_id"`
	NodeLabel string `json:"node_label"`
	NodeType  string `json:"node_type"`
	Count     int    `json:"count"`
}

// DayStatResponse — статистика дня из API.
type DayStatResponse struct {
	Day       string `json:"day"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Dropped   int    `json:"dropped"`
}

// CompletionResponse — completion rate из API.
type CompletionResponse struct {
	BotID          string  `json:"bot_id"`
	CompletionRate float64 `json:"completion_rate"`
}

// ValidateGraphResponse — итог валидации графа из API.
type ValidateGraphResponse struct {
	Valid bool   `json:"valid"`
	Nodes int    `json:"nodes,omitempty"`
	Error string `json:"error,omitempty"`
}

// --- Request types ---

// SetEnabledRequest — включение/выключение бота.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// ListSessionsOpts — параметры фильтрации сессий.
type ListSessionsOpts struct {
	BotID  string
	Status string
	Limit  int
}

// StatsOpts — параметры запроса статистики.
type StatsOpts struct {
	From string
	To   string
	Top  int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Botflow API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Bots ---

// ListBots возвращает всех ботов.
func (c *Client) ListBots() ([]BotResponse, error) {
	var bots []BotResponse
	err := c.list("/api/v1/bots", nil, &bots)
	return bots, err
}

// GetBot возвращает бота по ID.
func (c *Client) GetBot(id string) (*BotResponse, error) {
	var bot BotResponse
	err := c.get("/api/v1/bots/"+id, &bot)
	return &bot, err
}

// SetBotEnabled включает или выключает бота.
func (c *Client) SetBotEnabled(id string, enabled bool) (*BotResponse, error) {
	var bot BotResponse
	err := c.put("/api/v1/bots/"+id+"/enabled", SetEnabledRequest{Enabled: enabled}, &bot)
	return &bot, err
}

// --- Sessions ---

// ListSessions возвращает сессии с фильтрацией.
func (c *Client) ListSessions(opts ListSessionsOpts) ([]SessionResponse, error) {
	params := url.Values{}
	if opts.BotID != "" {
		params.Set("bot_id", opts.BotID)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var sessions []SessionResponse
	err := c.list("/api/v1/sessions", params, &sessions)
	return sessions, err
}

// GetSession возвращает сессию по ID.
func (c *Client) GetSession(id string) (*SessionResponse, error) {
	var sess SessionResponse
	err := c.get("/api/v1/sessions/"+id, &sess)
	return &sess, err
}

// ListInteractions возвращает журнал сессии.
func (c *Client) ListInteractions(sessionID string) ([]InteractionResponse, error) {
	var ins []InteractionResponse
	err := c.list("/api/v1/sessions/"+sessionID+"/interactions", nil, &ins)
	return ins, err
}

// StopSession принудительно закрывает сессию.
func (c *Client) StopSession(id string) (*SessionResponse, error) {
	var sess SessionResponse
	err := c.post("/api/v1/sessions/"+id+"/stop", nil, &sess)
	return &sess, err
}

// --- Analytics ---

// GetCompletionRate возвращает completion rate бота.
func (c *Client) GetCompletionRate(botID string, opts StatsOpts) (*CompletionResponse, error) {
	var resp CompletionResponse
	err := c.get("/api/v1/bots/"+botID+"/analytics/completion"+statsQuery(opts), &resp)
	return &resp, err
}

// GetDropOffPoints возвращает точки обрыва бота.
func (c *Client) GetDropOffPoints(botID string, opts StatsOpts) ([]NodeStatResponse, error) {
	var stats []NodeStatResponse
	err := c.list("/api/v1/bots/"+botID+"/analytics/dropoffs", statsParams(opts), &stats)
	return stats, err
}

// GetNodeEngagement возвращает трафик через узлы бота.
func (c *Client) GetNodeEngagement(botID string, opts StatsOpts) ([]NodeStatResponse, error) {
	var stats []NodeStatResponse
	err := c.list("/api/v1/bots/"+botID+"/analytics/engagement", statsParams(opts), &stats)
	return stats, err
}

// GetSessionsByDay возвращает сессии бота по дням.
func (c *Client) GetSessionsByDay(botID string, opts StatsOpts) ([]DayStatResponse, error) {
	var days []DayStatResponse
	err := c.list("/api/v1/bots/"+botID+"/analytics/daily", statsParams(opts), &days)
	return days, err
}

// --- Graphs ---

// ValidateGraph проверяет граф без сохранения.
func (c *Client) ValidateGraph(graph json.RawMessage) (*ValidateGraphResponse, error) {
	body := map[string]json.RawMessage{"graph": graph}
	var resp ValidateGraphResponse
	err := c.post("/api/v1/graphs/validate", body, &resp)
	return &resp, err
}

func statsParams(opts StatsOpts) url.Values {
	params := url.Values{}
	if opts.From != "" {
		params.Set("from", opts.From)
	}
	if opts.To != "" {
		params.Set("to", opts.To)
	}
	if opts.Top > 0 {
		params.Set("top", fmt.Sprintf("%d", opts.Top))
	}
	return params
}

func statsQuery(opts StatsOpts) string {
	params := statsParams(opts)
	if len(params) == 0 {
		return ""
	}
	return "?" + params.Encode()
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
