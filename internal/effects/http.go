package effects

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shaiso/Botflow/internal/domain"
)

// Ключи параметров HTTP эффектов.
const (
	ParamMethod = "method"
	ParamURL    = "url"
	ParamBody   = "body"
)

// Ключи результатов HTTP эффектов.
const (
	ValueBody       = "body"
	ValueStatusCode = "status_code"
)

// maxResponseBody — ограничение на размер читаемого тела ответа.
const maxResponseBody = 1 * 1024 * 1024 // 1 MB

// APICallEffect — эффект узла apiCall.
//
// Выполняет HTTP запрос к внешнему API. Тело ответа возвращается
// строкой в Values[ValueBody]; движок кладёт его в переменную saveAs.
type APICallEffect struct {
	client *http.Client
}

// NewAPICallEffect создаёт новый APICallEffect.
func NewAPICallEffect(client *http.Client) *APICallEffect {
	return &APICallEffect{client: client}
}

// Type возвращает тип узла.
func (e *APICallEffect) Type() domain.NodeType {
	return domain.NodeAPICall
}

// Execute выполняет HTTP запрос.
func (e *APICallEffect) Execute(ctx context.Context, req *Request) (*Response, error) {
	url := req.Param(ParamURL)
	if url == "" {
		return nil, fmt.Errorf("%w: apiCall: url is required", ErrInvalidParams)
	}

	method := strings.ToUpper(req.Param(ParamMethod))
	if method == "" {
		method = http.MethodGet
	}

	status, body, err := doCall(ctx, e.client, method, url, req.Param(ParamBody), nil, req.EffectTimeout())
	if err != nil {
		return nil, err
	}

	return &Response{
		Handle: domain.HandleDefault,
		Values: map[string]string{
			ValueBody:       body,
			ValueStatusCode: strconv.Itoa(status),
		},
	}, nil
}

// doCall выполняет один HTTP вызов с ограничением времени и размера ответа.
// Статусы 5xx считаются инфраструктурной ошибкой (ретраится движком).
func doCall(ctx context.Context, client *http.Client, method, url, body string, headers map[string]string, timeout time.Duration) (int, string, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(callCtx, method, url, reader)
	if err != nil {
		return 0, "", fmt.Errorf("build request: %w", err)
	}
	if body != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrCallFailed, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return resp.StatusCode, string(bodyBytes),
			fmt.Errorf("%w: HTTP %d", ErrCallFailed, resp.StatusCode)
	}

	return resp.StatusCode, string(bodyBytes), nil
}

// decodeJSONField достаёт поле верхнего уровня из JSON тела.
// Используется эффектами, которым нужен один флаг из ответа шлюза.
func decodeJSONField(body, field string) (any, bool) {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return nil, false
	}
	v, ok := parsed[field]
	return v, ok
}
