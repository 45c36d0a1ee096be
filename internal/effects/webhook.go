package effects

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shaiso/Botflow/internal/domain"
)

// Ключи параметров webhook эффекта.
const (
	// ParamCorrelationID — идентификатор, по которому внешняя система
	// адресует ответное событие (для waitForResponse).
	ParamCorrelationID = "correlation_id"
)

// CorrelationHeader — заголовок исходящего webhook с correlation id.
const CorrelationHeader = "X-Botflow-Correlation-Id"

// WebhookEffect — эффект узла webhookTrigger.
//
// Выполняет исходящий вызов. Если узел объявил waitForResponse,
// движок кладёт correlation id в параметры — внешняя система обязана
// вернуть его во входящем событии-ответе.
type WebhookEffect struct {
	client *http.Client
}

// NewWebhookEffect создаёт новый WebhookEffect.
func NewWebhookEffect(client *http.Client) *WebhookEffect {
	return &WebhookEffect{client: client}
}

// Type возвращает тип узла.
func (e *WebhookEffect) Type() domain.NodeType {
	return domain.NodeWebhook
}

// Execute выполняет исходящий webhook.
func (e *WebhookEffect) Execute(ctx context.Context, req *Request) (*Response, error) {
	url := req.Param(ParamURL)
	if url == "" {
		return nil, fmt.Errorf("%w: webhookTrigger: url is required", ErrInvalidParams)
	}

	method := strings.ToUpper(req.Param(ParamMethod))
	if method == "" {
		method = http.MethodPost
	}

	var headers map[string]string
	if corr := req.Param(ParamCorrelationID); corr != "" {
		headers = map[string]string{CorrelationHeader: corr}
	}

	status, _, err := doCall(ctx, e.client, method, url, req.Param(ParamBody), headers, req.EffectTimeout())
	if err != nil {
		return nil, err
	}

	return &Response{
		Handle: domain.HandleDefault,
		Values: map[string]string{
			ValueStatusCode: strconv.Itoa(status),
		},
	}, nil
}
