package effects

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shaiso/Botflow/internal/domain"
)

// Ключи параметров email эффекта.
const (
	ParamTo        = "to"
	ParamSubject   = "subject"
	ParamEmailBody = "email_body"
	ParamTemplate  = "template"
)

// EmailEffect — эффект узла email.
//
// Платформа не говорит SMTP сама — письмо уходит через HTTP шлюз
// почтовой подсистемы (внешний коллаборатор).
type EmailEffect struct {
	gatewayURL string
	client     *http.Client
}

// NewEmailEffect создаёт новый EmailEffect.
func NewEmailEffect(gatewayURL string, client *http.Client) *EmailEffect {
	return &EmailEffect{gatewayURL: gatewayURL, client: client}
}

// Type возвращает тип узла.
func (e *EmailEffect) Type() domain.NodeType {
	return domain.NodeEmail
}

// emailPayload — тело запроса к почтовому шлюзу.
type emailPayload struct {
	To       string `json:"to"`
	Subject  string `json:"subject,omitempty"`
	Body     string `json:"body,omitempty"`
	Template string `json:"template,omitempty"`
}

// Execute отправляет письмо через шлюз.
func (e *EmailEffect) Execute(ctx context.Context, req *Request) (*Response, error) {
	if e.gatewayURL == "" {
		return nil, fmt.Errorf("%w: email gateway URL is empty", ErrNotConfigured)
	}

	to := req.Param(ParamTo)
	if to == "" {
		return nil, fmt.Errorf("%w: email: to is required", ErrInvalidParams)
	}

	payload, err := json.Marshal(emailPayload{
		To:       to,
		Subject:  req.Param(ParamSubject),
		Body:     req.Param(ParamEmailBody),
		Template: req.Param(ParamTemplate),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal email payload: %w", err)
	}

	_, _, err = doCall(ctx, e.client, http.MethodPost, e.gatewayURL, string(payload), nil, req.EffectTimeout())
	if err != nil {
		return nil, err
	}

	return &Response{Handle: domain.HandleDefault}, nil
}
