package effects

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shaiso/Botflow/internal/domain"
)

// Ключи параметров appointment эффекта.
const (
	ParamCalendarType = "calendar_type"
	ParamDuration     = "duration"
	ParamBuffer       = "buffer"
	ParamUserID       = "user_id"
)

// AppointmentEffect — эффект узла appointment.
//
// Пробует забронировать слот через календарный сервис. Результат
// определяет ветку продолжения: booked либо cancelled.
type AppointmentEffect struct {
	apiURL string
	client *http.Client
}

// NewAppointmentEffect создаёт новый AppointmentEffect.
func NewAppointmentEffect(apiURL string, client *http.Client) *AppointmentEffect {
	return &AppointmentEffect{apiURL: apiURL, client: client}
}

// Type возвращает тип узла.
func (e *AppointmentEffect) Type() domain.NodeType {
	return domain.NodeAppointment
}

// bookingPayload — тело запроса к календарному сервису.
type bookingPayload struct {
	CalendarType string `json:"calendar_type,omitempty"`
	Duration     string `json:"duration,omitempty"`
	Buffer       string `json:"buffer,omitempty"`
	UserID       string `json:"user_id,omitempty"`
	SessionID    string `json:"session_id"`
}

// Execute пытается забронировать слот.
func (e *AppointmentEffect) Execute(ctx context.Context, req *Request) (*Response, error) {
	if e.apiURL == "" {
		return nil, fmt.Errorf("%w: calendar API URL is empty", ErrNotConfigured)
	}

	payload, err := json.Marshal(bookingPayload{
		CalendarType: req.Param(ParamCalendarType),
		Duration:     req.Param(ParamDuration),
		Buffer:       req.Param(ParamBuffer),
		UserID:       req.Param(ParamUserID),
		SessionID:    req.SessionID.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal booking payload: %w", err)
	}

	status, body, err := doCall(ctx, e.client, http.MethodPost, e.apiURL, string(payload), nil, req.EffectTimeout())
	if err != nil {
		return nil, err
	}

	// Календарь отвечает {"booked": true|false}. Нечитаемый ответ
	// или отказ (4xx) трактуются как несостоявшаяся запись.
	handle := domain.HandleCancelled
	if status < http.StatusBadRequest {
		if v, ok := decodeJSONField(body, "booked"); ok {
			if booked, ok := v.(bool); ok && booked {
				handle = domain.HandleBooked
			}
		}
	}

	return &Response{Handle: handle}, nil
}
