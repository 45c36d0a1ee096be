package effects

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Botflow/internal/domain"
)

// Ошибки эффектов.
var (
	// ErrEffectNotFound — для типа узла нет зарегистрированного эффекта.
	ErrEffectNotFound = errors.New("effect not found")

	// ErrNotConfigured — эффекту не задан адрес внешнего сервиса.
	ErrNotConfigured = errors.New("effect not configured")

	// ErrInvalidParams — эффекту не хватает обязательных параметров.
	ErrInvalidParams = errors.New("invalid effect params")

	// ErrCallFailed — внешний вызов завершился ошибкой.
	ErrCallFailed = errors.New("external call failed")
)

// defaultTimeout — ограничение на один внешний вызов.
const defaultTimeout = 10 * time.Second

// Effector — исполнитель побочного эффекта узла.
//
// Движок рендерит шаблонные поля узла переменными сессии и передаёт
// их в Params; эффект не знает про граф и переменные.
type Effector interface {
	// Type возвращает тип узла, который обслуживает эффект.
	Type() domain.NodeType

	// Execute выполняет эффект. Инфраструктурные ошибки (сеть, таймаут)
	// возвращаются через error и ретраятся движком.
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// Request — входные данные эффекта.
type Request struct {
	// SessionID — сессия-источник (для корреляции и аудита).
	SessionID uuid.UUID

	// Node — выполняемый узел.
	Node *domain.Node

	// Params — отрендеренные параметры эффекта.
	// Набор ключей зависит от типа узла.
	Params map[string]string

	// Timeout — ограничение на вызов. 0 — defaultTimeout.
	Timeout time.Duration
}

// Response — результат эффекта.
type Response struct {
	// Handle — ветка продолжения (HandleDefault, если узел без ветвления).
	Handle string

	// Values — значения для записи в переменные сессии.
	Values map[string]string
}

// Param возвращает параметр запроса или пустую строку.
func (r *Request) Param(key string) string {
	if r.Params == nil {
		return ""
	}
	return r.Params[key]
}

// EffectTimeout возвращает действующий таймаут запроса.
func (r *Request) EffectTimeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return defaultTimeout
}
