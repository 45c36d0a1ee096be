package effects

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/shaiso/Botflow/internal/domain"
)

// Registry — реестр эффектов по типу узла. Потокобезопасен.
type Registry struct {
	mu      sync.RWMutex
	effects map[domain.NodeType]Effector
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		effects: make(map[domain.NodeType]Effector),
	}
}

// DefaultRegistry создаёт реестр со стандартными эффектами.
//
// Адреса внешних шлюзов (email, календарь) берутся из конфигурации
// процесса; пустой адрес означает ErrNotConfigured при выполнении.
func DefaultRegistry(cfg GatewayConfig) *Registry {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	r := NewRegistry()
	r.Register(NewAPICallEffect(client))
	r.Register(NewWebhookEffect(client))
	r.Register(NewEmailEffect(cfg.EmailGatewayURL, client))
	r.Register(NewAppointmentEffect(cfg.CalendarAPIURL, client))
	return r
}

// GatewayConfig — адреса внешних коллабораторов эффектов.
type GatewayConfig struct {
	// EmailGatewayURL — HTTP шлюз отправки почты.
	EmailGatewayURL string

	// CalendarAPIURL — сервис бронирования слотов.
	CalendarAPIURL string

	// Client — общий HTTP клиент (nil — клиент с дефолтным таймаутом).
	Client *http.Client
}

// Register регистрирует эффект. Существующий перезаписывается.
func (r *Registry) Register(e Effector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.effects[e.Type()] = e
}

// Get возвращает эффект для типа узла.
func (r *Registry) Get(t domain.NodeType) (Effector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.effects[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEffectNotFound, t)
	}
	return e, nil
}

// Has проверяет, зарегистрирован ли эффект.
func (r *Registry) Has(t domain.NodeType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.effects[t]
	return ok
}

// Types возвращает список зарегистрированных типов.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.effects))
	for t := range r.effects {
		types = append(types, string(t))
	}
	sort.Strings(types)
	return types
}
