package domain

// NodeType — тип узла в графе диалога.
type NodeType string

// Типы узлов.
const (
	// NodeStart — точка входа в граф. Ровно один на граф.
	NodeStart NodeType = "start"

	// NodeMessage — отправка текстового сообщения, автопереход дальше.
	NodeMessage NodeType = "message"

	// NodeQuickReply — вопрос с кнопками, ожидание ответа пользователя.
	NodeQuickReply NodeType = "quickReply"

	// NodeCondition — ветвление по значению переменной сессии.
	NodeCondition NodeType = "condition"

	// NodeAPICall — HTTP вызов внешнего API с сохранением результата.
	NodeAPICall NodeType = "apiCall"

	// NodeDelay — приостановка сессии на заданное время.
	NodeDelay NodeType = "delay"

	// NodeABTest — взвешенный случайный выбор варианта.
	NodeABTest NodeType = "abTest"

	// NodeHandoff — передача диалога живому оператору (терминальный).
	NodeHandoff NodeType = "handoff"

	// NodeAppointment — запись на приём через календарный сервис.
	NodeAppointment NodeType = "appointment"

	// NodeWebhook — исходящий webhook, опционально с ожиданием ответа.
	NodeWebhook NodeType = "webhookTrigger"

	// NodeEmail — отправка email, автопереход дальше.
	NodeEmail NodeType = "email"
)

// Handles — метки исходящих рёбер многовыходных узлов.
//
// Ребро без метки (пустой handle) — единственный выход узла.
const (
	// HandleDefault — единственный выход узла без ветвления.
	HandleDefault = ""

	// HandleTrue / HandleFalse — ветки condition.
	HandleTrue  = "true"
	HandleFalse = "false"

	// HandleBooked / HandleCancelled — ветки appointment.
	HandleBooked    = "booked"
	HandleCancelled = "cancelled"

	// HandleFallback — авторская ветка обработки ошибок внешних вызовов.
	HandleFallback = "fallback"
)

// Node — узел графа диалога.
type Node struct {
	// ID — уникальный идентификатор узла в рамках графа.
	ID string `json:"id"`

	// Type — тип узла.
	Type NodeType `json:"type"`

	// Label — человекочитаемое имя узла (для аналитики и редактора).
	Label string `json:"label,omitempty"`

	// Data — типизированные атрибуты узла. Конкретный тип
	// определяется полем Type (см. NodeData).
	Data NodeData `json:"data,omitempty"`
}

// Edge — направленное ребро графа.
type Edge struct {
	// Source — ID узла-источника.
	Source string `json:"source"`

	// Target — ID узла-приёмника.
	Target string `json:"target"`

	// SourceHandle — метка исходящей ветки узла-источника.
	// Пустая строка для узлов с единственным выходом.
	SourceHandle string `json:"sourceHandle,omitempty"`
}

// NodeData — атрибуты узла. По одному конкретному типу на тип узла;
// парсер графа выбирает тип по полю Node.Type.
type NodeData interface {
	// Kind возвращает тип узла, которому принадлежат атрибуты.
	Kind() NodeType
}

// MessageData — атрибуты узла message.
type MessageData struct {
	// Message — шаблон текста ({{var}} подставляется из переменных сессии).
	Message string `json:"message"`
}

// Button — кнопка быстрого ответа.
type Button struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// QuickReplyData — атрибуты узла quickReply.
type QuickReplyData struct {
	// Body — шаблон текста вопроса.
	Body string `json:"body"`

	// Buttons — кнопки ответа (не более трёх).
	Buttons []Button `json:"buttons"`
}

// Operator — оператор сравнения в condition.
type Operator string

// Операторы condition.
const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
)

// Valid проверяет, что оператор известен.
func (o Operator) Valid() bool {
	switch o {
	case OpEquals, OpNotEquals, OpContains, OpGreaterThan, OpLessThan:
		return true
	default:
		return false
	}
}

// ConditionData — атрибуты узла condition.
type ConditionData struct {
	// Variable — имя переменной сессии.
	Variable string `json:"variable"`

	// Operator — оператор сравнения.
	Operator Operator `json:"operator"`

	// Value — правый операнд сравнения.
	Value string `json:"value"`
}

// APICallData — атрибуты узла apiCall.
type APICallData struct {
	// Method — HTTP метод (по умолчанию GET).
	Method string `json:"method,omitempty"`

	// URL — адрес вызова (шаблон).
	URL string `json:"url"`

	// SaveAs — имя переменной сессии для тела ответа.
	SaveAs string `json:"saveAs,omitempty"`
}

// DelayUnit — единица измерения задержки.
type DelayUnit string

// Единицы задержки.
const (
	UnitSeconds DelayUnit = "seconds"
	UnitMinutes DelayUnit = "minutes"
	UnitHours   DelayUnit = "hours"
	UnitDays    DelayUnit = "days"
)

// Valid проверяет, что единица известна.
func (u DelayUnit) Valid() bool {
	switch u {
	case UnitSeconds, UnitMinutes, UnitHours, UnitDays:
		return true
	default:
		return false
	}
}

// DelayData — атрибуты узла delay.
type DelayData struct {
	// Duration — длительность в единицах Unit.
	Duration int `json:"duration"`

	// Unit — единица измерения.
	Unit DelayUnit `json:"unit"`
}

// Variant — вариант A/B теста.
type Variant struct {
	// Name — имя варианта. Совпадает с handle исходящего ребра.
	Name string `json:"name"`

	// Percentage — вес варианта. Сумма весов не обязана равняться 100,
	// движок нормализует по сумме объявленных весов.
	Percentage float64 `json:"percentage"`
}

// ABTestData — атрибуты узла abTest.
type ABTestData struct {
	Variants []Variant `json:"variants"`
}

// AssignTarget — политика назначения оператора при handoff.
type AssignTarget string

// Политики назначения handoff.
const (
	AssignAvailable AssignTarget = "available"
	AssignSpecific  AssignTarget = "specific"
	AssignQueue     AssignTarget = "queue"
)

// HandoffData — атрибуты узла handoff.
type HandoffData struct {
	// AssignTo — кому передать диалог.
	AssignTo AssignTarget `json:"assignTo,omitempty"`

	// Message — прощальное сообщение бота перед передачей (шаблон).
	Message string `json:"message,omitempty"`
}

// AppointmentData — атрибуты узла appointment.
type AppointmentData struct {
	// CalendarType — тип календаря ("google", "outlook", ...).
	CalendarType string `json:"calendarType,omitempty"`

	// Duration — длительность слота в минутах.
	Duration int `json:"duration,omitempty"`

	// Buffer — буфер между слотами в минутах.
	Buffer int `json:"buffer,omitempty"`
}

// WebhookData — атрибуты узла webhookTrigger.
type WebhookData struct {
	// WebhookURL — адрес исходящего вызова (шаблон).
	WebhookURL string `json:"webhookUrl"`

	// Method — HTTP метод (по умолчанию POST).
	Method string `json:"method,omitempty"`

	// WaitForResponse — приостановить сессию до ответного события.
	WaitForResponse bool `json:"waitForResponse,omitempty"`
}

// EmailData — атрибуты узла email.
type EmailData struct {
	// To — адрес получателя (шаблон).
	To string `json:"to"`

	// Subject — тема письма (шаблон).
	Subject string `json:"subject,omitempty"`

	// Body — текст письма (шаблон). Если пусто, используется Template.
	Body string `json:"body,omitempty"`

	// Template — имя серверного шаблона письма.
	Template string `json:"template,omitempty"`
}

func (MessageData) Kind() NodeType     { return NodeMessage }
func (QuickReplyData) Kind() NodeType  { return NodeQuickReply }
func (ConditionData) Kind() NodeType   { return NodeCondition }
func (APICallData) Kind() NodeType     { return NodeAPICall }
func (DelayData) Kind() NodeType       { return NodeDelay }
func (ABTestData) Kind() NodeType      { return NodeABTest }
func (HandoffData) Kind() NodeType     { return NodeHandoff }
func (AppointmentData) Kind() NodeType { return NodeAppointment }
func (WebhookData) Kind() NodeType     { return NodeWebhook }
func (EmailData) Kind() NodeType       { return NodeEmail }

// StartData — атрибуты узла start (пустые).
type StartData struct{}

func (StartData) Kind() NodeType { return NodeStart }
