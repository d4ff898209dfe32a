package models

import "time"

// UsageRecord агрегирует использование агента по календарным месяцам.
// Запись уникальна по (грант, подписка, месяц, год); инкремент выполняется
// атомарным upsert, а не проверкой с последующей вставкой.
type UsageRecord struct {
	ID             int       // Идентификатор записи
	UserAgentID    int       // Грант, к которому относится использование
	SubscriptionID int       // Подписка, в рамках которой шли запросы
	RequestCount   int       // Количество запросов за месяц
	TokenCount     int       // Оценка потреблённых токенов за месяц
	LastUsed       time.Time // Время последнего запроса
	Month          int       // Календарный месяц, 1-12
	Year           int       // Календарный год
}

// MonthlyUsage содержит строку помесячной статистики по одному агенту.
type MonthlyUsage struct {
	AgentID  string    `json:"agent_id"`
	Month    int       `json:"month"`
	Year     int       `json:"year"`
	Requests int       `json:"requests"`
	Tokens   int       `json:"tokens"`
	LastUsed time.Time `json:"last_used"`
}

// UsageStats содержит сводную статистику использования агента пользователем.
type UsageStats struct {
	AgentID       string         `json:"agent_id"`
	TotalRequests int            `json:"total_requests"`
	TotalTokens   int            `json:"total_tokens"`
	Monthly       []MonthlyUsage `json:"monthly_usage"`
}
