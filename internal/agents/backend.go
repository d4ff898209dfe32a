// Package agents реализует статический реестр бэкендов агентов.
// Набор агентов закрыт и известен на этапе компиляции: идентификатор агента
// сопоставляется функции-конструктору, экземпляры создаются лениво и ровно
// один раз на процесс.
package agents

import (
	"context"
	"encoding/json"
)

// Result — структурированный результат вызова агента.
type Result struct {
	AgentID string         `json:"agent_id"`
	Data    map[string]any `json:"result"`
}

// Backend описывает единый контракт бэкенда агента: типизированный вход,
// структурированный результат или ошибка.
type Backend interface {
	ID() string
	Name() string
	Description() string
	Invoke(ctx context.Context, input map[string]any) (*Result, error)
}

// Constructor создаёт экземпляр бэкенда агента.
type Constructor func() Backend

// EstimateTokens оценивает стоимость результата в токенах по размеру
// сериализованного ответа. Эвристика: четыре байта на токен.
func EstimateTokens(res *Result) int {
	if res == nil {
		return 0
	}
	body, err := json.Marshal(res.Data)
	if err != nil {
		return 0
	}
	return len(body) / 4
}
