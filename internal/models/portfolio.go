package models

import "time"

// Portfolio представляет сохранённый инвестиционный портфель пользователя.
// Позиции хранятся как JSON-документ и не нормализуются.
type Portfolio struct {
	ID          int              // Идентификатор портфеля
	UserUID     string           // Владелец портфеля
	Name        string           // Название
	Description string           // Описание
	Positions   []map[string]any // Позиции портфеля
	IsPublic    bool             // Доступен ли портфель публично
	CreatedAt   time.Time        // Дата создания
	UpdatedAt   time.Time        // Дата последнего изменения
}

// AnalysisRecord представляет сохранённый результат анализа портфеля агентом.
type AnalysisRecord struct {
	ID         int            // Идентификатор результата
	UserUID    string         // Владелец результата
	AgentID    string         // Агент, выполнивший анализ
	ResultType string         // Вид анализа
	InputData  map[string]any // Входные данные запроса
	ResultData map[string]any // Результат анализа
	IsSaved    bool           // Сохранён ли результат пользователем
	Name       string         // Пользовательское имя результата
	CreatedAt  time.Time      // Дата выполнения
}
