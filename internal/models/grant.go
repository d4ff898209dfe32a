package models

import "time"

// CapabilityGrant представляет персональную запись включения агента для
// пользователя. Создаётся лениво при первом обращении к агенту, доступному
// в тарифе пользователя, и никогда не удаляется при понижении тарифа:
// доступ в этом случае закрывается проверкой тарифа, а не удалением записи.
type CapabilityGrant struct {
	ID        int            // Идентификатор записи
	UserUID   string         // Владелец гранта
	AgentID   string         // Идентификатор агента, например "stockfinder"
	IsEnabled bool           // Включён ли агент пользователем
	Settings  map[string]any // Произвольные пользовательские настройки агента
	CreatedAt time.Time      // Дата создания записи
}
