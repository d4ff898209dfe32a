// Package models содержит доменные модели маркетплейса агентов:
// пользователей, подписки, гранты на возможности и записи использования.
// Структуры используются в бизнес‑логике и при работе с хранилищем.
package models

import "time"

// User представляет зарегистрированного пользователя системы.
type User struct {
	UID          string    // Уникальный идентификатор пользователя
	Email        string    // Электронная почта
	Username     string    // Имя пользователя (уникальное)
	PasswordHash string    // Хэш пароля пользователя
	Role         string    // Роль пользователя, admin или user
	IsActive     bool      // Признак активной учётной записи
	CreatedAt    time.Time // Дата создания учётной записи
}
