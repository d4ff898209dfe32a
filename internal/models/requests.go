package models

// RegisterRequest используется для приёма данных регистрации из JSON-запроса.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`       // Электронная почта
	Username string `json:"username" validate:"required,alphanum"` // Имя пользователя
	Password string `json:"password" validate:"required,min=8"`    // Пароль (>=8 символов)
}

// LoginRequest используется для приёма данных входа из JSON-запроса.
type LoginRequest struct {
	Username string `json:"username" validate:"required"` // Имя пользователя
	Password string `json:"password" validate:"required"` // Пароль
}

// CreateSubscriptionRequest используется для оформления платной подписки.
// PriceRef содержит внешний идентификатор цены у платёжного провайдера,
// PaymentMethodRef указывает платёжный метод, привязываемый к покупателю.
type CreateSubscriptionRequest struct {
	PriceRef         string `json:"price_id" validate:"required"`
	PaymentMethodRef string `json:"payment_method_id" validate:"required"`
}

// ToggleAgentRequest включает или выключает агента для пользователя.
type ToggleAgentRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// InvokeAgentRequest передаёт входные данные вызываемому агенту.
type InvokeAgentRequest struct {
	Input map[string]any `json:"input"`
}

// AgentInfo описывает агента в ответе списка агентов.
type AgentInfo struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	SubscriptionTier string `json:"subscription_tier"` // Минимальный тариф с этим агентом
	Enabled          bool   `json:"enabled"`
}

// CreateListingRequest используется для создания публикации в каталоге.
type CreateListingRequest struct {
	Name             string `json:"name" validate:"required"`
	ShortDescription string `json:"short_description" validate:"required"`
	Category         string `json:"category" validate:"required"`
}

// UpdateListingRequest используется продавцом для изменения публикации.
// Пустые поля остаются без изменений.
type UpdateListingRequest struct {
	Name             string `json:"name"`
	ShortDescription string `json:"short_description"`
	Category         string `json:"category"`
	Status           string `json:"status" validate:"omitempty,oneof=draft published"`
}

// CreateReviewRequest используется для создания отзыва о публикации.
type CreateReviewRequest struct {
	ListingID  int    `json:"listing_id" validate:"required"`
	PurchaseID int    `json:"purchase_id" validate:"required"`
	Rating     int    `json:"rating" validate:"required,min=1,max=5"`
	Title      string `json:"title"`
	Content    string `json:"content"`
}

// CreatePurchaseRequest используется для покупки публикации.
type CreatePurchaseRequest struct {
	ListingID   int    `json:"listing_id" validate:"required"`
	AmountCents int    `json:"amount_cents" validate:"required,gt=0"`
	Currency    string `json:"currency"`
}

// WishlistRequest добавляет или удаляет публикацию из списка желаемого.
type WishlistRequest struct {
	ListingID int `json:"listing_id" validate:"required"`
}

// CreatePortfolioRequest используется для создания и изменения портфеля.
type CreatePortfolioRequest struct {
	Name        string           `json:"name" validate:"required"`
	Description string           `json:"description"`
	Positions   []map[string]any `json:"positions" validate:"required,min=1"`
	IsPublic    bool             `json:"is_public"`
}

// AnalyzePortfolioRequest передаёт позиции и параметры анализа портфельному агенту.
type AnalyzePortfolioRequest struct {
	Input map[string]any `json:"input" validate:"required"`
}

