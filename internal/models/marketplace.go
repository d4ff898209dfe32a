package models

import "time"

// Listing представляет публикацию агента в каталоге маркетплейса.
type Listing struct {
	ID               int       // Идентификатор публикации
	SellerUID        string    // Продавец
	Name             string    // Название агента
	ShortDescription string    // Краткое описание
	Category         string    // Категория каталога
	Status           string    // draft или published
	CreatedAt        time.Time // Дата создания
}

// Review представляет отзыв покупателя о публикации.
type Review struct {
	ID          int       // Идентификатор отзыва
	ListingID   int       // Публикация, к которой относится отзыв
	ReviewerUID string    // Автор отзыва
	PurchaseID  int       // Покупка, подтверждающая отзыв
	Rating      int       // Оценка от 1 до 5
	Title       string    // Заголовок отзыва
	Content     string    // Текст отзыва
	CreatedAt   time.Time // Дата создания
}

// Purchase представляет покупку публикации из каталога.
type Purchase struct {
	ID            int       // Идентификатор покупки
	ListingID     int       // Купленная публикация
	BuyerUID      string    // Покупатель
	TransactionID string    // Внешний идентификатор транзакции
	AmountCents   int       // Сумма в минорных единицах валюты
	Currency      string    // Трёхбуквенный код валюты
	Status        string    // pending, completed или refunded
	CreatedAt     time.Time // Дата покупки
}

// WishlistItem представляет публикацию в списке желаемого пользователя.
type WishlistItem struct {
	ID        int       // Идентификатор записи
	UserUID   string    // Владелец списка
	ListingID int       // Публикация из каталога
	CreatedAt time.Time // Дата добавления
}
