package models

import "time"

// Tier определяет уровень подписки пользователя.
type Tier string

// Уровни подписки. Набор агентов каждого уровня задаётся каталогом тарифов.
const (
	TierBasic        Tier = "basic"
	TierProfessional Tier = "professional"
	TierEnterprise   Tier = "enterprise"
)

// SubscriptionStatus описывает состояние подписки в явной машине состояний.
// Переходы между состояниями инициируются локальными действиями (создание,
// отмена) и событиями платёжного провайдера (webhook).
type SubscriptionStatus string

const (
	// StatusTrialing — подписка оплачена, идёт пробный период провайдера.
	StatusTrialing SubscriptionStatus = "trialing"
	// StatusActive — подписка активна и оплачивается.
	StatusActive SubscriptionStatus = "active"
	// StatusPastDue — провайдер сообщил о проблеме с оплатой, доступ приостановлен.
	StatusPastDue SubscriptionStatus = "past_due"
	// StatusCanceledPendingBasic — подписка отменена, оплаченный период дорабатывает,
	// после его окончания пользователь переводится на basic.
	StatusCanceledPendingBasic SubscriptionStatus = "canceled_pending_basic"
	// StatusBasic — бесплатный уровень без внешней подписки.
	StatusBasic SubscriptionStatus = "basic"
)

// subscriptionTransitions задаёт разрешённые переходы машины состояний.
var subscriptionTransitions = map[SubscriptionStatus][]SubscriptionStatus{
	StatusTrialing:             {StatusActive, StatusPastDue, StatusCanceledPendingBasic},
	StatusActive:               {StatusTrialing, StatusPastDue, StatusCanceledPendingBasic},
	StatusPastDue:              {StatusActive, StatusTrialing, StatusCanceledPendingBasic},
	// Отмену можно отозвать до конца оплаченного периода; окончательность
	// завершённой подписки проверяется отдельно через Finalized.
	StatusCanceledPendingBasic: {StatusActive, StatusTrialing, StatusPastDue},
	StatusBasic:                {StatusTrialing, StatusActive, StatusPastDue},
}

// CanTransition сообщает, разрешён ли переход из текущего состояния в to.
// Переход в то же самое состояние всегда разрешён (повторная доставка события).
func (s SubscriptionStatus) CanTransition(to SubscriptionStatus) bool {
	if s == to {
		return true
	}
	for _, next := range subscriptionTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Subscription представляет подписку пользователя на тарифный уровень.
// Поле EndedAt может быть nil — подписка без назначенной даты окончания.
// Внешние идентификаторы заполняются только для платных уровней.
type Subscription struct {
	ID                   int                // Идентификатор записи
	UserUID              string             // Владелец подписки
	Tier                 Tier               // Тарифный уровень
	Status               SubscriptionStatus // Состояние машины состояний
	IsActive             bool               // Признак активной подписки
	AutoRenew            bool               // Автопродление у провайдера
	StripeCustomerID     *string            // Идентификатор покупателя у провайдера
	StripeSubscriptionID *string            // Идентификатор подписки у провайдера
	StartedAt            time.Time          // Дата начала
	EndedAt              *time.Time         // Дата окончания, nil если не назначена
}

// Finalized сообщает, что подписка завершена окончательно: неактивна,
// без автопродления и с зафиксированной датой окончания. Завершённую
// подписку нельзя реанимировать устаревшим событием провайдера.
func (s *Subscription) Finalized() bool {
	return !s.IsActive && !s.AutoRenew && s.EndedAt != nil &&
		s.Status == StatusCanceledPendingBasic
}
