// Package billing инкапсулирует работу с платёжным провайдером Stripe:
// создание клиентов, подписок и их отмена.
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// Customer - созданный на стороне провайдера плательщик.
type Customer struct {
	ID    string
	Email string
}

// ProviderSubscription - состояние подписки на стороне провайдера.
type ProviderSubscription struct {
	ID                 string
	CustomerID         string
	Status             string
	PriceRef           string
	CancelAtPeriodEnd  bool
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	ClientSecret       string
}

// Provider описывает операции платёжного провайдера, нужные сервису подписок.
type Provider interface {
	CreateCustomer(ctx context.Context, email, username, paymentMethodRef, userUID string) (*Customer, error)
	CreateSubscription(ctx context.Context, customerID, priceRef string) (*ProviderSubscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	GetSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error)
}

// StripeProvider реализует Provider поверх HTTP-клиента Stripe.
type StripeProvider struct {
	api *client.API
}

// New создает провайдера с переданным секретным ключом.
func New(secretKey string) *StripeProvider {
	return &StripeProvider{api: client.New(secretKey, nil)}
}

// CreateCustomer создает плательщика и привязывает к нему платёжный метод
// как метод по умолчанию для инвойсов.
func (p *StripeProvider) CreateCustomer(ctx context.Context, email, username, paymentMethodRef, userUID string) (*Customer, error) {
	const op = "billing.CreateCustomer"

	params := &stripe.CustomerParams{
		Email:         stripe.String(email),
		Name:          stripe.String(username),
		PaymentMethod: stripe.String(paymentMethodRef),
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(paymentMethodRef),
		},
	}
	params.Context = ctx
	params.AddMetadata("user_uid", userUID)

	cust, err := p.api.Customers.New(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Customer{ID: cust.ID, Email: email}, nil
}

// CreateSubscription создает подписку на указанный тариф. Платёж запускается
// в режиме default_incomplete: если требуется подтверждение со стороны
// пользователя, в ответе будет client secret платёжного интента.
func (p *StripeProvider) CreateSubscription(ctx context.Context, customerID, priceRef string) (*ProviderSubscription, error) {
	const op = "billing.CreateSubscription"

	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceRef)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
		PaymentSettings: &stripe.SubscriptionPaymentSettingsParams{
			SaveDefaultPaymentMethod: stripe.String("on_subscription"),
		},
	}
	params.Context = ctx
	params.AddExpand("latest_invoice.payment_intent")

	sub, err := p.api.Subscriptions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return fromStripeSubscription(sub), nil
}

// CancelSubscription переводит подписку в режим отмены в конце оплаченного
// периода, не прерывая доступ немедленно.
func (p *StripeProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	const op = "billing.CancelSubscription"

	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	params.Context = ctx

	if _, err := p.api.Subscriptions.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetSubscription возвращает текущее состояние подписки у провайдера.
func (p *StripeProvider) GetSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error) {
	const op = "billing.GetSubscription"

	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := p.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return fromStripeSubscription(sub), nil
}

func fromStripeSubscription(sub *stripe.Subscription) *ProviderSubscription {
	res := &ProviderSubscription{
		ID:                 sub.ID,
		Status:             string(sub.Status),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CurrentPeriodStart: time.Unix(sub.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:   time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
	}
	if sub.Customer != nil {
		res.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		res.PriceRef = sub.Items.Data[0].Price.ID
	}
	if sub.LatestInvoice != nil && sub.LatestInvoice.PaymentIntent != nil {
		res.ClientSecret = sub.LatestInvoice.PaymentIntent.ClientSecret
	}
	return res
}
